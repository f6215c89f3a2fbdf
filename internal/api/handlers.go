package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/review-cli/internal/accuracy"
	"github.com/sells-group/review-cli/internal/geometry"
	"github.com/sells-group/review-cli/internal/matcher"
	"github.com/sells-group/review-cli/internal/model"
	"github.com/sells-group/review-cli/internal/store"
)

const maxBodyBytes = 1 << 20

type calibrationResponse struct {
	*model.Calibration
	PointCount int `json:"point_count"`
}

func newCalibrationResponse(cal *model.Calibration) calibrationResponse {
	return calibrationResponse{Calibration: cal, PointCount: cal.PointCount()}
}

// Conversion directions.
const (
	PixelToPitch = "pixel_to_pitch"
	PitchToPixel = "pitch_to_pixel"
)

type convertRequest struct {
	Direction string           `json:"direction"`
	Points    []geometry.Point `json:"points"`
}

type convertResponse struct {
	Direction string           `json:"direction"`
	Version   int64            `json:"version"`
	Points    []geometry.Point `json:"points"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) standardPoints(w http.ResponseWriter, r *http.Request) {
	length, err := floatQuery(r, "length", model.DefaultPitchLength)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	width, err := floatQuery(r, "width", model.DefaultPitchWidth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.StandardPitchCoordinates(length, width))
}

func (h *Handler) getCalibration(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchParam(w, r)
	if !ok {
		return
	}
	cal, err := h.cal.Get(r.Context(), matchID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCalibrationResponse(cal))
}

func (h *Handler) saveCalibration(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchParam(w, r)
	if !ok {
		return
	}
	var input model.CalibrationInput
	if !decode(w, r, &input) {
		return
	}
	if input.MatchID != 0 && input.MatchID != matchID {
		writeError(w, http.StatusBadRequest, "match_id in body does not match the URL")
		return
	}
	input.MatchID = matchID

	cal, err := h.cal.Recompute(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCalibrationResponse(cal))
}

func (h *Handler) deleteCalibration(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchParam(w, r)
	if !ok {
		return
	}
	if err := h.cal.Delete(r.Context(), matchID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "calibration deleted"})
}

func (h *Handler) calibrationStatus(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchParam(w, r)
	if !ok {
		return
	}
	st, err := h.cal.Status(r.Context(), matchID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchParam(w, r)
	if !ok {
		return
	}
	var req convertRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Direction == "" {
		req.Direction = PixelToPitch
	}
	if req.Direction != PixelToPitch && req.Direction != PitchToPixel {
		writeError(w, http.StatusBadRequest, "direction must be pixel_to_pitch or pitch_to_pixel")
		return
	}

	loc, err := h.cal.Locator(r.Context(), matchID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := convertResponse{
		Direction: req.Direction,
		Version:   loc.Version(),
		Points:    make([]geometry.Point, 0, len(req.Points)),
	}
	for _, p := range req.Points {
		var out geometry.Point
		if req.Direction == PixelToPitch {
			out, err = loc.PixelToPitch(p)
		} else {
			out, err = loc.PitchToPixel(p)
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		resp.Points = append(resp.Points, out)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) calculateAccuracy(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchParam(w, r)
	if !ok {
		return
	}
	snap, err := h.acc.ComputeMatchAccuracy(r.Context(), matchID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) latestAccuracy(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchParam(w, r)
	if !ok {
		return
	}
	snap, err := h.acc.Latest(r.Context(), matchID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) comparison(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchParam(w, r)
	if !ok {
		return
	}
	cmp, err := h.acc.Comparison(r.Context(), matchID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.acc.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// fail maps domain errors onto HTTP statuses. Calibration errors carry an
// actionable message and are returned as-is.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var calErr *geometry.CalibrationError
	var matchErr *matcher.MatchingError
	var transformErr *geometry.TransformError

	switch {
	case errors.As(err, &calErr):
		writeError(w, http.StatusBadRequest, calErr.Error())
	case errors.Is(err, geometry.ErrNoCalibration):
		writeError(w, http.StatusNotFound, "calibration not found")
	case errors.Is(err, accuracy.ErrNoSnapshot):
		writeError(w, http.StatusNotFound, "accuracy not computed for this match")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &matchErr):
		writeError(w, http.StatusUnprocessableEntity, matchErr.Error())
	case errors.As(err, &transformErr):
		writeError(w, http.StatusUnprocessableEntity, transformErr.Error())
	default:
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func matchParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "matchID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "match id must be a positive integer")
		return 0, false
	}
	return id, true
}

func floatQuery(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, errors.New(name + " must be a positive number")
	}
	return v, nil
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
