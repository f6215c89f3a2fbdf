package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/review-cli/internal/accuracy"
	"github.com/sells-group/review-cli/internal/calibration"
	"github.com/sells-group/review-cli/internal/config"
	"github.com/sells-group/review-cli/internal/geometry"
	"github.com/sells-group/review-cli/internal/matcher"
	"github.com/sells-group/review-cli/internal/matchlock"
	"github.com/sells-group/review-cli/internal/model"
	"github.com/sells-group/review-cli/internal/store"
)

type testEnv struct {
	store  *store.SQLiteStore
	server *httptest.Server
}

func newTestEnv(t *testing.T, server config.ServerConfig) *testEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	cfg := &config.Config{
		Server:      server,
		Calibration: calibration.DefaultConfig(),
		Matcher:     matcher.DefaultConfig(),
		Accuracy:    config.AccuracyConfig{TrendPeriods: 4, ComputeTimeoutSecs: 5},
		Batch:       config.BatchConfig{MaxConcurrentMatches: 2},
	}
	locks := matchlock.New()
	mgr := calibration.NewManager(cfg.Calibration, st, st, locks)
	svc := accuracy.NewService(cfg, st, mgr, locks)

	srv := httptest.NewServer(NewRouter(NewHandler(mgr, svc), cfg.Server))
	t.Cleanup(srv.Close)
	return &testEnv{store: st, server: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func cornerInput() model.CalibrationInput {
	return model.CalibrationInput{
		PitchLength: 105,
		PitchWidth:  68,
		Points: []model.CalibrationPointInput{
			{PointType: model.PointCornerBottomLeft, PixelX: 100, PixelY: 650},
			{PointType: model.PointCornerBottomRight, PixelX: 1180, PixelY: 650},
			{PointType: model.PointCornerTopRight, PixelX: 900, PixelY: 180},
			{PointType: model.PointCornerTopLeft, PixelX: 380, PixelY: 180},
		},
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})

	resp, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestStandardPoints(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})

	resp, body := env.do(t, http.MethodGet, "/calibration/standard-points", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	corner := body["corner_bottom_left"].(map[string]any)
	assert.EqualValues(t, 0, corner["x"])
	assert.EqualValues(t, 0, corner["y"])
	spot := body["center_spot"].(map[string]any)
	assert.InDelta(t, 52.5, spot["x"].(float64), 1e-9)
	assert.InDelta(t, 34, spot["y"].(float64), 1e-9)

	resp, _ = env.do(t, http.MethodGet, "/calibration/standard-points?length=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCalibration_Lifecycle(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})

	resp, _ := env.do(t, http.MethodGet, "/matches/5/calibration", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/matches/5/calibration", cornerInput())
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["is_valid"])
	assert.EqualValues(t, 4, body["point_count"])
	assert.EqualValues(t, 5, body["match_id"])
	assert.Len(t, body["homography_matrix"], 9)

	resp, body = env.do(t, http.MethodGet, "/matches/5/calibration/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_calibrated"])

	resp, body = env.do(t, http.MethodPost, "/matches/5/calibration/convert", convertRequest{
		Points: []geometry.Point{geometry.Pt(100, 650)},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pts := body["points"].([]any)
	require.Len(t, pts, 1)
	p := pts[0].(map[string]any)
	assert.InDelta(t, 0, p["x"].(float64), 1e-6)
	assert.InDelta(t, 0, p["y"].(float64), 1e-6)

	resp, _ = env.do(t, http.MethodDelete, "/matches/5/calibration", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/matches/5/calibration", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/matches/5/calibration/convert", convertRequest{
		Points: []geometry.Point{geometry.Pt(100, 650)},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, body)
}

func TestCalibration_Rejected(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})

	in := cornerInput()
	in.Points = in.Points[:3]
	resp, body := env.do(t, http.MethodPost, "/matches/5/calibration", in)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])

	in = cornerInput()
	in.MatchID = 9
	resp, body = env.do(t, http.MethodPost, "/matches/5/calibration", in)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "does not match")
}

func TestCalibration_PoorFitStoredInvalid(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})

	in := cornerInput()
	in.Points = append(in.Points, model.CalibrationPointInput{PointType: model.PointCenterSpot, PixelX: 760, PixelY: 332.75})
	resp, body := env.do(t, http.MethodPost, "/matches/6/calibration", in)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, false, body["is_valid"])

	resp, body = env.do(t, http.MethodGet, "/matches/6/calibration/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_calibrated"])
	assert.Equal(t, false, body["is_valid"])

	resp, _ = env.do(t, http.MethodPost, "/matches/6/calibration/convert", convertRequest{
		Points: []geometry.Point{geometry.Pt(100, 650)},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBadRequests(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})

	resp, _ := env.do(t, http.MethodGet, "/matches/abc/calibration", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/matches/5/calibration", strings.NewReader("{"))
	require.NoError(t, err)
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/matches/5/calibration/convert", map[string]any{"direction": "sideways"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func seedMatch(t *testing.T, st store.Store, matchID int64, half int) {
	t.Helper()
	aiType := model.EventPass
	require.NoError(t, st.SaveEvents(context.Background(), []model.Event{
		{
			ID: matchID*100 + 1, MatchID: matchID, Origin: model.OriginAI, Half: half,
			Frame: model.AIValue(100),
			Type:  model.Overlay[model.EventType]{AI: &aiType, Corrected: &aiType},
			Start: model.AIValue(geometry.Pt(640, 360)),
		},
	}))
}

func TestAccuracy_Flow(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	seedMatch(t, env.store, 7, 1)

	resp, _ := env.do(t, http.MethodGet, "/matches/7/accuracy", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/matches/7/accuracy/calculate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.EqualValues(t, 7, body["match_id"])
	assert.Len(t, body["metrics"], len(model.MetricCategories()))

	resp, body = env.do(t, http.MethodGet, "/matches/7/accuracy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 7, body["match_id"])

	resp, body = env.do(t, http.MethodGet, "/matches/7/comparison", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := body["events"].(map[string]any)
	assert.EqualValues(t, 1, events["true_positives"])

	resp, body = env.do(t, http.MethodGet, "/accuracy/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	totals := body["totals"].(map[string]any)
	assert.EqualValues(t, 1, totals["matches"])
}

func TestAccuracy_MatchingErrorIs422(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	seedMatch(t, env.store, 8, 9)

	resp, body := env.do(t, http.MethodPost, "/matches/8/accuracy/calculate", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["error"], "matching")
}

func TestAccuracy_Throttled(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{CalculateRPS: 0.001, CalculateBurst: 1})
	seedMatch(t, env.store, 7, 1)

	resp, _ := env.do(t, http.MethodPost, "/matches/7/accuracy/calculate", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/matches/7/accuracy/calculate", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Reads are not throttled.
	resp, _ = env.do(t, http.MethodGet, "/matches/7/accuracy", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{AllowedOrigins: []string{"https://review.example"}})

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/accuracy/dashboard", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://review.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "https://review.example", resp.Header.Get("Access-Control-Allow-Origin"))
}
