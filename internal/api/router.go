// Package api exposes calibration and accuracy operations over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/review-cli/internal/calibration"
	"github.com/sells-group/review-cli/internal/config"
	"github.com/sells-group/review-cli/internal/model"
)

// Calibrations is the calibration surface the API serves.
type Calibrations interface {
	Get(ctx context.Context, matchID int64) (*model.Calibration, error)
	Status(ctx context.Context, matchID int64) (model.CalibrationStatus, error)
	Recompute(ctx context.Context, input model.CalibrationInput) (*model.Calibration, error)
	Delete(ctx context.Context, matchID int64) error
	Locator(ctx context.Context, matchID int64) (*calibration.Locator, error)
}

// Accuracy is the accuracy surface the API serves.
type Accuracy interface {
	ComputeMatchAccuracy(ctx context.Context, matchID int64) (*model.AccuracySnapshot, error)
	Latest(ctx context.Context, matchID int64) (*model.AccuracySnapshot, error)
	Comparison(ctx context.Context, matchID int64) (*model.Comparison, error)
	Dashboard(ctx context.Context) (*model.Dashboard, error)
}

// Handler holds the services behind the routes.
type Handler struct {
	cal Calibrations
	acc Accuracy
}

// NewHandler creates a Handler.
func NewHandler(cal Calibrations, acc Accuracy) *Handler {
	return &Handler{cal: cal, acc: acc}
}

// NewRouter mounts every route on a chi router.
func NewRouter(h *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Get("/calibration/standard-points", h.standardPoints)
	r.Get("/accuracy/dashboard", h.dashboard)

	r.Route("/matches/{matchID}", func(r chi.Router) {
		r.Route("/calibration", func(r chi.Router) {
			r.Get("/", h.getCalibration)
			r.Post("/", h.saveCalibration)
			r.Delete("/", h.deleteCalibration)
			r.Get("/status", h.calibrationStatus)
			r.Post("/convert", h.convert)
		})
		r.Get("/accuracy", h.latestAccuracy)
		r.With(throttle(cfg.CalculateRPS, cfg.CalculateBurst)).Post("/accuracy/calculate", h.calculateAccuracy)
		r.Get("/comparison", h.comparison)
	})
	return r
}

// throttle rejects requests beyond rps with 429. A non-positive rps
// disables the limit.
func throttle(rps float64, burst int) func(http.Handler) http.Handler {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "too many accuracy calculations, retry shortly")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
