package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/review-cli/internal/config"
	"github.com/sells-group/review-cli/internal/model"
)

// ErrNotFound is returned when a row addressed by key does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for calibrations, annotations and
// accuracy snapshots.
type Store interface {
	// Calibrations
	SaveCalibration(ctx context.Context, cal *model.Calibration) error
	// GetCalibration returns nil, nil when the match has no calibration.
	GetCalibration(ctx context.Context, matchID int64) (*model.Calibration, error)
	DeleteCalibration(ctx context.Context, matchID int64) error
	ListCalibrations(ctx context.Context) ([]model.Calibration, error)

	// Annotations
	SaveEvents(ctx context.Context, events []model.Event) error
	SaveTracks(ctx context.Context, tracks []model.Track) error
	SaveBalls(ctx context.Context, balls []model.BallPosition) error
	LoadAnnotations(ctx context.Context, matchID int64) (*model.MatchAnnotations, error)
	ListMatchIDs(ctx context.Context) ([]int64, error)
	// InvalidatePitch clears every cached pitch coordinate of a match.
	InvalidatePitch(ctx context.Context, matchID int64) error

	// Accuracy snapshots
	SaveSnapshot(ctx context.Context, snap *model.AccuracySnapshot) error
	// LatestSnapshot returns nil, nil when the match was never scored.
	LatestSnapshot(ctx context.Context, matchID int64) (*model.AccuracySnapshot, error)
	LatestSnapshots(ctx context.Context) ([]model.AccuracySnapshot, error)
	ListSnapshotsSince(ctx context.Context, since time.Time) ([]model.AccuracySnapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the store named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
