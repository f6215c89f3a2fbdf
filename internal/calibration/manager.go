// Package calibration owns the per-match pitch calibrations and exposes
// pixel to pitch conversion to the rest of the system.
package calibration

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/review-cli/internal/config"
	"github.com/sells-group/review-cli/internal/geometry"
	"github.com/sells-group/review-cli/internal/matchlock"
	"github.com/sells-group/review-cli/internal/model"
)

// Repository persists calibrations. GetCalibration returns nil, nil when a
// match has none.
type Repository interface {
	SaveCalibration(ctx context.Context, cal *model.Calibration) error
	GetCalibration(ctx context.Context, matchID int64) (*model.Calibration, error)
	DeleteCalibration(ctx context.Context, matchID int64) error
}

// Invalidator clears cached pitch coordinates on a match's annotations.
type Invalidator interface {
	InvalidatePitch(ctx context.Context, matchID int64) error
}

// DefaultConfig returns a config.CalibrationConfig with sensible defaults.
func DefaultConfig() config.CalibrationConfig {
	return config.CalibrationConfig{
		ReprojectionToleranceM: 1.0,
		CollinearityTolerance:  1e-3,
		MaxConditionNumber:     1e12,
		MinPitchLengthM:        90,
		MaxPitchLengthM:        120,
		MinPitchWidthM:         45,
		MaxPitchWidthM:         90,
		PitchMarginM:           5,
		MaxPoints:              32,
	}
}

type entry struct {
	cur atomic.Pointer[Locator]

	loadMu      sync.Mutex
	loaded      atomic.Bool
	lastVersion int64
}

// Manager is the keyed store of match calibrations. Writers are serialised
// per match; readers take lock-free snapshots through Locator.
type Manager struct {
	cfg   config.CalibrationConfig
	repo  Repository
	inval Invalidator
	locks *matchlock.Locks
	now   func() time.Time

	mu      sync.Mutex
	entries map[int64]*entry
}

// NewManager creates a Manager. inval may be nil when no annotations carry
// cached pitch fields. locks is shared with other per-match writers.
func NewManager(cfg config.CalibrationConfig, repo Repository, inval Invalidator, locks *matchlock.Locks) *Manager {
	if locks == nil {
		locks = matchlock.New()
	}
	return &Manager{
		cfg:     cfg,
		repo:    repo,
		inval:   inval,
		locks:   locks,
		now:     func() time.Time { return time.Now().UTC() },
		entries: make(map[int64]*entry),
	}
}

func (m *Manager) entry(matchID int64) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[matchID]
	if !ok {
		e = &entry{}
		m.entries[matchID] = e
	}
	return e
}

// load returns the entry for matchID, reading it from the repository on
// first use.
func (m *Manager) load(ctx context.Context, matchID int64) (*entry, error) {
	e := m.entry(matchID)
	if e.loaded.Load() {
		return e, nil
	}

	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	if e.loaded.Load() {
		return e, nil
	}

	cal, err := m.repo.GetCalibration(ctx, matchID)
	if err != nil {
		return nil, eris.Wrapf(err, "calibration: load match %d", matchID)
	}
	if cal != nil {
		loc, err := newLocator(cal)
		if err != nil {
			zap.L().Warn("calibration: stored transform is unusable",
				zap.Int64("match_id", matchID),
				zap.Error(err),
			)
		} else {
			e.cur.Store(loc)
		}
		e.lastVersion = cal.Version
	}
	e.loaded.Store(true)
	return e, nil
}

// Load warms the in-memory entry for matchID from the repository.
func (m *Manager) Load(ctx context.Context, matchID int64) error {
	_, err := m.load(ctx, matchID)
	return err
}

// Locator returns a snapshot of the current calibration for matchID. The
// snapshot is nil when the match has none; it stays usable either way.
func (m *Manager) Locator(ctx context.Context, matchID int64) (*Locator, error) {
	e, err := m.load(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return e.cur.Load(), nil
}

// Get returns the current calibration or geometry.ErrNoCalibration.
func (m *Manager) Get(ctx context.Context, matchID int64) (*model.Calibration, error) {
	loc, err := m.Locator(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, geometry.ErrNoCalibration
	}
	return loc.Calibration(), nil
}

// Status reports the calibration state of a match without changing it.
func (m *Manager) Status(ctx context.Context, matchID int64) (model.CalibrationStatus, error) {
	st := model.CalibrationStatus{MatchID: matchID}
	loc, err := m.Locator(ctx, matchID)
	if err != nil {
		return st, err
	}
	if cal := loc.Calibration(); cal != nil {
		st.IsCalibrated = true
		st.IsValid = cal.IsValid
		st.PointCount = cal.PointCount()
		st.Version = cal.Version
		e := cal.ReprojectionError
		st.ReprojectionError = &e
	}
	return st, nil
}

// Recompute derives a fresh calibration from the full point set in input
// and publishes it. A fit worse than the configured tolerance is still
// published, with IsValid false, so conversions stop until the points are
// fixed. Degenerate input yields a *geometry.CalibrationError and leaves the
// previous calibration in place.
func (m *Manager) Recompute(ctx context.Context, input model.CalibrationInput) (*model.Calibration, error) {
	unlock, err := m.locks.Lock(ctx, input.MatchID)
	if err != nil {
		return nil, eris.Wrapf(err, "calibration: lock match %d", input.MatchID)
	}
	defer unlock()

	e, err := m.load(ctx, input.MatchID)
	if err != nil {
		return nil, err
	}

	cal, err := m.solve(input)
	if err != nil {
		zap.L().Info("calibration: rejected",
			zap.Int64("match_id", input.MatchID),
			zap.Int("points", len(input.Points)),
			zap.Error(err),
		)
		return nil, err
	}

	now := m.now()
	cal.Version = nextVersion(e.lastVersion, now)
	cal.CreatedAt = now
	cal.UpdatedAt = now
	if prev := e.cur.Load(); prev != nil {
		cal.CreatedAt = prev.cal.CreatedAt
	}

	loc, err := newLocator(cal)
	if err != nil {
		return nil, eris.Wrap(err, "calibration: build locator")
	}
	if err := m.repo.SaveCalibration(ctx, cal); err != nil {
		return nil, eris.Wrapf(err, "calibration: save match %d", input.MatchID)
	}
	e.cur.Store(loc)
	e.lastVersion = cal.Version

	m.invalidate(ctx, input.MatchID)

	log := zap.L().Info
	if !cal.IsValid {
		log = zap.L().Warn
	}
	log("calibration: published",
		zap.Int64("match_id", cal.MatchID),
		zap.Int64("version", cal.Version),
		zap.Int("points", len(cal.Points)),
		zap.Float64("reprojection_error", cal.ReprojectionError),
		zap.Bool("valid", cal.IsValid),
	)
	return cal, nil
}

// nextVersion returns a version above last that also stays above anything
// issued before a delete or a restart lost last: versions are seeded from
// the wall clock in milliseconds.
func nextVersion(last int64, now time.Time) int64 {
	v := now.UnixMilli()
	if v <= last {
		v = last + 1
	}
	return v
}

// Delete removes the calibration for matchID and invalidates cached pitch
// coordinates. It returns geometry.ErrNoCalibration when there is none.
func (m *Manager) Delete(ctx context.Context, matchID int64) error {
	unlock, err := m.locks.Lock(ctx, matchID)
	if err != nil {
		return eris.Wrapf(err, "calibration: lock match %d", matchID)
	}
	defer unlock()

	e, err := m.load(ctx, matchID)
	if err != nil {
		return err
	}
	if e.cur.Load() == nil {
		return geometry.ErrNoCalibration
	}
	if err := m.repo.DeleteCalibration(ctx, matchID); err != nil {
		return eris.Wrapf(err, "calibration: delete match %d", matchID)
	}
	e.cur.Store(nil)
	m.invalidate(ctx, matchID)

	zap.L().Info("calibration: deleted", zap.Int64("match_id", matchID))
	return nil
}

// invalidate eagerly clears cached pitch fields. Failures are logged only:
// version stamps already mark those fields stale for readers.
func (m *Manager) invalidate(ctx context.Context, matchID int64) {
	if m.inval == nil {
		return
	}
	if err := m.inval.InvalidatePitch(ctx, matchID); err != nil {
		zap.L().Warn("calibration: invalidate cached pitch coordinates",
			zap.Int64("match_id", matchID),
			zap.Error(err),
		)
	}
}

// Enrich converts every event and ball position in ann with the current
// calibration of its match.
func (m *Manager) Enrich(ctx context.Context, ann *model.MatchAnnotations) (int, error) {
	loc, err := m.Locator(ctx, ann.MatchID)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range ann.Events {
		if loc.ConvertEvent(&ann.Events[i]) {
			n++
		}
	}
	for i := range ann.Balls {
		if loc.ConvertBall(&ann.Balls[i]) {
			n++
		}
	}
	return n, nil
}

func (m *Manager) solve(input model.CalibrationInput) (*model.Calibration, error) {
	pts, err := ResolvePoints(m.cfg, input)
	if err != nil {
		return nil, err
	}

	pairs := make([]geometry.Correspondence, len(pts))
	for i, p := range pts {
		pairs[i] = geometry.Correspondence{Pixel: p.Pixel, Pitch: p.Pitch, Label: p.Label}
	}

	h, err := geometry.SolveHomography(pairs, geometry.SolveOptions{
		CollinearityTolerance: m.cfg.CollinearityTolerance,
		MaxPoints:             m.cfg.MaxPoints,
	})
	if err != nil {
		return nil, err
	}
	stats, err := geometry.Reprojection(h, pairs)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(stats.Mean) {
		return nil, geometry.NewCalibrationError("reprojection error is not a number")
	}
	inv, err := h.Inverse(m.cfg.MaxConditionNumber)
	if err != nil {
		return nil, geometry.NewCalibrationError("transform is not invertible: %v", err)
	}

	for i := range pts {
		pts[i].Error = stats.PerPoint[i]
	}
	return &model.Calibration{
		MatchID:              input.MatchID,
		PitchLength:          input.PitchLength,
		PitchWidth:           input.PitchWidth,
		Points:               pts,
		Homography:           h.Matrix(),
		InverseHomography:    inv.Matrix(),
		ReprojectionError:    stats.Mean,
		MaxReprojectionError: stats.Max,
		IsValid:              stats.Mean <= m.cfg.ReprojectionToleranceM,
		CalibrationFrame:     input.CalibrationFrame,
		CalibratedBy:         input.CalibratedBy,
	}, nil
}
