package accuracy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/review-cli/internal/calibration"
	"github.com/sells-group/review-cli/internal/config"
	"github.com/sells-group/review-cli/internal/matcher"
	"github.com/sells-group/review-cli/internal/matchlock"
	"github.com/sells-group/review-cli/internal/model"
)

// recentMatches bounds the dashboard's recent-matches list.
const recentMatches = 10

// ErrNoSnapshot is returned when a match has never been scored.
var ErrNoSnapshot = eris.New("accuracy: no snapshot for match")

// Repository is the persistence the Service needs.
type Repository interface {
	LoadAnnotations(ctx context.Context, matchID int64) (*model.MatchAnnotations, error)
	ListMatchIDs(ctx context.Context) ([]int64, error)
	SaveSnapshot(ctx context.Context, snap *model.AccuracySnapshot) error
	// LatestSnapshot returns nil, nil when the match has no snapshot.
	LatestSnapshot(ctx context.Context, matchID int64) (*model.AccuracySnapshot, error)
	LatestSnapshots(ctx context.Context) ([]model.AccuracySnapshot, error)
	ListSnapshotsSince(ctx context.Context, since time.Time) ([]model.AccuracySnapshot, error)
}

// LocatorSource hands out the current calibration of a match.
type LocatorSource interface {
	Locator(ctx context.Context, matchID int64) (*calibration.Locator, error)
}

// Service computes and aggregates accuracy metrics.
type Service struct {
	repo    Repository
	cal     LocatorSource
	matcher *matcher.Matcher
	locks   *matchlock.Locks
	acc     config.AccuracyConfig
	batch   config.BatchConfig

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewService creates a Service. locks should be shared with the
// calibration Manager so that a match is never recalibrated and rescored at
// the same time.
func NewService(cfg *config.Config, repo Repository, cal LocatorSource, locks *matchlock.Locks) *Service {
	if locks == nil {
		locks = matchlock.New()
	}
	return &Service{
		repo:    repo,
		cal:     cal,
		matcher: matcher.New(cfg.Matcher),
		locks:   locks,
		acc:     cfg.Accuracy,
		batch:   cfg.Batch,
		nowFunc: time.Now,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.acc.ComputeTimeoutSecs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(s.acc.ComputeTimeoutSecs)*time.Second)
}

// run loads a match and matches its annotations against the current
// calibration.
func (s *Service) run(ctx context.Context, matchID int64) (*matcher.Outcome, *model.MatchAnnotations, error) {
	ann, err := s.repo.LoadAnnotations(ctx, matchID)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "accuracy: load annotations for match %d", matchID)
	}
	if ann == nil {
		ann = &model.MatchAnnotations{MatchID: matchID}
	}
	loc, err := s.cal.Locator(ctx, matchID)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "accuracy: load calibration for match %d", matchID)
	}
	out, err := s.matcher.Match(ann, loc)
	if err != nil {
		return nil, nil, err
	}
	return out, ann, nil
}

// ComputeMatchAccuracy scores one match and stores the result as a new
// snapshot.
func (s *Service) ComputeMatchAccuracy(ctx context.Context, matchID int64) (*model.AccuracySnapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, matchID)
	if err != nil {
		return nil, eris.Wrapf(err, "accuracy: lock match %d", matchID)
	}
	defer unlock()

	out, ann, err := s.run(ctx, matchID)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc().UTC()
	evFixes, trFixes, ballFixes := ann.CorrectionsCount()
	snap := &model.AccuracySnapshot{
		ID:         uuid.New(),
		MatchID:    matchID,
		ComputedAt: now,
		Metrics:    DeriveMetrics(out, [3]int{evFixes, trFixes, ballFixes}, now),
		Comparison: BuildComparison(out),
	}
	if err := s.repo.SaveSnapshot(ctx, snap); err != nil {
		return nil, eris.Wrapf(err, "accuracy: save snapshot for match %d", matchID)
	}

	overall := snap.Metric(model.MetricOverall)
	zap.L().Info("accuracy: match scored",
		zap.Int64("match_id", matchID),
		zap.String("snapshot_id", snap.ID.String()),
		zap.Int("total_predictions", overall.TotalPredictions),
		zap.Int("correct_predictions", overall.CorrectPredictions),
		zap.Bool("calibrated", out.Calibrated),
	)
	return snap, nil
}

// Comparison reports AI versus ground truth for one match as the
// annotations stand now. Nothing is stored.
func (s *Service) Comparison(ctx context.Context, matchID int64) (*model.Comparison, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, _, err := s.run(ctx, matchID)
	if err != nil {
		return nil, err
	}
	cmp := BuildComparison(out)
	return &cmp, nil
}

// Latest returns the newest snapshot of a match or ErrNoSnapshot.
func (s *Service) Latest(ctx context.Context, matchID int64) (*model.AccuracySnapshot, error) {
	snap, err := s.repo.LatestSnapshot(ctx, matchID)
	if err != nil {
		return nil, eris.Wrapf(err, "accuracy: latest snapshot for match %d", matchID)
	}
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// BatchFailure records one match that could not be scored.
type BatchFailure struct {
	MatchID int64  `json:"match_id"`
	Error   string `json:"error"`
}

// BatchResult summarises a RecomputeAll run.
type BatchResult struct {
	Computed []int64        `json:"computed"`
	Failed   []BatchFailure `json:"failed"`
}

// RecomputeAll scores every match in matchIDs, or every known match when
// matchIDs is empty. A failing match is recorded and the rest carry on.
func (s *Service) RecomputeAll(ctx context.Context, matchIDs []int64) (*BatchResult, error) {
	if len(matchIDs) == 0 {
		ids, err := s.repo.ListMatchIDs(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "accuracy: list matches")
		}
		matchIDs = ids
	}

	concurrency := s.batch.MaxConcurrentMatches
	if concurrency <= 0 {
		concurrency = 1
	}
	zap.L().Info("accuracy: recomputing matches",
		zap.Int("matches", len(matchIDs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	res := &BatchResult{Computed: []int64{}, Failed: []BatchFailure{}}
	for _, id := range matchIDs {
		g.Go(func() error {
			_, err := s.ComputeMatchAccuracy(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				zap.L().Warn("accuracy: match skipped", zap.Int64("match_id", id), zap.Error(err))
				res.Failed = append(res.Failed, BatchFailure{MatchID: id, Error: err.Error()})
				return nil // don't abort the batch on one match
			}
			res.Computed = append(res.Computed, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "accuracy: batch recompute")
	}

	sort.Slice(res.Computed, func(i, j int) bool { return res.Computed[i] < res.Computed[j] })
	sort.Slice(res.Failed, func(i, j int) bool { return res.Failed[i].MatchID < res.Failed[j].MatchID })

	zap.L().Info("accuracy: recompute complete",
		zap.Int("computed", len(res.Computed)),
		zap.Int("failed", len(res.Failed)),
	)
	if err := ctx.Err(); err != nil {
		return res, eris.Wrap(err, "accuracy: batch recompute interrupted")
	}
	return res, nil
}
