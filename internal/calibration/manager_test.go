package calibration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/review-cli/internal/geometry"
	"github.com/sells-group/review-cli/internal/matchlock"
	"github.com/sells-group/review-cli/internal/model"
)

type memRepo struct {
	mu   sync.Mutex
	cals map[int64]*model.Calibration
	errs map[string]error
}

func newMemRepo() *memRepo {
	return &memRepo{cals: map[int64]*model.Calibration{}, errs: map[string]error{}}
}

func (r *memRepo) SaveCalibration(_ context.Context, cal *model.Calibration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs["save"]; err != nil {
		return err
	}
	r.cals[cal.MatchID] = cal
	return nil
}

func (r *memRepo) GetCalibration(_ context.Context, matchID int64) (*model.Calibration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs["get"]; err != nil {
		return nil, err
	}
	return r.cals[matchID], nil
}

func (r *memRepo) DeleteCalibration(_ context.Context, matchID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cals, matchID)
	return nil
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls map[int64]int
}

func (c *countingInvalidator) InvalidatePitch(_ context.Context, matchID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[int64]int{}
	}
	c.calls[matchID]++
	return nil
}

func (c *countingInvalidator) count(matchID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[matchID]
}

func point(t model.PointType, x, y float64) model.CalibrationPointInput {
	return model.CalibrationPointInput{PointType: t, PixelX: x, PixelY: y}
}

// cornersInput calibrates a 105x68 pitch from its four corners seen as a
// broadcast trapezoid.
func cornersInput(matchID int64) model.CalibrationInput {
	return model.CalibrationInput{
		MatchID:     matchID,
		PitchLength: 105,
		PitchWidth:  68,
		Points: []model.CalibrationPointInput{
			point(model.PointCornerBottomLeft, 100, 650),
			point(model.PointCornerBottomRight, 1180, 650),
			point(model.PointCornerTopRight, 900, 180),
			point(model.PointCornerTopLeft, 380, 180),
		},
	}
}

func newTestManager() (*Manager, *memRepo, *countingInvalidator) {
	repo := newMemRepo()
	inval := &countingInvalidator{}
	return NewManager(DefaultConfig(), repo, inval, matchlock.New()), repo, inval
}

func TestManager_RecomputeFourCorners(t *testing.T) {
	ctx := context.Background()
	m, repo, inval := newTestManager()

	cal, err := m.Recompute(ctx, cornersInput(1))
	require.NoError(t, err)

	assert.True(t, cal.IsValid)
	assert.Positive(t, cal.Version)
	assert.InDelta(t, 0, cal.ReprojectionError, 1e-6)
	assert.Len(t, cal.Points, 4)
	assert.Equal(t, cal, repo.cals[1])
	assert.Equal(t, 1, inval.count(1))

	loc, err := m.Locator(ctx, 1)
	require.NoError(t, err)
	// The image of the pitch centre is where the pixel diagonals cross.
	center, err := loc.PixelToPitch(geometry.Pt(640, 332.75))
	require.NoError(t, err)
	assert.InDelta(t, 52.5, center.X, 0.5)
	assert.InDelta(t, 34.0, center.Y, 0.5)

	px, err := loc.PitchToPixel(geometry.Pt(52.5, 34))
	require.NoError(t, err)
	assert.InDelta(t, 640, px.X, 0.5)
	assert.InDelta(t, 332.75, px.Y, 0.5)

	st, err := m.Status(ctx, 1)
	require.NoError(t, err)
	assert.True(t, st.IsCalibrated)
	assert.True(t, st.IsValid)
	assert.Equal(t, 4, st.PointCount)
	require.NotNil(t, st.ReprojectionError)
}

func TestManager_FailedRecomputeKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	m, _, inval := newTestManager()

	good, err := m.Recompute(ctx, cornersInput(1))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*model.CalibrationInput)
	}{
		{"three points", func(in *model.CalibrationInput) { in.Points = in.Points[:3] }},
		{"four collinear points", func(in *model.CalibrationInput) {
			for i := range in.Points {
				in.Points[i].PixelX = float64(100 * i)
				in.Points[i].PixelY = float64(50 * i)
			}
		}},
		{"pitch too long", func(in *model.CalibrationInput) { in.PitchLength = 150 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := cornersInput(1)
			tt.mutate(&in)

			_, err := m.Recompute(ctx, in)
			require.Error(t, err)
			assert.True(t, geometry.IsCalibrationError(err))

			cur, err := m.Get(ctx, 1)
			require.NoError(t, err)
			assert.Same(t, good, cur)
		})
	}
	assert.Equal(t, 1, inval.count(1), "rejected input does not invalidate caches")
}

func TestManager_FitAboveToleranceIsStoredInvalid(t *testing.T) {
	ctx := context.Background()
	m, repo, _ := newTestManager()

	good, err := m.Recompute(ctx, cornersInput(1))
	require.NoError(t, err)

	in := cornersInput(1)
	// The centre spot is 120 px right of where the corners put it.
	in.Points = append(in.Points, point(model.PointCenterSpot, 760, 332.75))

	cal, err := m.Recompute(ctx, in)
	require.NoError(t, err)
	assert.False(t, cal.IsValid)
	assert.Greater(t, cal.ReprojectionError, DefaultConfig().ReprojectionToleranceM)
	assert.Greater(t, cal.Version, good.Version)
	assert.Len(t, cal.Points, 5)
	assert.Equal(t, cal, repo.cals[1])

	st, err := m.Status(ctx, 1)
	require.NoError(t, err)
	assert.True(t, st.IsCalibrated)
	assert.False(t, st.IsValid)
	assert.Equal(t, 5, st.PointCount)
	require.NotNil(t, st.ReprojectionError)
	assert.InDelta(t, cal.ReprojectionError, *st.ReprojectionError, 1e-12)

	loc, err := m.Locator(ctx, 1)
	require.NoError(t, err)
	assert.False(t, loc.Valid())
	_, err = loc.PixelToPitch(geometry.Pt(640, 332.75))
	assert.ErrorIs(t, err, geometry.ErrNoCalibration)

	// Fixing the stray point restores conversions.
	fixed, err := m.Recompute(ctx, cornersInput(1))
	require.NoError(t, err)
	assert.True(t, fixed.IsValid)
	loc, err = m.Locator(ctx, 1)
	require.NoError(t, err)
	assert.True(t, loc.Valid())
}

func TestManager_OverdeterminedWithinTolerance(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager()

	in := cornersInput(1)
	in.Points = append(in.Points,
		point(model.PointCenterSpot, 641, 333),
		point(model.PointHalfwayBottom, 640, 650),
	)

	cal, err := m.Recompute(ctx, in)
	require.NoError(t, err)
	assert.Greater(t, cal.ReprojectionError, 0.0)
	assert.LessOrEqual(t, cal.ReprojectionError, 1.0)
	assert.GreaterOrEqual(t, cal.MaxReprojectionError, cal.ReprojectionError)
	for _, p := range cal.Points {
		assert.GreaterOrEqual(t, p.Error, 0.0)
	}
}

func TestManager_Delete(t *testing.T) {
	ctx := context.Background()
	m, repo, inval := newTestManager()

	first, err := m.Recompute(ctx, cornersInput(1))
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, 1))

	assert.Empty(t, repo.cals)
	assert.Equal(t, 2, inval.count(1))

	loc, err := m.Locator(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, loc)
	_, err = loc.PixelToPitch(geometry.Pt(1, 1))
	assert.ErrorIs(t, err, geometry.ErrNoCalibration)

	_, err = m.Get(ctx, 1)
	assert.True(t, geometry.IsTransformError(err))
	assert.ErrorIs(t, m.Delete(ctx, 1), geometry.ErrNoCalibration)

	// Versions keep increasing across a delete.
	cal, err := m.Recompute(ctx, cornersInput(1))
	require.NoError(t, err)
	assert.Greater(t, cal.Version, first.Version)
}

func TestManager_VersionSurvivesDeleteAndRestart(t *testing.T) {
	ctx := context.Background()
	m, repo, _ := newTestManager()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	first, err := m.Recompute(ctx, cornersInput(5))
	require.NoError(t, err)
	second, err := m.Recompute(ctx, cornersInput(5))
	require.NoError(t, err)
	assert.Equal(t, first.Version+1, second.Version, "same millisecond")
	require.NoError(t, m.Delete(ctx, 5))

	// A new process has no memory of the deleted row.
	restarted := NewManager(DefaultConfig(), repo, nil, nil)
	restarted.now = func() time.Time { return at.Add(time.Second) }
	third, err := restarted.Recompute(ctx, cornersInput(5))
	require.NoError(t, err)
	assert.Greater(t, third.Version, second.Version)
}

func TestNextVersion(t *testing.T) {
	at := time.UnixMilli(5000)
	assert.Equal(t, int64(5000), nextVersion(0, at))
	assert.Equal(t, int64(5000), nextVersion(4999, at))
	assert.Equal(t, int64(5001), nextVersion(5000, at))
	assert.Equal(t, int64(9001), nextVersion(9000, at), "clock behind the last version")
}

func TestManager_LoadFromRepository(t *testing.T) {
	ctx := context.Background()
	m, repo, _ := newTestManager()
	stored, err := m.Recompute(ctx, cornersInput(3))
	require.NoError(t, err)

	fresh := NewManager(DefaultConfig(), repo, nil, nil)
	require.NoError(t, fresh.Load(ctx, 3))

	st, err := fresh.Status(ctx, 3)
	require.NoError(t, err)
	assert.True(t, st.IsCalibrated)
	assert.Equal(t, stored.Version, st.Version)

	cal, err := fresh.Recompute(ctx, cornersInput(3))
	require.NoError(t, err)
	assert.Greater(t, cal.Version, stored.Version)
}

func TestManager_LoadError(t *testing.T) {
	repo := newMemRepo()
	repo.errs["get"] = assert.AnError
	m := NewManager(DefaultConfig(), repo, nil, nil)

	_, err := m.Locator(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestManager_SaveErrorKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	m, repo, _ := newTestManager()
	good, err := m.Recompute(ctx, cornersInput(1))
	require.NoError(t, err)

	repo.errs["save"] = assert.AnError
	_, err = m.Recompute(ctx, cornersInput(1))
	require.Error(t, err)

	cur, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, good, cur)
}

func TestManager_ConvertAndFreshness(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager()

	ann := &model.MatchAnnotations{
		MatchID: 1,
		Events: []model.Event{
			{ID: 1, Origin: model.OriginAI, Frame: model.AIValue(10), Type: model.AIValue(model.EventPass),
				Start: model.AIValue(geometry.Pt(640, 332.75))},
		},
		Balls: []model.BallPosition{
			{ID: 1, Frame: 10, Origin: model.OriginAI, Pixel: model.AIValue(geometry.Pt(100, 650))},
		},
	}

	// No calibration: pitch fields stay empty.
	n, err := m.Enrich(ctx, ann)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, ann.Events[0].StartPitch)

	_, err = m.Recompute(ctx, cornersInput(1))
	require.NoError(t, err)
	n, err = m.Enrich(ctx, ann)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NotNil(t, ann.Events[0].StartPitch)
	assert.InDelta(t, 52.5, ann.Events[0].StartPitch.X, 0.5)
	require.NotNil(t, ann.Balls[0].Pitch)
	assert.InDelta(t, 0, ann.Balls[0].Pitch.X, 1e-6)

	loc, err := m.Locator(ctx, 1)
	require.NoError(t, err)
	assert.True(t, loc.Fresh(ann.Events[0].PitchVersion))

	_, err = m.Recompute(ctx, cornersInput(1))
	require.NoError(t, err)
	loc, err = m.Locator(ctx, 1)
	require.NoError(t, err)
	assert.False(t, loc.Fresh(ann.Events[0].PitchVersion), "recalibration makes cached pitch stale")
}

func TestManager_ConcurrentReadersSeeWholeTransforms(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager()
	_, err := m.Recompute(ctx, cornersInput(1))
	require.NoError(t, err)

	shifted := cornersInput(1)
	for i := range shifted.Points {
		shifted.Points[i].PixelX += 40
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				loc, err := m.Locator(ctx, 1)
				if !assert.NoError(t, err) {
					return
				}
				pitch, err := loc.PixelToPitch(geometry.Pt(600, 400))
				if !assert.NoError(t, err) {
					return
				}
				back, err := loc.PitchToPixel(pitch)
				if !assert.NoError(t, err) {
					return
				}
				assert.InDelta(t, 600, back.X, 1e-6)
				assert.InDelta(t, 400, back.Y, 1e-6)
			}
		}()
	}

	for i := 0; i < 20; i++ {
		in := cornersInput(1)
		if i%2 == 0 {
			in = shifted
		}
		_, err := m.Recompute(ctx, in)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}
