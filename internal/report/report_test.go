package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/review-cli/internal/geometry"
	"github.com/sells-group/review-cli/internal/model"
)

func ptr(v float64) *float64 { return &v }

func testDashboard() *model.Dashboard {
	week := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return &model.Dashboard{
		GeneratedAt: week.Add(72 * time.Hour),
		Overall:     ptr(0.875),
		Categories: map[model.MetricCategory]model.CategorySummary{
			model.MetricEventDetection: {Accuracy: ptr(0.9), TotalPredictions: 1200, CorrectPredictions: 1080, CorrectionsCount: 120, MatchesCount: 3},
			model.MetricOverall:        {Accuracy: ptr(0.875), TotalPredictions: 1600, CorrectPredictions: 1400, CorrectionsCount: 200, MatchesCount: 3},
		},
		EventTypeAccuracy: map[model.EventType]model.TypeBreakdown{
			model.EventPass: {AICount: 800, Correct: 760, Accuracy: ptr(0.95)},
			model.EventShot: {AICount: 40, Correct: 30, Accuracy: ptr(0.75)},
		},
		Totals: model.DashboardTotals{Matches: 3, AIEvents: 1200, TotalCorrections: 200},
		RecentMatches: []model.MatchSummary{
			{MatchID: 42, ComputedAt: week.Add(time.Hour), Overall: ptr(0.8), CorrectionCount: 12},
		},
		Trend: []model.TrendPoint{
			{PeriodStart: week, PeriodEnd: week.AddDate(0, 0, 7), Category: model.MetricOverall, Accuracy: ptr(0.875), MatchesCount: 3, TotalCorrections: 200},
			{PeriodStart: week, PeriodEnd: week.AddDate(0, 0, 7), Category: model.MetricTracking, MatchesCount: 3},
		},
		Skipped: []model.SkippedMatch{{MatchID: 7, Reason: "accuracy not computed"}},
	}
}

func TestLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Event Detection", Label(model.MetricEventDetection))
	assert.Equal(t, "Overall", Label(model.MetricOverall))
	assert.Equal(t, "Free Kick", Label(model.EventType("free_kick")))
}

func TestPercentAndCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "n/a", Percent(nil))
	assert.Equal(t, "0.0%", Percent(ptr(0)))
	assert.Equal(t, "87.5%", Percent(ptr(0.875)))
	assert.Equal(t, "1,600", Count(1600))
}

func TestWriteDashboard(t *testing.T) {
	var buf bytes.Buffer
	WriteDashboard(&buf, testDashboard())
	out := buf.String()

	assert.Contains(t, out, "Overall accuracy: 87.5% across 3 matches (200 corrections)")
	assert.Contains(t, out, "Event Detection")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "Tracking")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "2026-03-02")
	assert.Contains(t, out, "skipped match 7: accuracy not computed")
}

func TestWriteSnapshot(t *testing.T) {
	snap := &model.AccuracySnapshot{
		ID:         uuid.MustParse("0f9d7a4e-1111-4222-8333-444455556666"),
		MatchID:    42,
		ComputedAt: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		Metrics: []model.AccuracyMetric{
			{Category: model.MetricEventDetection, Accuracy: ptr(0.7), Precision: ptr(0.7), Recall: ptr(0.875), TotalPredictions: 10, CorrectPredictions: 7},
		},
	}
	var buf bytes.Buffer
	WriteSnapshot(&buf, snap)
	out := buf.String()

	assert.Contains(t, out, "Match 42, computed 2026-03-02 09:30 (snapshot 0f9d7a4e)")
	assert.Contains(t, out, "70.0%")
	assert.Contains(t, out, "87.5%")
}

func TestWriteComparison(t *testing.T) {
	c := &model.Comparison{
		MatchID:    42,
		Calibrated: true,
		Events:     model.KindCounts{AICount: 10, CorrectedCount: 8, TruePositives: 7, FalsePositives: 3, FalseNegatives: 1},
		EventTypeBreakdown: map[model.EventType]model.TypeBreakdown{
			model.EventPass: {AICount: 6, Correct: 5, Accuracy: ptr(5.0 / 6.0)},
		},
		TypeCorrections: []model.TypeCorrection{{AIEventID: 3, From: model.EventPass, To: model.EventCross}},
		BallMeanError:   ptr(1.25),
		BallErrorUnit:   "m",
	}
	var buf bytes.Buffer
	WriteComparison(&buf, c)
	out := buf.String()

	assert.Contains(t, out, "Match 42 (calibrated, pitch distances)")
	assert.Contains(t, out, "Ball mean error: 1.25 m")
	assert.Contains(t, out, "Pass")
	assert.Contains(t, out, "event 3: pass -> cross")
}

func TestWorkbook(t *testing.T) {
	snaps := []model.AccuracySnapshot{{
		ID:         uuid.New(),
		MatchID:    42,
		ComputedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Metrics: []model.AccuracyMetric{
			{Category: model.MetricOverall, Accuracy: ptr(0.8), CorrectionsCount: 12},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, testDashboard(), snaps))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 4)

	summary := f.Sheet["Summary"]
	require.NotNil(t, summary)
	require.Len(t, summary.Rows, 1+len(model.MetricCategories()))
	assert.Equal(t, "Category", summary.Rows[0].Cells[0].String())
	assert.Equal(t, "Detection", summary.Rows[1].Cells[0].String())

	matches := f.Sheet["Matches"]
	require.NotNil(t, matches)
	require.Len(t, matches.Rows, 2)
	assert.Equal(t, "42", matches.Rows[1].Cells[0].String())

	types := f.Sheet["Event Types"]
	require.NotNil(t, types)
	require.Len(t, types.Rows, 3)
	assert.Equal(t, "Pass", types.Rows[1].Cells[0].String())

	trend := f.Sheet["Trend"]
	require.NotNil(t, trend)
	assert.Len(t, trend.Rows, 3)
}

func TestSaveXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, SaveXLSX(path, testDashboard(), nil))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	assert.NotNil(t, f.Sheet["Summary"])
}

func TestWriteCalibration(t *testing.T) {
	cal := &model.Calibration{
		MatchID:              7,
		PitchLength:          105,
		PitchWidth:           68,
		Version:              3,
		IsValid:              true,
		ReprojectionError:    0.012,
		MaxReprojectionError: 0.034,
		Points: []model.CalibrationPoint{
			{PointType: model.PointCornerBottomLeft, Pixel: geometry.Pt(100, 650), Pitch: geometry.Pt(0, 0), Error: 0.01},
			{PointType: model.PointCustom, Label: "flag", Pixel: geometry.Pt(5, 6), Pitch: geometry.Pt(1, 2)},
		},
	}
	var buf bytes.Buffer
	WriteCalibration(&buf, cal)
	out := buf.String()

	assert.Contains(t, out, "Match 7 calibration v3 (valid), pitch 105.0 x 68.0 m")
	assert.Contains(t, out, "mean 0.012 m, max 0.034 m")
	assert.Contains(t, out, "corner_bottom_left")
	assert.Contains(t, out, "(100.0, 650.0)")
	assert.Contains(t, out, "flag")
}

func TestWriteStatus(t *testing.T) {
	var buf bytes.Buffer
	WriteStatus(&buf, model.CalibrationStatus{MatchID: 4})
	assert.Equal(t, "Match 4 is not calibrated\n", buf.String())

	buf.Reset()
	e := 0.5
	WriteStatus(&buf, model.CalibrationStatus{MatchID: 4, IsCalibrated: true, IsValid: true, PointCount: 5, Version: 2, ReprojectionError: &e})
	assert.Equal(t, "Match 4 calibrated (v2, valid=true, 5 points, error 0.500 m)\n", buf.String())
}
