package accuracy

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/review-cli/internal/model"
)

const week = 7 * 24 * time.Hour

// Dashboard aggregates the latest snapshot of every match. Matches that were
// never scored are listed as skipped rather than failing the whole view.
func (s *Service) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	latest, err := s.repo.LatestSnapshots(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "accuracy: load latest snapshots")
	}
	ids, err := s.repo.ListMatchIDs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "accuracy: list matches")
	}

	now := s.nowFunc().UTC()
	d := &model.Dashboard{
		GeneratedAt:       now,
		Categories:        summarize(latest),
		EventTypeAccuracy: mergeTypeBreakdowns(latest),
		Totals:            totals(latest),
		RecentMatches:     recent(latest, recentMatches),
		Trend:             []model.TrendPoint{},
	}
	d.Overall = d.Categories[model.MetricOverall].Accuracy

	scored := make(map[int64]bool, len(latest))
	for _, snap := range latest {
		scored[snap.MatchID] = true
	}
	for _, id := range ids {
		if !scored[id] {
			d.Skipped = append(d.Skipped, model.SkippedMatch{MatchID: id, Reason: "accuracy not computed"})
		}
	}

	periods := s.acc.TrendPeriods
	if periods > 0 {
		since := weekStart(now).Add(-time.Duration(periods-1) * week)
		hist, err := s.repo.ListSnapshotsSince(ctx, since)
		if err != nil {
			return nil, eris.Wrap(err, "accuracy: load trend snapshots")
		}
		d.Trend = Trend(hist, since, periods)
	}

	zap.L().Debug("accuracy: dashboard built",
		zap.Int("matches", len(latest)),
		zap.Int("skipped", len(d.Skipped)),
		zap.Int("trend_points", len(d.Trend)),
	)
	return d, nil
}

// summarize weights every category by total predictions, so a large match
// counts for more than a small one.
func summarize(snaps []model.AccuracySnapshot) map[model.MetricCategory]model.CategorySummary {
	out := make(map[model.MetricCategory]model.CategorySummary, len(model.MetricCategories()))
	for _, cat := range model.MetricCategories() {
		var sum model.CategorySummary
		for i := range snaps {
			m := snaps[i].Metric(cat)
			if m == nil {
				continue
			}
			sum.TotalPredictions += m.TotalPredictions
			sum.CorrectPredictions += m.CorrectPredictions
			sum.CorrectionsCount += m.CorrectionsCount
			if m.TotalPredictions > 0 {
				sum.MatchesCount++
			}
		}
		sum.Accuracy = Ratio(sum.CorrectPredictions, sum.TotalPredictions)
		out[cat] = sum
	}
	return out
}

func mergeTypeBreakdowns(snaps []model.AccuracySnapshot) map[model.EventType]model.TypeBreakdown {
	out := make(map[model.EventType]model.TypeBreakdown)
	for _, snap := range snaps {
		for t, b := range snap.Comparison.EventTypeBreakdown {
			m := out[t]
			m.AICount += b.AICount
			m.Correct += b.Correct
			out[t] = m
		}
	}
	for t, b := range out {
		b.Accuracy = Ratio(b.Correct, b.AICount)
		out[t] = b
	}
	return out
}

func totals(snaps []model.AccuracySnapshot) model.DashboardTotals {
	t := model.DashboardTotals{Matches: len(snaps)}
	for i := range snaps {
		c := &snaps[i].Comparison
		t.AIEvents += c.Events.AICount
		t.CorrectedEvents += c.Events.CorrectedCount
		t.AITracks += c.Tracks.AICount
		t.CorrectedTracks += c.Tracks.CorrectedCount
		t.AIBalls += c.Balls.AICount
		if m := snaps[i].Metric(model.MetricOverall); m != nil {
			t.TotalCorrections += m.CorrectionsCount
		}
	}
	return t
}

// recent returns up to n matches, newest snapshot first.
func recent(snaps []model.AccuracySnapshot, n int) []model.MatchSummary {
	sorted := make([]model.AccuracySnapshot, len(snaps))
	copy(sorted, snaps)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ComputedAt.Equal(sorted[j].ComputedAt) {
			return sorted[i].ComputedAt.After(sorted[j].ComputedAt)
		}
		return sorted[i].MatchID < sorted[j].MatchID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]model.MatchSummary, 0, len(sorted))
	for i := range sorted {
		row := model.MatchSummary{MatchID: sorted[i].MatchID, ComputedAt: sorted[i].ComputedAt}
		if m := sorted[i].Metric(model.MetricOverall); m != nil {
			row.Overall = m.Accuracy
			row.CorrectionCount = m.CorrectionsCount
		}
		if m := sorted[i].Metric(model.MetricEventDetection); m != nil {
			row.EventDetection = m.Accuracy
		}
		out = append(out, row)
	}
	return out
}

// weekStart returns Monday 00:00 UTC of the week containing t.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Trend buckets snapshots into weeks starting at since. Within a week only
// the newest snapshot of each match counts. Weeks without snapshots are
// omitted.
func Trend(snaps []model.AccuracySnapshot, since time.Time, periods int) []model.TrendPoint {
	since = weekStart(since)
	type bucket map[int64]*model.AccuracySnapshot
	buckets := make(map[time.Time]bucket)
	for i := range snaps {
		snap := &snaps[i]
		if snap.ComputedAt.Before(since) {
			continue
		}
		start := weekStart(snap.ComputedAt)
		if start.Sub(since) >= time.Duration(periods)*week {
			continue
		}
		b := buckets[start]
		if b == nil {
			b = make(bucket)
			buckets[start] = b
		}
		if prev := b[snap.MatchID]; prev == nil || snap.ComputedAt.After(prev.ComputedAt) {
			b[snap.MatchID] = snap
		}
	}

	starts := make([]time.Time, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	out := []model.TrendPoint{}
	for _, start := range starts {
		inWeek := make([]model.AccuracySnapshot, 0, len(buckets[start]))
		for _, snap := range buckets[start] {
			inWeek = append(inWeek, *snap)
		}
		sums := summarize(inWeek)
		for _, cat := range model.MetricCategories() {
			sum := sums[cat]
			out = append(out, model.TrendPoint{
				PeriodStart:      start,
				PeriodEnd:        start.AddDate(0, 0, 7),
				Category:         cat,
				Accuracy:         sum.Accuracy,
				MatchesCount:     len(inWeek),
				TotalCorrections: sum.CorrectionsCount,
			})
		}
	}
	return out
}
