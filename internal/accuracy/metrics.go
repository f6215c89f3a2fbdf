package accuracy

import (
	"time"

	"github.com/sells-group/review-cli/internal/matcher"
	"github.com/sells-group/review-cli/internal/model"
)

// Ratio returns num/den, or nil when den is zero. A nil ratio means there
// was nothing to measure; a ratio of 0 means everything measured was wrong.
func Ratio(num, den int) *float64 {
	if den <= 0 {
		return nil
	}
	r := float64(num) / float64(den)
	return &r
}

// Precision returns TP/(TP+FP).
func Precision(tp, fp int) *float64 { return Ratio(tp, tp+fp) }

// Recall returns TP/(TP+FN).
func Recall(tp, fn int) *float64 { return Ratio(tp, tp+fn) }

// F1 returns the harmonic mean of p and r. It is nil when either is nil or
// when both are zero.
func F1(p, r *float64) *float64 {
	if p == nil || r == nil || *p+*r == 0 {
		return nil
	}
	f := 2 * *p * *r / (*p + *r)
	return &f
}

// Counts is the raw tally behind one metric.
type Counts struct {
	Total       int
	Correct     int
	TP, FP, FN  int
	Corrections int
	// Detection is set for presence metrics, where precision and recall
	// are meaningful. Classification metrics only carry an accuracy.
	Detection bool
}

// NewMetric derives the ratios for c.
func NewMetric(category model.MetricCategory, matchID int64, window time.Time, c Counts) model.AccuracyMetric {
	m := model.AccuracyMetric{
		Category:           category,
		MatchID:            matchID,
		WindowStart:        window,
		WindowEnd:          window,
		Accuracy:           Ratio(c.Correct, c.Total),
		TotalPredictions:   c.Total,
		CorrectPredictions: c.Correct,
		TruePositives:      c.TP,
		FalsePositives:     c.FP,
		FalseNegatives:     c.FN,
		CorrectionsCount:   c.Corrections,
	}
	if c.Detection {
		m.Precision = Precision(c.TP, c.FP)
		m.Recall = Recall(c.TP, c.FN)
		m.F1 = F1(m.Precision, m.Recall)
	}
	return m
}

func kindCounts(aiCount, correctedCount, tp, fp, fn int) model.KindCounts {
	p, r := Precision(tp, fp), Recall(tp, fn)
	return model.KindCounts{
		AICount:        aiCount,
		CorrectedCount: correctedCount,
		TruePositives:  tp,
		FalsePositives: fp,
		FalseNegatives: fn,
		Accuracy:       Ratio(tp, tp+fp),
		Precision:      p,
		Recall:         r,
		F1:             F1(p, r),
	}
}

// BuildComparison turns a matcher outcome into the per-match report.
func BuildComparison(out *matcher.Outcome) model.Comparison {
	cmp := model.Comparison{
		MatchID:            out.MatchID,
		Calibrated:         out.Calibrated,
		EventTypeBreakdown: make(map[model.EventType]model.TypeBreakdown),
		TypeCorrections:    []model.TypeCorrection{},
	}

	ev := &out.Events
	cmp.Events = kindCounts(ev.AICount, ev.CorrectedCount, ev.TP(), ev.FP(), ev.FN())

	// Every AI event is a prediction of its type. It counts as correct
	// when it matched a live ground-truth event of the same type.
	tally := func(t model.EventType, correct bool) {
		b := cmp.EventTypeBreakdown[t]
		b.AICount++
		if correct {
			b.Correct++
		}
		cmp.EventTypeBreakdown[t] = b
	}
	for _, p := range ev.Matched {
		tally(p.AI.Type, !p.TypeChanged())
		if p.TypeChanged() {
			cmp.TypeCorrections = append(cmp.TypeCorrections, model.TypeCorrection{
				AIEventID:        p.AI.ID,
				CorrectedEventID: p.Corrected.ID,
				From:             p.AI.Type,
				To:               p.Corrected.Type,
			})
		}
	}
	for _, p := range ev.Rejected {
		tally(p.AI.Type, false)
	}
	for _, v := range ev.Unmatched {
		tally(v.Type, false)
	}
	for t, b := range cmp.EventTypeBreakdown {
		b.Accuracy = Ratio(b.Correct, b.AICount)
		cmp.EventTypeBreakdown[t] = b
	}

	tr := &out.Tracks
	cmp.Tracks = kindCounts(tr.AICount, tr.CorrectedCount, tr.TP(), tr.FP(), tr.FN())
	total, correct := tr.TeamCounts()
	cmp.TeamAccuracy = Ratio(correct, total)
	total, correct = tr.JerseyCounts()
	cmp.JerseyAccuracy = Ratio(correct, total)

	b := &out.Balls
	cmp.Balls = kindCounts(b.AICount, b.CorrectedCount, b.TP(), b.FP(), b.FN())
	cmp.BallMeanError = b.MeanError()
	if len(b.Matched) > 0 {
		cmp.BallErrorUnit = b.Unit
	}
	return cmp
}

// DeriveMetrics computes one metric per category from a matcher outcome.
// corrections holds the reviewer edit counts for events, tracks and balls.
func DeriveMetrics(out *matcher.Outcome, corrections [3]int, at time.Time) []model.AccuracyMetric {
	id := out.MatchID
	ev, tr, b := &out.Events, &out.Tracks, &out.Balls

	counts := map[model.MetricCategory]Counts{
		model.MetricDetection: {
			Total: b.TP() + b.FP(), Correct: b.TP(),
			TP: b.TP(), FP: b.FP(), FN: b.FN(),
			Corrections: corrections[2], Detection: true,
		},
		model.MetricTracking: {
			Total: tr.TP() + tr.FP(), Correct: tr.TP(),
			TP: tr.TP(), FP: tr.FP(), FN: tr.FN(),
			Corrections: corrections[1], Detection: true,
		},
		model.MetricEventDetection: {
			Total: ev.TP() + ev.FP(), Correct: ev.TP(),
			TP: ev.TP(), FP: ev.FP(), FN: ev.FN(),
			Corrections: corrections[0], Detection: true,
		},
	}

	teamTotal, teamCorrect := tr.TeamCounts()
	counts[model.MetricTeamAssignment] = Counts{
		Total: teamTotal, Correct: teamCorrect, Corrections: teamTotal - teamCorrect,
	}
	jerseyTotal, jerseyCorrect := tr.JerseyCounts()
	counts[model.MetricJerseyRecognition] = Counts{
		Total: jerseyTotal, Correct: jerseyCorrect, Corrections: jerseyTotal - jerseyCorrect,
	}
	typeChanges := len(ev.TypeCorrections())
	counts[model.MetricEventClassification] = Counts{
		Total: ev.TP(), Correct: ev.TP() - typeChanges, Corrections: typeChanges,
	}

	var overall Counts
	overall.Detection = true
	metrics := make([]model.AccuracyMetric, 0, len(counts)+1)
	for _, cat := range model.MetricCategories() {
		c, ok := counts[cat]
		if !ok {
			continue
		}
		// Classification metrics grade predictions already counted by a
		// detection metric, so only detection feeds the overall figure.
		if c.Detection {
			overall.Total += c.Total
			overall.Correct += c.Correct
			overall.TP += c.TP
			overall.FP += c.FP
			overall.FN += c.FN
		}
		m := NewMetric(cat, id, at, c)
		switch cat {
		case model.MetricDetection:
			m.Breakdown = ballBreakdown(b)
		case model.MetricEventClassification:
			m.Breakdown = correctionBreakdown(ev)
		}
		metrics = append(metrics, m)
	}
	overall.Corrections = corrections[0] + corrections[1] + corrections[2]
	return append(metrics, NewMetric(model.MetricOverall, id, at, overall))
}

func ballBreakdown(b *matcher.BallOutcome) map[string]any {
	out := map[string]any{"unit": b.Unit}
	if e := b.MeanError(); e != nil {
		out["mean_error"] = *e
	}
	return out
}

// correctionBreakdown counts type corrections as "from->to".
func correctionBreakdown(ev *matcher.EventOutcome) map[string]any {
	changes := ev.TypeCorrections()
	if len(changes) == 0 {
		return nil
	}
	out := make(map[string]any)
	for _, p := range changes {
		k := string(p.AI.Type) + "->" + string(p.Corrected.Type)
		n, _ := out[k].(int)
		out[k] = n + 1
	}
	return out
}
