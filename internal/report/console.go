package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sells-group/review-cli/internal/model"
)

const dateLayout = "2006-01-02 15:04"

// WriteDashboard prints the cross-match overview.
func WriteDashboard(out io.Writer, d *model.Dashboard) {
	_, _ = fmt.Fprintf(out, "Overall accuracy: %s across %s matches (%s corrections)\n\n",
		Percent(d.Overall), Count(d.Totals.Matches), Count(d.Totals.TotalCorrections))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CATEGORY\tACCURACY\tPREDICTIONS\tCORRECT\tCORRECTIONS\tMATCHES")
	_, _ = fmt.Fprintln(w, "--------\t--------\t-----------\t-------\t-----------\t-------")
	for _, cat := range model.MetricCategories() {
		s := d.Categories[cat]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			Label(cat), Percent(s.Accuracy), Count(s.TotalPredictions),
			Count(s.CorrectPredictions), Count(s.CorrectionsCount), s.MatchesCount)
	}
	_ = w.Flush()

	if len(d.RecentMatches) > 0 {
		_, _ = fmt.Fprintln(out, "\nRecent matches")
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "MATCH\tCOMPUTED\tOVERALL\tEVENTS\tCORRECTIONS")
		_, _ = fmt.Fprintln(w, "-----\t--------\t-------\t------\t-----------")
		for _, m := range d.RecentMatches {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				m.MatchID, m.ComputedAt.Format(dateLayout), Percent(m.Overall),
				Percent(m.EventDetection), Count(m.CorrectionCount))
		}
		_ = w.Flush()
	}

	if len(d.Trend) > 0 {
		_, _ = fmt.Fprintln(out, "\nWeekly overall trend")
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "WEEK\tACCURACY\tMATCHES\tCORRECTIONS")
		_, _ = fmt.Fprintln(w, "----\t--------\t-------\t-----------")
		for _, p := range d.Trend {
			if p.Category != model.MetricOverall {
				continue
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				p.PeriodStart.Format("2006-01-02"), Percent(p.Accuracy), p.MatchesCount, Count(p.TotalCorrections))
		}
		_ = w.Flush()
	}

	for _, s := range d.Skipped {
		_, _ = fmt.Fprintf(out, "skipped match %d: %s\n", s.MatchID, s.Reason)
	}
}

// WriteSnapshot prints every metric of one snapshot.
func WriteSnapshot(out io.Writer, snap *model.AccuracySnapshot) {
	_, _ = fmt.Fprintf(out, "Match %d, computed %s (snapshot %s)\n\n",
		snap.MatchID, snap.ComputedAt.Format(dateLayout), snap.ID.String()[:8])

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CATEGORY\tACCURACY\tPRECISION\tRECALL\tF1\tTOTAL\tCORRECT\tCORRECTIONS")
	_, _ = fmt.Fprintln(w, "--------\t--------\t---------\t------\t--\t-----\t-------\t-----------")
	for _, m := range snap.Metrics {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			Label(m.Category), Percent(m.Accuracy), Percent(m.Precision), Percent(m.Recall),
			Percent(m.F1), Count(m.TotalPredictions), Count(m.CorrectPredictions), Count(m.CorrectionsCount))
	}
	_ = w.Flush()
}

// WriteComparison prints the AI versus ground truth report of one match.
func WriteComparison(out io.Writer, c *model.Comparison) {
	calibrated := "uncalibrated, pixel distances"
	if c.Calibrated {
		calibrated = "calibrated, pitch distances"
	}
	_, _ = fmt.Fprintf(out, "Match %d (%s)\n\n", c.MatchID, calibrated)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KIND\tAI\tCORRECTED\tTP\tFP\tFN\tPRECISION\tRECALL\tF1")
	_, _ = fmt.Fprintln(w, "----\t--\t---------\t--\t--\t--\t---------\t------\t--")
	for _, row := range []struct {
		name string
		k    model.KindCounts
	}{
		{"Events", c.Events},
		{"Tracks", c.Tracks},
		{"Ball positions", c.Balls},
	} {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			row.name, row.k.AICount, row.k.CorrectedCount,
			row.k.TruePositives, row.k.FalsePositives, row.k.FalseNegatives,
			Percent(row.k.Precision), Percent(row.k.Recall), Percent(row.k.F1))
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nTeam accuracy: %s  Jersey accuracy: %s\n",
		Percent(c.TeamAccuracy), Percent(c.JerseyAccuracy))
	if c.BallMeanError != nil {
		_, _ = fmt.Fprintf(out, "Ball mean error: %.2f %s\n", *c.BallMeanError, c.BallErrorUnit)
	}

	if len(c.EventTypeBreakdown) > 0 {
		_, _ = fmt.Fprintln(out, "\nEvent types")
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "TYPE\tAI\tCORRECT\tACCURACY")
		_, _ = fmt.Fprintln(w, "----\t--\t-------\t--------")
		for _, t := range sortedTypes(c.EventTypeBreakdown) {
			b := c.EventTypeBreakdown[t]
			_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", Label(t), b.AICount, b.Correct, Percent(b.Accuracy))
		}
		_ = w.Flush()
	}

	for _, tc := range c.TypeCorrections {
		_, _ = fmt.Fprintf(out, "event %d: %s -> %s\n", tc.AIEventID, tc.From, tc.To)
	}
}

// WriteCalibration prints a calibration and the residual of every point.
func WriteCalibration(out io.Writer, cal *model.Calibration) {
	valid := "valid"
	if !cal.IsValid {
		valid = "invalid"
	}
	_, _ = fmt.Fprintf(out, "Match %d calibration v%d (%s), pitch %.1f x %.1f m\n",
		cal.MatchID, cal.Version, valid, cal.PitchLength, cal.PitchWidth)
	_, _ = fmt.Fprintf(out, "Reprojection error: mean %.3f m, max %.3f m\n\n",
		cal.ReprojectionError, cal.MaxReprojectionError)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "POINT\tPIXEL\tPITCH\tERROR")
	_, _ = fmt.Fprintln(w, "-----\t-----\t-----\t-----")
	for _, p := range cal.Points {
		name := p.Label
		if name == "" {
			name = string(p.PointType)
		}
		_, _ = fmt.Fprintf(w, "%s\t(%.1f, %.1f)\t(%.2f, %.2f)\t%.3f\n",
			name, p.Pixel.X, p.Pixel.Y, p.Pitch.X, p.Pitch.Y, p.Error)
	}
	_ = w.Flush()
}

// WriteStatus prints the calibration state of one match.
func WriteStatus(out io.Writer, st model.CalibrationStatus) {
	if !st.IsCalibrated {
		_, _ = fmt.Fprintf(out, "Match %d is not calibrated\n", st.MatchID)
		return
	}
	errText := "n/a"
	if st.ReprojectionError != nil {
		errText = fmt.Sprintf("%.3f m", *st.ReprojectionError)
	}
	_, _ = fmt.Fprintf(out, "Match %d calibrated (v%d, valid=%t, %d points, error %s)\n",
		st.MatchID, st.Version, st.IsValid, st.PointCount, errText)
}
