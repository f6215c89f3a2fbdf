package report

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/review-cli/internal/model"
)

const percentFormat = "0.0%"

// Workbook builds an XLSX report: the dashboard summary, one row per
// match snapshot, per event-type accuracy, and the weekly trend.
func Workbook(d *model.Dashboard, snaps []model.AccuracySnapshot) (*xlsx.File, error) {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return nil, eris.Wrap(err, "report: add summary sheet")
	}
	header(summary, "Category", "Accuracy", "Predictions", "Correct", "Corrections", "Matches")
	for _, cat := range model.MetricCategories() {
		s := d.Categories[cat]
		row := summary.AddRow()
		row.AddCell().SetString(Label(cat))
		ratioCell(row, s.Accuracy)
		row.AddCell().SetInt(s.TotalPredictions)
		row.AddCell().SetInt(s.CorrectPredictions)
		row.AddCell().SetInt(s.CorrectionsCount)
		row.AddCell().SetInt(s.MatchesCount)
	}

	matches, err := f.AddSheet("Matches")
	if err != nil {
		return nil, eris.Wrap(err, "report: add matches sheet")
	}
	cols := []string{"Match", "Computed At"}
	for _, cat := range model.MetricCategories() {
		cols = append(cols, Label(cat))
	}
	cols = append(cols, "Corrections")
	header(matches, cols...)
	for i := range snaps {
		snap := &snaps[i]
		row := matches.AddRow()
		row.AddCell().SetInt64(snap.MatchID)
		row.AddCell().SetDateTime(snap.ComputedAt)
		for _, cat := range model.MetricCategories() {
			var acc *float64
			if m := snap.Metric(cat); m != nil {
				acc = m.Accuracy
			}
			ratioCell(row, acc)
		}
		corrections := 0
		if m := snap.Metric(model.MetricOverall); m != nil {
			corrections = m.CorrectionsCount
		}
		row.AddCell().SetInt(corrections)
	}

	types, err := f.AddSheet("Event Types")
	if err != nil {
		return nil, eris.Wrap(err, "report: add event types sheet")
	}
	header(types, "Event Type", "AI Events", "Correct", "Accuracy")
	for _, t := range sortedTypes(d.EventTypeAccuracy) {
		b := d.EventTypeAccuracy[t]
		row := types.AddRow()
		row.AddCell().SetString(Label(t))
		row.AddCell().SetInt(b.AICount)
		row.AddCell().SetInt(b.Correct)
		ratioCell(row, b.Accuracy)
	}

	trend, err := f.AddSheet("Trend")
	if err != nil {
		return nil, eris.Wrap(err, "report: add trend sheet")
	}
	header(trend, "Week", "Category", "Accuracy", "Matches", "Corrections")
	for _, p := range d.Trend {
		row := trend.AddRow()
		row.AddCell().SetString(p.PeriodStart.Format("2006-01-02"))
		row.AddCell().SetString(Label(p.Category))
		ratioCell(row, p.Accuracy)
		row.AddCell().SetInt(p.MatchesCount)
		row.AddCell().SetInt(p.TotalCorrections)
	}
	return f, nil
}

// WriteXLSX writes the workbook to w.
func WriteXLSX(w io.Writer, d *model.Dashboard, snaps []model.AccuracySnapshot) error {
	f, err := Workbook(d, snaps)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "report: write xlsx")
}

// SaveXLSX writes the workbook to path.
func SaveXLSX(path string, d *model.Dashboard, snaps []model.AccuracySnapshot) error {
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	if err := WriteXLSX(out, d, snaps); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(out.Close(), "report: close %s", path)
}

func header(sheet *xlsx.Sheet, names ...string) {
	row := sheet.AddRow()
	for _, n := range names {
		cell := row.AddCell()
		cell.SetString(n)
		style := xlsx.NewStyle()
		style.Font.Bold = true
		style.ApplyFont = true
		cell.SetStyle(style)
	}
}

// ratioCell writes a percentage cell, or an empty cell when v is nil.
func ratioCell(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v == nil {
		return
	}
	cell.SetFloatWithFormat(*v, percentFormat)
}
