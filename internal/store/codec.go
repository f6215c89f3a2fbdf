package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/review-cli/internal/geometry"
	"github.com/sells-group/review-cli/internal/model"
)

// Cached pitch coordinates live in their own columns so they can be cleared
// in bulk when a calibration changes. Payloads never carry them.

type pitchCols struct {
	sx, sy, ex, ey *float64
	version        int64
}

func splitPoint(p *geometry.Point) (x, y *float64) {
	if p == nil {
		return nil, nil
	}
	px, py := p.X, p.Y
	return &px, &py
}

func joinPoint(x, y *float64) *geometry.Point {
	if x == nil || y == nil {
		return nil
	}
	p := geometry.Pt(*x, *y)
	return &p
}

func encodeEvent(e model.Event) ([]byte, pitchCols, error) {
	var pc pitchCols
	pc.sx, pc.sy = splitPoint(e.StartPitch)
	pc.ex, pc.ey = splitPoint(e.EndPitch)
	pc.version = e.PitchVersion
	e.StartPitch, e.EndPitch, e.PitchVersion = nil, nil, 0

	payload, err := json.Marshal(e)
	if err != nil {
		return nil, pc, eris.Wrapf(err, "store: marshal event %d", e.ID)
	}
	return payload, pc, nil
}

func decodeEvent(payload []byte, pc pitchCols) (model.Event, error) {
	var e model.Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return e, eris.Wrap(err, "store: unmarshal event")
	}
	e.StartPitch = joinPoint(pc.sx, pc.sy)
	e.EndPitch = joinPoint(pc.ex, pc.ey)
	e.PitchVersion = pc.version
	return e, nil
}

func encodeBall(b model.BallPosition) ([]byte, pitchCols, error) {
	var pc pitchCols
	pc.sx, pc.sy = splitPoint(b.Pitch)
	pc.version = b.PitchVersion
	b.Pitch, b.PitchVersion = nil, 0

	payload, err := json.Marshal(b)
	if err != nil {
		return nil, pc, eris.Wrapf(err, "store: marshal ball position %d", b.ID)
	}
	return payload, pc, nil
}

func decodeBall(payload []byte, pc pitchCols) (model.BallPosition, error) {
	var b model.BallPosition
	if err := json.Unmarshal(payload, &b); err != nil {
		return b, eris.Wrap(err, "store: unmarshal ball position")
	}
	b.Pitch = joinPoint(pc.sx, pc.sy)
	b.PitchVersion = pc.version
	return b, nil
}

func checkMatch(kind string, id, matchID int64) error {
	if matchID <= 0 {
		return eris.Errorf("store: %s %d has no match id", kind, id)
	}
	return nil
}

// latestPerMatch keeps the first snapshot seen for every match. Callers
// pass snapshots ordered newest first within a match.
func latestPerMatch(snaps []model.AccuracySnapshot) []model.AccuracySnapshot {
	seen := make(map[int64]bool, len(snaps))
	out := make([]model.AccuracySnapshot, 0, len(snaps))
	for _, s := range snaps {
		if seen[s.MatchID] {
			continue
		}
		seen[s.MatchID] = true
		out = append(out, s)
	}
	return out
}

// metricRow flattens one metric for the accuracy_metrics table.
func metricRow(snap *model.AccuracySnapshot, m model.AccuracyMetric) []any {
	return []any{
		snap.ID, snap.MatchID, string(m.Category), snap.ComputedAt.UTC(),
		m.Accuracy, m.Precision, m.Recall, m.F1,
		m.TotalPredictions, m.CorrectPredictions,
		m.TruePositives, m.FalsePositives, m.FalseNegatives, m.CorrectionsCount,
	}
}

var metricColumns = []string{
	"snapshot_id", "match_id", "category", "computed_at",
	"accuracy", "precision_score", "recall_score", "f1_score",
	"total_predictions", "correct_predictions",
	"true_positives", "false_positives", "false_negatives", "corrections_count",
}
