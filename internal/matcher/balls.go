package matcher

import (
	"sort"

	"github.com/sells-group/review-cli/internal/geometry"
	"github.com/sells-group/review-cli/internal/model"
)

// Units for ball position error.
const (
	UnitMeters = "m"
	UnitPixels = "px"
)

// BallPair is an AI ball detection the reviewer kept.
type BallPair struct {
	Frame       int
	AIID        int64
	CorrectedID int64
	// Error is the distance between the AI and reviewer positions, nil when
	// the reviewer did not move the ball.
	Error *float64
}

// BallOutcome partitions ball positions by frame.
type BallOutcome struct {
	Matched []BallPair
	// Deleted AI detections are false positives.
	Deleted []model.BallPosition
	// Added reviewer positions with no kept AI detection are false
	// negatives.
	Added []model.BallPosition
	// Unit is the unit of BallPair.Error.
	Unit string

	AICount        int
	CorrectedCount int
}

// TP returns the number of true positives.
func (o *BallOutcome) TP() int { return len(o.Matched) }

// FP returns the number of false positives.
func (o *BallOutcome) FP() int { return len(o.Deleted) }

// FN returns the number of false negatives.
func (o *BallOutcome) FN() int { return len(o.Added) }

// MeanError returns the mean positional error over corrected pairs, or nil.
func (o *BallOutcome) MeanError() *float64 {
	var sum float64
	n := 0
	for _, p := range o.Matched {
		if p.Error != nil {
			sum += *p.Error
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

// MatchBalls pairs ball positions by frame. Positional error is measured
// in pitch metres when loc is calibrated, otherwise in pixels.
func MatchBalls(balls []model.BallPosition, loc Locator) (*BallOutcome, error) {
	ai := make(map[int]*model.BallPosition)
	truth := make(map[int]*model.BallPosition)
	for i := range balls {
		b := &balls[i]
		if b.Origin == model.OriginAI {
			if prev, dup := ai[b.Frame]; dup {
				return nil, recordError("ball position", b.ID, "frame %d already has AI position %d", b.Frame, prev.ID)
			}
			ai[b.Frame] = b
			continue
		}
		if b.IsDeleted {
			continue
		}
		if prev, dup := truth[b.Frame]; dup {
			return nil, recordError("ball position", b.ID, "frame %d already has corrected position %d", b.Frame, prev.ID)
		}
		truth[b.Frame] = b
	}

	out := &BallOutcome{AICount: len(ai), CorrectedCount: len(truth), Unit: UnitPixels}
	if valid(loc) {
		out.Unit = UnitMeters
	}

	frames := make([]int, 0, len(ai))
	for f := range ai {
		frames = append(frames, f)
	}
	sort.Ints(frames)

	for _, f := range frames {
		a := ai[f]
		t, hasTruth := truth[f]
		if a.IsDeleted {
			out.Deleted = append(out.Deleted, *a)
			if hasTruth {
				out.Added = append(out.Added, *t)
			}
			continue
		}

		pair := BallPair{Frame: f, AIID: a.ID, CorrectedID: a.ID}
		aiPos, ok := a.Pixel.Original()
		if ok {
			switch {
			case hasTruth:
				pair.CorrectedID = t.ID
				if pos, ok := t.Pixel.Effective(); ok {
					pair.Error = ballError(aiPos, pos, loc)
				}
			case a.Pixel.IsCorrected():
				pair.Error = ballError(aiPos, *a.Pixel.Corrected, loc)
			}
		}
		out.Matched = append(out.Matched, pair)
	}

	var added []int
	for f := range truth {
		if _, ok := ai[f]; !ok {
			added = append(added, f)
		}
	}
	sort.Ints(added)
	for _, f := range added {
		out.Added = append(out.Added, *truth[f])
	}
	return out, nil
}

func ballError(aiPos, truthPos geometry.Point, loc Locator) *float64 {
	if !valid(loc) {
		d := geometry.Distance(aiPos, truthPos)
		return &d
	}
	a, err := loc.PixelToPitch(aiPos)
	if err != nil {
		return nil
	}
	t, err := loc.PixelToPitch(truthPos)
	if err != nil {
		return nil
	}
	d := geometry.Distance(a, t)
	return &d
}
