package matcher

import (
	"github.com/sells-group/review-cli/internal/geometry"
	"github.com/sells-group/review-cli/internal/model"
)

// scaleLocator maps pixels to pitch metres by a constant factor.
type scaleLocator struct {
	k       float64
	version int64
}

func (l scaleLocator) Valid() bool { return true }

func (l scaleLocator) PixelToPitch(p geometry.Point) (geometry.Point, error) {
	return geometry.Pt(p.X*l.k, p.Y*l.k), nil
}

func (l scaleLocator) Fresh(v int64) bool { return v != 0 && v == l.version }

func aiEvent(id int64, frame int, t model.EventType, x, y float64) model.Event {
	return model.Event{
		ID:     id,
		Origin: model.OriginAI,
		Half:   1,
		Frame:  model.AIValue(frame),
		Type:   model.AIValue(t),
		Start:  model.AIValue(geometry.Pt(x, y)),
	}
}

func gtEvent(id int64, frame int, t model.EventType, x, y float64) model.Event {
	return model.Event{
		ID:     id,
		Origin: model.OriginCorrected,
		Half:   1,
		Frame:  model.CorrectedValue(frame),
		Type:   model.CorrectedValue(t),
		Start:  model.CorrectedValue(geometry.Pt(x, y)),
	}
}

// aiView is a reviewed AI event: it competes for ground truth.
func aiView(id int64, frame int, t model.EventType, x, y float64) model.EventView {
	c, _ := t.Category()
	p := geometry.Pt(x, y)
	return model.EventView{ID: id, Half: 1, Frame: frame, Type: t, Category: c, Pixel: &p}
}

func gtView(id int64, frame int, t model.EventType, x, y float64) model.EventView {
	return aiView(id, frame, t, x, y)
}

func viewIDs(views []model.EventView) []int64 {
	out := []int64{}
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func pairIDs(pairs []EventPair) [][2]int64 {
	out := [][2]int64{}
	for _, p := range pairs {
		out = append(out, [2]int64{p.AI.ID, p.Corrected.ID})
	}
	return out
}
