package matcher

import (
	"math"
	"sort"

	"github.com/sells-group/review-cli/internal/geometry"
	"github.com/sells-group/review-cli/internal/model"
)

// defaultSpatialScale is the distance in metres at which the spatial score
// reaches zero when no spatial gate is configured.
const defaultSpatialScale = 30.0

// EventPair is a committed AI and ground-truth pairing.
type EventPair struct {
	AI        model.EventView
	Corrected model.EventView
	Score     float64
	FrameDiff int
	// DistanceM is the spatial distance used for scoring, in metres, or nil
	// when neither pitch nor pixel anchors were comparable.
	DistanceM *float64
}

// TypeChanged reports whether the reviewer's event type differs from the
// AI's.
func (p EventPair) TypeChanged() bool { return p.AI.Type != p.Corrected.Type }

// EventOutcome partitions the AI and ground-truth event streams.
type EventOutcome struct {
	// Matched are true positives.
	Matched []EventPair
	// Rejected are pairs whose ground-truth side is flagged deleted: the
	// reviewer says the AI event should not exist, so they count as false
	// positives.
	Rejected []EventPair
	// Unmatched AI events are false positives. Accepted AI views never land
	// here: they always match themselves.
	Unmatched []model.EventView
	// Missed ground-truth events are false negatives.
	Missed []model.EventView

	AICount        int
	CorrectedCount int
}

// TP returns the number of true positives.
func (o *EventOutcome) TP() int { return len(o.Matched) }

// FP returns the number of false positives.
func (o *EventOutcome) FP() int { return len(o.Rejected) + len(o.Unmatched) }

// FN returns the number of false negatives.
func (o *EventOutcome) FN() int { return len(o.Missed) }

// TypeCorrections returns the true positives whose type was changed.
func (o *EventOutcome) TypeCorrections() []EventPair {
	var out []EventPair
	for _, p := range o.Matched {
		if p.TypeChanged() {
			out = append(out, p)
		}
	}
	return out
}

type partitionKey struct {
	half     int
	category model.EventCategory
}

type partition struct {
	ai, corrected []model.EventView
}

type candidate struct {
	ai, corrected int
	score         float64
	frameDiff     int
	distance      *float64
}

// MatchEvents aligns the AI and ground-truth event streams derived from
// events.
func (m *Matcher) MatchEvents(events []model.Event, loc Locator) (*EventOutcome, error) {
	ai, corrected := model.SplitEvents(events)
	return m.MatchEventViews(ai, corrected, loc)
}

// MatchEventViews aligns two event streams. Events only match within the
// same half and category; within a partition pairs are committed greedily
// from the best score down.
func (m *Matcher) MatchEventViews(ai, corrected []model.EventView, loc Locator) (*EventOutcome, error) {
	if err := m.validateViews("event", ai); err != nil {
		return nil, err
	}
	if err := m.validateViews("corrected event", corrected); err != nil {
		return nil, err
	}

	parts := make(map[partitionKey]*partition)
	var keys []partitionKey
	get := func(v model.EventView) *partition {
		k := partitionKey{v.Half, v.Category}
		p, ok := parts[k]
		if !ok {
			p = &partition{}
			parts[k] = p
			keys = append(keys, k)
		}
		return p
	}
	for _, v := range ai {
		p := get(v)
		p.ai = append(p.ai, v)
	}
	for _, v := range corrected {
		p := get(v)
		p.corrected = append(p.corrected, v)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].half != keys[j].half {
			return keys[i].half < keys[j].half
		}
		return keys[i].category < keys[j].category
	})

	out := &EventOutcome{AICount: len(ai)}
	for _, v := range corrected {
		if !v.Deleted {
			out.CorrectedCount++
		}
	}

	for _, k := range keys {
		p := parts[k]
		if len(p.ai) > m.cfg.MaxPartitionSize || len(p.corrected) > m.cfg.MaxPartitionSize {
			return nil, &MatchingError{Reason: fmtPartition(k, len(p.ai), len(p.corrected), m.cfg.MaxPartitionSize)}
		}
		m.matchPartition(p, loc, out)
	}
	return out, nil
}

func (m *Matcher) validateViews(kind string, views []model.EventView) error {
	seen := make(map[int64]struct{}, len(views))
	for _, v := range views {
		if _, dup := seen[v.ID]; dup {
			return recordError(kind, v.ID, "duplicate id")
		}
		seen[v.ID] = struct{}{}
		if v.Half < 1 || v.Half > m.cfg.MaxHalf {
			return recordError(kind, v.ID, "half %d does not exist (expected 1..%d)", v.Half, m.cfg.MaxHalf)
		}
		if !v.Type.Valid() {
			return recordError(kind, v.ID, "unknown event type %q", v.Type)
		}
		if v.Frame < 0 {
			return recordError(kind, v.ID, "negative frame %d", v.Frame)
		}
	}
	return nil
}

func (m *Matcher) matchPartition(p *partition, loc Locator, out *EventOutcome) {
	sort.SliceStable(p.ai, func(i, j int) bool { return lessView(p.ai[i], p.ai[j]) })
	sort.SliceStable(p.corrected, func(i, j int) bool { return lessView(p.corrected[i], p.corrected[j]) })

	usedAI := make([]bool, len(p.ai))
	usedCorr := make([]bool, len(p.corrected))

	// An AI event no reviewer acted on is its own ground truth. It never
	// competes for reviewer-added records, which stay misses unless a
	// reviewed AI event claims them.
	for i, a := range p.ai {
		if !a.Accepted {
			continue
		}
		usedAI[i] = true
		out.Matched = append(out.Matched, EventPair{AI: a, Corrected: a, Score: 1})
		out.CorrectedCount++
	}

	aiPitch := pitchAnchors(p.ai, loc)
	corrPitch := pitchAnchors(p.corrected, loc)

	var cands []candidate
	w := m.cfg.FrameWindow
	for i, a := range p.ai {
		if usedAI[i] {
			continue
		}
		// corrected is sorted by frame, so the window is a contiguous run.
		lo := sort.Search(len(p.corrected), func(j int) bool { return p.corrected[j].Frame >= a.Frame-w })
		for j := lo; j < len(p.corrected) && p.corrected[j].Frame <= a.Frame+w; j++ {
			c, ok := m.score(a, p.corrected[j], aiPitch[i], corrPitch[j])
			if !ok {
				continue
			}
			c.ai, c.corrected = i, j
			cands = append(cands, c)
		}
	}

	sort.Slice(cands, func(x, y int) bool {
		a, b := cands[x], cands[y]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.frameDiff != b.frameDiff {
			return a.frameDiff < b.frameDiff
		}
		if p.ai[a.ai].ID != p.ai[b.ai].ID {
			return p.ai[a.ai].ID < p.ai[b.ai].ID
		}
		return p.corrected[a.corrected].ID < p.corrected[b.corrected].ID
	})

	for _, c := range cands {
		if usedAI[c.ai] || usedCorr[c.corrected] {
			continue
		}
		usedAI[c.ai], usedCorr[c.corrected] = true, true
		pair := EventPair{
			AI:        p.ai[c.ai],
			Corrected: p.corrected[c.corrected],
			Score:     c.score,
			FrameDiff: c.frameDiff,
			DistanceM: c.distance,
		}
		if pair.Corrected.Deleted {
			out.Rejected = append(out.Rejected, pair)
		} else {
			out.Matched = append(out.Matched, pair)
		}
	}

	for i, used := range usedAI {
		if !used {
			out.Unmatched = append(out.Unmatched, p.ai[i])
		}
	}
	for j, used := range usedCorr {
		// A deleted ground-truth record with no AI counterpart asserts that
		// nothing happened, which nothing contradicts.
		if !used && !p.corrected[j].Deleted {
			out.Missed = append(out.Missed, p.corrected[j])
		}
	}
}

// score rates how compatible a and c are. It reports false when the pair is
// ineligible. Components without data drop out and the remaining weights
// are renormalised.
func (m *Matcher) score(a, c model.EventView, ap, cp *geometry.Point) (candidate, bool) {
	df := a.Frame - c.Frame
	if df < 0 {
		df = -df
	}
	if df > m.cfg.FrameWindow {
		return candidate{}, false
	}
	temporal := 1 - float64(df)/float64(m.cfg.FrameWindow)

	dist := m.distance(a, c, ap, cp)
	if dist != nil && m.cfg.MaxDistanceM > 0 && *dist > m.cfg.MaxDistanceM {
		return candidate{}, false
	}

	typ := m.cfg.PartialTypeScore
	if a.Type == c.Type {
		typ = 1
	}

	total := m.cfg.TemporalWeight*temporal + m.cfg.TypeWeight*typ
	weight := m.cfg.TemporalWeight + m.cfg.TypeWeight
	if dist != nil {
		scale := m.cfg.MaxDistanceM
		if scale <= 0 {
			scale = defaultSpatialScale
		}
		total += m.cfg.SpatialWeight * math.Max(0, 1-*dist/scale)
		weight += m.cfg.SpatialWeight
	}
	s := 0.0
	if weight > 0 {
		s = total / weight
	}
	return candidate{score: s, frameDiff: df, distance: dist}, true
}

// distance returns the metres between the start anchors of a and c: on the
// pitch when both convert, otherwise pixels scaled by MetersPerPixel,
// otherwise nil.
func (m *Matcher) distance(a, c model.EventView, ap, cp *geometry.Point) *float64 {
	if ap != nil && cp != nil {
		d := geometry.Distance(*ap, *cp)
		return &d
	}
	if a.Pixel != nil && c.Pixel != nil && m.cfg.MetersPerPixel > 0 {
		d := geometry.Distance(*a.Pixel, *c.Pixel) * m.cfg.MetersPerPixel
		return &d
	}
	return nil
}

// pitchAnchors resolves the pitch start location of every view, preferring a
// fresh cached value over converting the pixel anchor.
func pitchAnchors(views []model.EventView, loc Locator) []*geometry.Point {
	out := make([]*geometry.Point, len(views))
	if !valid(loc) {
		return out
	}
	for i, v := range views {
		if v.CachedPitch != nil && loc.Fresh(v.PitchVersion) {
			p := *v.CachedPitch
			out[i] = &p
			continue
		}
		if v.Pixel == nil {
			continue
		}
		if p, err := loc.PixelToPitch(*v.Pixel); err == nil {
			out[i] = &p
		}
	}
	return out
}

func lessView(a, b model.EventView) bool {
	if a.Frame != b.Frame {
		return a.Frame < b.Frame
	}
	return a.ID < b.ID
}
