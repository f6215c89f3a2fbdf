package matcher

import (
	"sort"

	"github.com/sells-group/review-cli/internal/model"
)

// TrackPair links an AI track to the reviewer's view of the same entity.
type TrackPair struct {
	AIID            int64
	CorrectedID     int64
	AITeam          model.TeamSide
	CorrectedTeam   model.TeamSide
	AIJersey        *int
	CorrectedJersey *int
	AIClass         model.DetectionClass
	CorrectedClass  model.DetectionClass
}

// TeamCorrect reports whether the AI team matches the reviewer's.
func (p TrackPair) TeamCorrect() bool { return p.AITeam == p.CorrectedTeam }

// HasJersey reports whether either side assigned a jersey number.
func (p TrackPair) HasJersey() bool { return p.AIJersey != nil || p.CorrectedJersey != nil }

// JerseyCorrect reports whether both sides agree on a jersey number.
func (p TrackPair) JerseyCorrect() bool {
	return p.AIJersey != nil && p.CorrectedJersey != nil && *p.AIJersey == *p.CorrectedJersey
}

// TrackOutcome partitions tracks by identity.
type TrackOutcome struct {
	Matched []TrackPair
	// Deleted AI tracks are false positives.
	Deleted []model.Track
	// Added are reviewer tracks with no AI counterpart: false negatives.
	Added []model.Track

	AICount        int
	CorrectedCount int
}

// TP returns the number of true positives.
func (o *TrackOutcome) TP() int { return len(o.Matched) }

// FP returns the number of false positives.
func (o *TrackOutcome) FP() int { return len(o.Deleted) }

// FN returns the number of false negatives.
func (o *TrackOutcome) FN() int { return len(o.Added) }

// TeamCounts returns the number of matched pairs and how many had the team
// right.
func (o *TrackOutcome) TeamCounts() (total, correct int) {
	for _, p := range o.Matched {
		total++
		if p.TeamCorrect() {
			correct++
		}
	}
	return total, correct
}

// JerseyCounts returns the number of matched pairs carrying a jersey number
// and how many the AI got right.
func (o *TrackOutcome) JerseyCounts() (total, correct int) {
	for _, p := range o.Matched {
		if !p.HasJersey() {
			continue
		}
		total++
		if p.JerseyCorrect() {
			correct++
		}
	}
	return total, correct
}

// MatchTracks pairs tracks by explicit identity. An AI track is the same
// entity as its own overlay or as the reviewer track whose SourceTrackID
// names it. Tracks are never discovered by similarity.
func MatchTracks(tracks []model.Track) (*TrackOutcome, error) {
	aiByID := make(map[int64]*model.Track)
	replacement := make(map[int64]*model.Track)
	var aiIDs []int64

	for i := range tracks {
		t := &tracks[i]
		if t.Origin != model.OriginAI {
			continue
		}
		if _, dup := aiByID[t.ID]; dup {
			return nil, recordError("track", t.ID, "duplicate id")
		}
		aiByID[t.ID] = t
		aiIDs = append(aiIDs, t.ID)
	}

	out := &TrackOutcome{AICount: len(aiIDs)}
	for i := range tracks {
		t := &tracks[i]
		if t.Origin == model.OriginAI || t.IsDeleted {
			continue
		}
		out.CorrectedCount++
		if t.SourceTrackID == nil {
			out.Added = append(out.Added, *t)
			continue
		}
		src := *t.SourceTrackID
		if _, ok := aiByID[src]; !ok {
			return nil, recordError("track", t.ID, "references unknown AI track %d", src)
		}
		if prev, dup := replacement[src]; dup {
			return nil, recordError("track", t.ID, "AI track %d is already replaced by track %d", src, prev.ID)
		}
		replacement[src] = t
	}

	sort.Slice(aiIDs, func(i, j int) bool { return aiIDs[i] < aiIDs[j] })
	for _, id := range aiIDs {
		a := aiByID[id]
		if a.IsDeleted {
			out.Deleted = append(out.Deleted, *a)
			// A replacement for a track the reviewer rejected describes an
			// entity the AI did not track.
			if r, ok := replacement[id]; ok {
				out.Added = append(out.Added, *r)
			}
			continue
		}

		pair := TrackPair{
			AIID:            a.ID,
			CorrectedID:     a.ID,
			AITeam:          orDefault(a.Team.AI, model.TeamUnknown),
			CorrectedTeam:   orDefault(a.Team.AI, model.TeamUnknown),
			AIClass:         orDefault(a.Class.AI, model.ClassUnknown),
			CorrectedClass:  orDefault(a.Class.AI, model.ClassUnknown),
			AIJersey:        a.Jersey.AI,
			CorrectedJersey: a.Jersey.AI,
		}
		if v, ok := a.Team.Effective(); ok {
			pair.CorrectedTeam = v
		}
		if v, ok := a.Class.Effective(); ok {
			pair.CorrectedClass = v
		}
		if a.Jersey.Corrected != nil {
			pair.CorrectedJersey = a.Jersey.Corrected
		}
		if r, ok := replacement[id]; ok {
			pair.CorrectedID = r.ID
			if v, ok := r.Team.Effective(); ok {
				pair.CorrectedTeam = v
			}
			if v, ok := r.Class.Effective(); ok {
				pair.CorrectedClass = v
			}
			if v, ok := r.Jersey.Effective(); ok {
				pair.CorrectedJersey = &v
			}
		}
		out.Matched = append(out.Matched, pair)
	}

	sort.Slice(out.Added, func(i, j int) bool { return out.Added[i].ID < out.Added[j].ID })
	return out, nil
}

func orDefault[T comparable](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}
