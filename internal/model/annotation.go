package model

import (
	"fmt"
	"strings"

	"github.com/sells-group/review-cli/internal/geometry"
)

// Origin tags who produced an annotation record.
type Origin string

// Origins.
const (
	OriginAI        Origin = "ai"
	OriginCorrected Origin = "corrected"
)

// ParseOrigin accepts "ai", "corrected" and the alias "ground_truth".
func ParseOrigin(s string) (Origin, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ai", "":
		return OriginAI, nil
	case "corrected", "ground_truth":
		return OriginCorrected, nil
	}
	return "", fmt.Errorf("model: unknown origin %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Origin) UnmarshalText(b []byte) error {
	v, err := ParseOrigin(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// TeamSide is the team a track belongs to.
type TeamSide string

// Team sides.
const (
	TeamHome     TeamSide = "home"
	TeamAway     TeamSide = "away"
	TeamReferee  TeamSide = "referee"
	TeamLinesman TeamSide = "linesman"
	TeamUnknown  TeamSide = "unknown"
)

// DetectionClass is the object class assigned by the detector.
type DetectionClass string

// Detection classes.
const (
	ClassPlayer     DetectionClass = "player"
	ClassGoalkeeper DetectionClass = "goalkeeper"
	ClassReferee    DetectionClass = "referee"
	ClassLinesman   DetectionClass = "linesman"
	ClassBall       DetectionClass = "ball"
	ClassUnknown    DetectionClass = "unknown"
)

// Event is a single annotated match event. AI-origin events carry the AI
// values in their overlays and any reviewer changes alongside; corrected
// origin events were added by a reviewer and carry only corrected values.
type Event struct {
	ID      int64  `json:"id" yaml:"id"`
	MatchID int64  `json:"match_id" yaml:"match_id"`
	Origin  Origin `json:"origin" yaml:"origin"`
	Half    int    `json:"half" yaml:"half"`

	Frame    Overlay[int]            `json:"frame" yaml:"frame"`
	FrameEnd *int                    `json:"frame_end,omitempty" yaml:"frame_end,omitempty"`
	Type     Overlay[EventType]      `json:"event_type" yaml:"event_type"`
	Start    Overlay[geometry.Point] `json:"start" yaml:"start"`
	End      *geometry.Point         `json:"end,omitempty" yaml:"end,omitempty"`

	// StartPitch and EndPitch cache the pitch location of the effective
	// pixel anchors. They are only trusted when PitchVersion matches the
	// active calibration.
	StartPitch   *geometry.Point `json:"start_pitch,omitempty" yaml:"start_pitch,omitempty"`
	EndPitch     *geometry.Point `json:"end_pitch,omitempty" yaml:"end_pitch,omitempty"`
	PitchVersion int64           `json:"pitch_version,omitempty" yaml:"pitch_version,omitempty"`

	PlayerTrackID   *int64   `json:"player_track_id,omitempty" yaml:"player_track_id,omitempty"`
	TargetTrackID   *int64   `json:"target_track_id,omitempty" yaml:"target_track_id,omitempty"`
	OpponentTrackID *int64   `json:"opponent_track_id,omitempty" yaml:"opponent_track_id,omitempty"`
	Confidence      *float64 `json:"ai_confidence,omitempty" yaml:"ai_confidence,omitempty"`

	IsCorrected bool `json:"is_corrected" yaml:"is_corrected"`
	IsDeleted   bool `json:"is_deleted" yaml:"is_deleted"`
	IsVerified  bool `json:"is_verified" yaml:"is_verified"`
}

// Changed reports whether a reviewer altered or deleted the event.
func (e *Event) Changed() bool {
	return e.IsCorrected || e.IsDeleted ||
		e.Frame.Changed() || e.Type.Changed() || e.Start.Changed()
}

// Reviewed reports whether a reviewer has acted on the event, including
// verifying it unchanged.
func (e *Event) Reviewed() bool {
	return e.IsVerified || e.Changed() ||
		e.Frame.IsCorrected() || e.Type.IsCorrected() || e.Start.IsCorrected()
}

// Category returns the category of the effective event type.
func (e *Event) Category() EventCategory {
	c, _ := e.Type.Value().Category()
	return c
}

// EventView is a flattened, read-only projection of an event as seen by one
// side of the comparison.
type EventView struct {
	ID           int64
	Half         int
	Frame        int
	Type         EventType
	Category     EventCategory
	Pixel        *geometry.Point
	CachedPitch  *geometry.Point
	PitchVersion int64
	Deleted      bool
	// Accepted marks an AI view no reviewer acted on. It stands as its own
	// ground truth and never pairs with another record.
	Accepted bool
}

// AIView projects the values the AI originally produced. It reports false
// for events the AI never produced.
func (e *Event) AIView() (EventView, bool) {
	if e.Origin != OriginAI {
		return EventView{}, false
	}
	frame, ok := e.Frame.Original()
	if !ok {
		return EventView{}, false
	}
	t, _ := e.Type.Original()
	c, _ := t.Category()
	v := EventView{ID: e.ID, Half: e.Half, Frame: frame, Type: t, Category: c, Accepted: !e.Reviewed()}
	if p, ok := e.Start.Original(); ok {
		v.Pixel = &p
		// The cache reflects the effective anchor, which is the AI anchor
		// unless a reviewer moved it.
		if !e.Start.Changed() {
			v.CachedPitch = e.StartPitch
			v.PitchVersion = e.PitchVersion
		}
	}
	return v, true
}

// CorrectedView projects the effective values a reviewer signed off on.
func (e *Event) CorrectedView() EventView {
	v := EventView{
		ID:           e.ID,
		Half:         e.Half,
		Frame:        e.Frame.Value(),
		Type:         e.Type.Value(),
		Category:     e.Category(),
		CachedPitch:  e.StartPitch,
		PitchVersion: e.PitchVersion,
		Deleted:      e.IsDeleted,
	}
	if p, ok := e.Start.Effective(); ok {
		v.Pixel = &p
	}
	return v
}

// SplitEvents separates events into the AI stream and the ground-truth
// stream. Every AI-origin event contributes its AI values. Ground truth is
// the effective view of every reviewed AI event plus every corrected-origin
// event. Unreviewed AI events carry Accepted instead: the matcher pairs each
// with itself as a confirmed detection.
func SplitEvents(events []Event) (ai, corrected []EventView) {
	for i := range events {
		e := &events[i]
		if v, ok := e.AIView(); ok {
			ai = append(ai, v)
			if e.Reviewed() {
				corrected = append(corrected, e.CorrectedView())
			}
			continue
		}
		corrected = append(corrected, e.CorrectedView())
	}
	return ai, corrected
}

// Track is a persistent identity assigned by the tracker. Corrected-origin
// tracks were added by a reviewer; SourceTrackID links one to the AI track it
// replaces.
type Track struct {
	ID            int64                   `json:"id" yaml:"id"`
	MatchID       int64                   `json:"match_id" yaml:"match_id"`
	TrackerID     int64                   `json:"track_id" yaml:"track_id"`
	Origin        Origin                  `json:"origin" yaml:"origin"`
	Team          Overlay[TeamSide]       `json:"team" yaml:"team"`
	Class         Overlay[DetectionClass] `json:"detection_class" yaml:"detection_class"`
	Jersey        Overlay[int]            `json:"jersey_number" yaml:"jersey_number"`
	FirstFrame    int                     `json:"first_frame" yaml:"first_frame"`
	LastFrame     int                     `json:"last_frame" yaml:"last_frame"`
	IsReviewed    bool                    `json:"is_reviewed" yaml:"is_reviewed"`
	IsDeleted     bool                    `json:"is_deleted" yaml:"is_deleted"`
	SourceTrackID *int64                  `json:"source_track_id,omitempty" yaml:"source_track_id,omitempty"`
}

// BallPosition is the ball location in one frame.
type BallPosition struct {
	ID           int64                   `json:"id" yaml:"id"`
	MatchID      int64                   `json:"match_id" yaml:"match_id"`
	Frame        int                     `json:"frame" yaml:"frame"`
	Origin       Origin                  `json:"origin" yaml:"origin"`
	Pixel        Overlay[geometry.Point] `json:"pixel" yaml:"pixel"`
	Pitch        *geometry.Point         `json:"pitch,omitempty" yaml:"pitch,omitempty"`
	PitchVersion int64                   `json:"pitch_version,omitempty" yaml:"pitch_version,omitempty"`
	Confidence   float64                 `json:"confidence" yaml:"confidence"`
	IsVisible    bool                    `json:"is_visible" yaml:"is_visible"`
	IsDeleted    bool                    `json:"is_deleted" yaml:"is_deleted"`
}

// MatchAnnotations is every annotation record stored for one match.
type MatchAnnotations struct {
	MatchID int64          `json:"match_id" yaml:"match_id"`
	Events  []Event        `json:"events" yaml:"events"`
	Tracks  []Track        `json:"tracks" yaml:"tracks"`
	Balls   []BallPosition `json:"ball_positions" yaml:"ball_positions"`
}

// CorrectionsCount returns the number of records a reviewer touched.
func (m *MatchAnnotations) CorrectionsCount() (events, tracks, balls int) {
	for i := range m.Events {
		if m.Events[i].Origin == OriginCorrected || m.Events[i].Changed() {
			events++
		}
	}
	for i := range m.Tracks {
		t := &m.Tracks[i]
		if t.Origin == OriginCorrected || t.IsDeleted || t.Team.Changed() || t.Jersey.Changed() || t.Class.Changed() {
			tracks++
		}
	}
	for i := range m.Balls {
		b := &m.Balls[i]
		if b.Origin == OriginCorrected || b.IsDeleted || b.Pixel.IsCorrected() {
			balls++
		}
	}
	return events, tracks, balls
}
