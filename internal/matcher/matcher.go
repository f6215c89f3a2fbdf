// Package matcher aligns AI-produced annotations with reviewer ground truth
// for one match and classifies every record as a true positive, a false
// positive or a false negative.
package matcher

import (
	"github.com/sells-group/review-cli/internal/config"
	"github.com/sells-group/review-cli/internal/geometry"
	"github.com/sells-group/review-cli/internal/model"
)

// Locator converts pixel anchors to pitch metres. A nil or uncalibrated
// locator is acceptable: spatial scoring then falls back to pixels.
type Locator interface {
	Valid() bool
	PixelToPitch(p geometry.Point) (geometry.Point, error)
	Fresh(version int64) bool
}

// DefaultConfig returns a config.MatcherConfig with sensible defaults. The
// frame window assumes broadcast footage at 25 to 30 fps.
func DefaultConfig() config.MatcherConfig {
	return config.MatcherConfig{
		FrameWindow:      75,
		TemporalWeight:   0.6,
		SpatialWeight:    0.3,
		TypeWeight:       0.1,
		PartialTypeScore: 0.5,
		MetersPerPixel:   0.1,
		MaxDistanceM:     30,
		MaxHalf:          4,
		MaxPartitionSize: 2000,
	}
}

// Matcher is stateless apart from its configuration and safe for concurrent
// use.
type Matcher struct {
	cfg config.MatcherConfig
}

// New creates a Matcher. Zero-valued limits fall back to DefaultConfig.
func New(cfg config.MatcherConfig) *Matcher {
	def := DefaultConfig()
	if cfg.FrameWindow <= 0 {
		cfg.FrameWindow = def.FrameWindow
	}
	if cfg.TemporalWeight+cfg.SpatialWeight+cfg.TypeWeight <= 0 {
		cfg.TemporalWeight, cfg.SpatialWeight, cfg.TypeWeight = def.TemporalWeight, def.SpatialWeight, def.TypeWeight
	}
	if cfg.MaxHalf <= 0 {
		cfg.MaxHalf = def.MaxHalf
	}
	if cfg.MaxPartitionSize <= 0 {
		cfg.MaxPartitionSize = def.MaxPartitionSize
	}
	return &Matcher{cfg: cfg}
}

// Config returns the effective configuration.
func (m *Matcher) Config() config.MatcherConfig { return m.cfg }

// Outcome is the full matching result for one match.
type Outcome struct {
	MatchID    int64
	Calibrated bool
	Events     EventOutcome
	Tracks     TrackOutcome
	Balls      BallOutcome
}

// Match runs event, track and ball matching for ann.
func (m *Matcher) Match(ann *model.MatchAnnotations, loc Locator) (*Outcome, error) {
	events, err := m.MatchEvents(ann.Events, loc)
	if err != nil {
		return nil, err
	}
	tracks, err := MatchTracks(ann.Tracks)
	if err != nil {
		return nil, err
	}
	balls, err := MatchBalls(ann.Balls, loc)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		MatchID:    ann.MatchID,
		Calibrated: valid(loc),
		Events:     *events,
		Tracks:     *tracks,
		Balls:      *balls,
	}, nil
}

func valid(loc Locator) bool {
	return loc != nil && loc.Valid()
}
