package annotations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/review-cli/internal/geometry"
	"github.com/sells-group/review-cli/internal/model"
)

const fixtureYAML = `
match_id: 12
calibration:
  pitch_length: 105
  pitch_width: 68
  points:
    - {point_type: corner_bottom_left, pixel_x: 100, pixel_y: 650}
    - {point_type: corner_bottom_right, pixel_x: 1180, pixel_y: 650}
    - {point_type: corner_top_right, pixel_x: 900, pixel_y: 180}
    - {point_type: corner_top_left, pixel_x: 380, pixel_y: 180}
events:
  - id: 1
    half: 1
    frame: {ai: 100}
    event_type: {ai: pass, corrected: cross}
    start: {ai: {x: 640, y: 360}}
    is_corrected: true
  - id: 2
    origin: ground_truth
    half: 2
    frame: {corrected: 4000}
    event_type: {corrected: shot}
    start: {corrected: {x: 900, y: 200}}
tracks:
  - id: 10
    track_id: 3
    team: {ai: home, corrected: away}
    jersey_number: {ai: 7}
ball_positions:
  - id: 20
    frame: 100
    pixel: {ai: {x: 640, y: 360}}
    confidence: 0.9
    is_visible: true
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	f, err := Load(writeFile(t, "match.yaml", fixtureYAML))
	require.NoError(t, err)

	assert.Equal(t, int64(12), f.MatchID)
	require.NotNil(t, f.Calibration)
	assert.Equal(t, int64(12), f.Calibration.MatchID)
	assert.Len(t, f.Calibration.Points, 4)
	assert.Equal(t, model.PointCornerBottomLeft, f.Calibration.Points[0].PointType)

	require.Len(t, f.Events, 2)
	ev := f.Events[0]
	assert.Equal(t, int64(12), ev.MatchID)
	assert.Equal(t, model.OriginAI, ev.Origin)
	assert.Equal(t, model.EventCross, ev.Type.Value())
	assert.True(t, ev.Type.Changed())
	assert.Equal(t, geometry.Pt(640, 360), ev.Start.Value())

	assert.Equal(t, model.OriginCorrected, f.Events[1].Origin)

	require.Len(t, f.Tracks, 1)
	assert.Equal(t, model.TeamAway, f.Tracks[0].Team.Value())
	assert.Equal(t, 7, f.Tracks[0].Jersey.Value())

	require.Len(t, f.Balls, 1)
	assert.Equal(t, 100, f.Balls[0].Frame)
	assert.False(t, f.Empty())

	ann := f.Annotations()
	assert.Equal(t, int64(12), ann.MatchID)
	assert.Len(t, ann.Events, 2)
}

func TestLoad_JSON(t *testing.T) {
	body := `{
		"match_id": 4,
		"events": [
			{"id": 1, "origin": "ai", "half": 1, "frame": {"ai": 10},
			 "event_type": {"ai": "shot"}, "start": {"ai": {"x": 1, "y": 2}}}
		]
	}`
	f, err := Load(writeFile(t, "match.json", body))
	require.NoError(t, err)
	require.Len(t, f.Events, 1)
	assert.Equal(t, int64(4), f.Events[0].MatchID)
	assert.Equal(t, model.EventShot, f.Events[0].Type.Value())
	assert.Nil(t, f.Calibration)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "annotations: read")
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"no match id", "events: []", "match_id is required"},
		{"unknown field", "match_id: 1\nsurprise: true", "field surprise not found"},
		{"bad origin", "match_id: 1\nevents:\n  - {id: 1, origin: robot}", "origin"},
		{"duplicate id", "match_id: 1\ntracks:\n  - {id: 3}\n  - {id: 3}", "duplicate track id 3"},
		{"zero id", "match_id: 1\nball_positions:\n  - {id: 0, frame: 1}", "ball position id must be positive"},
		{"foreign record", "match_id: 1\nevents:\n  - {id: 1, match_id: 2}", "belongs to match 2"},
		{"foreign calibration", "match_id: 1\ncalibration: {match_id: 2, pitch_length: 105, pitch_width: 68}", "calibration is for match 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body), false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_MatchIDFromCalibration(t *testing.T) {
	t.Parallel()

	f, err := Parse([]byte(`calibration: {match_id: 9, pitch_length: 105, pitch_width: 68}`), false)
	require.NoError(t, err)
	assert.Equal(t, int64(9), f.MatchID)
	assert.True(t, f.Empty())
}
