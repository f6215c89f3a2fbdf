package calibration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/review-cli/internal/geometry"
	"github.com/sells-group/review-cli/internal/model"
)

func f(v float64) *float64 { return &v }

func TestResolvePoints_DefaultsToStandardCoordinates(t *testing.T) {
	pts, err := ResolvePoints(DefaultConfig(), cornersInput(1))
	require.NoError(t, err)

	assert.Equal(t, geometry.Pt(0, 0), pts[0].Pitch)
	assert.Equal(t, geometry.Pt(105, 0), pts[1].Pitch)
	assert.Equal(t, geometry.Pt(105, 68), pts[2].Pitch)
	assert.Equal(t, geometry.Pt(0, 68), pts[3].Pitch)
	assert.Equal(t, "corner_bottom_left", pts[0].Label)
}

func TestResolvePoints_ExplicitAndCustom(t *testing.T) {
	in := cornersInput(1)
	in.Points[0].PitchX, in.Points[0].PitchY = f(0.5), f(0.5)
	in.Points = append(in.Points, model.CalibrationPointInput{
		PointType: model.PointCustom, CustomLabel: "advert_board_corner",
		PixelX: 500, PixelY: 400, PitchX: f(40), PitchY: f(30),
	})

	pts, err := ResolvePoints(DefaultConfig(), in)
	require.NoError(t, err)
	assert.Equal(t, geometry.Pt(0.5, 0.5), pts[0].Pitch)
	assert.Equal(t, "advert_board_corner", pts[4].Label)
	assert.Equal(t, geometry.Pt(40, 30), pts[4].Pitch)
}

func TestResolvePoints_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*model.CalibrationInput)
		wantMsg string
	}{
		{"zero length", func(in *model.CalibrationInput) { in.PitchLength = 0 }, "pitch_length must be a positive"},
		{"nan width", func(in *model.CalibrationInput) { in.PitchWidth = math.NaN() }, "pitch_width must be a positive"},
		{"width too small", func(in *model.CalibrationInput) { in.PitchWidth = 30 }, "pitch_width 30.00 m is outside"},
		{"too few points", func(in *model.CalibrationInput) { in.Points = in.Points[:2] }, "need at least 4 points"},
		{"unknown type", func(in *model.CalibrationInput) { in.Points[1].PointType = "touchline" }, "point 1 (touchline): unknown point type"},
		{"infinite pixel", func(in *model.CalibrationInput) { in.Points[2].PixelY = math.Inf(1) }, "point 2 (corner_top_right): pixel coordinates are not finite"},
		{"half pitch coordinates", func(in *model.CalibrationInput) { in.Points[0].PitchX = f(1) }, "given together"},
		{"custom without label", func(in *model.CalibrationInput) {
			in.Points[3] = model.CalibrationPointInput{PointType: model.PointCustom, PixelX: 1, PixelY: 1, PitchX: f(1), PitchY: f(1)}
		}, "custom_label"},
		{"custom without pitch", func(in *model.CalibrationInput) {
			in.Points[3] = model.CalibrationPointInput{PointType: model.PointCustom, CustomLabel: "flag", PixelX: 1, PixelY: 1}
		}, "point 3 (flag): custom points need explicit pitch coordinates"},
		{"duplicate landmark", func(in *model.CalibrationInput) { in.Points[3].PointType = model.PointCornerBottomLeft }, "already given as point 0"},
		{"outside pitch", func(in *model.CalibrationInput) { in.Points[0].PitchX, in.Points[0].PitchY = f(-20), f(0) }, "lies outside"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := cornersInput(1)
			tt.mutate(&in)
			_, err := ResolvePoints(DefaultConfig(), in)
			require.Error(t, err)
			assert.True(t, geometry.IsCalibrationError(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLocator_Nil(t *testing.T) {
	var loc *Locator
	assert.False(t, loc.Valid())
	assert.Zero(t, loc.Version())
	assert.False(t, loc.Fresh(0))
	assert.Nil(t, loc.Calibration())

	e := model.Event{Start: model.AIValue(geometry.Pt(1, 1)), StartPitch: &geometry.Point{X: 3}, PitchVersion: 2}
	assert.False(t, loc.ConvertEvent(&e))
	assert.Nil(t, e.StartPitch)
	assert.Zero(t, e.PitchVersion)
}
