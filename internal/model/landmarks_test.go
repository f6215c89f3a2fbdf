package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/review-cli/internal/geometry"
)

func TestStandardPitchCoordinates(t *testing.T) {
	t.Parallel()

	pts := StandardPitchCoordinates(105, 68)

	tests := []struct {
		point PointType
		want  geometry.Point
	}{
		{PointCornerBottomLeft, geometry.Pt(0, 0)},
		{PointCornerTopRight, geometry.Pt(105, 68)},
		{PointCenterSpot, geometry.Pt(52.5, 34)},
		{PointCenterCircleTop, geometry.Pt(52.5, 43.15)},
		{PointPenaltySpotLeft, geometry.Pt(11, 34)},
		{PointPenaltySpotRight, geometry.Pt(94, 34)},
		{PointPenaltyAreaBottomRight, geometry.Pt(88.5, 13.85)},
		{PointGoalPostTopLeft, geometry.Pt(0, 37.66)},
		{PointHalfwayBottom, geometry.Pt(52.5, 0)},
	}
	for _, tt := range tests {
		t.Run(string(tt.point), func(t *testing.T) {
			t.Parallel()
			got := pts[tt.point]
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
		})
	}
	assert.Len(t, pts, 23)
	_, ok := pts[PointCustom]
	assert.False(t, ok)
}

func TestStandardPitchCoordinates_ScaleWithDimensions(t *testing.T) {
	t.Parallel()

	p, ok := StandardPoint(PointPenaltySpotRight, 100, 64)
	assert.True(t, ok)
	assert.Equal(t, geometry.Pt(89, 32), p)
}

func TestPointType_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, PointCornerTopLeft.Valid())
	assert.True(t, PointCustom.Valid())
	assert.False(t, PointType("touchline").Valid())
}

func TestEventType_Category(t *testing.T) {
	t.Parallel()

	c, ok := EventCross.Category()
	assert.True(t, ok)
	assert.Equal(t, CategoryPassing, c)

	c, ok = EventPenaltyKick.Category()
	assert.True(t, ok)
	assert.Equal(t, CategorySetPiece, c)

	_, ok = EventType("backheel").Category()
	assert.False(t, ok)
	assert.Len(t, EventTypes(), 60)
}
