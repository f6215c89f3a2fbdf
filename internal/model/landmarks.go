package model

import "github.com/sells-group/review-cli/internal/geometry"

// PointType names a pitch landmark used as a calibration reference.
type PointType string

// Standard landmarks. Left and right refer to the two ends of the pitch along
// its length; top and bottom to the two touchlines.
const (
	PointCornerTopLeft     PointType = "corner_top_left"
	PointCornerTopRight    PointType = "corner_top_right"
	PointCornerBottomLeft  PointType = "corner_bottom_left"
	PointCornerBottomRight PointType = "corner_bottom_right"

	PointCenterSpot         PointType = "center_spot"
	PointCenterCircleTop    PointType = "center_circle_top"
	PointCenterCircleBottom PointType = "center_circle_bottom"

	PointPenaltyAreaTopLeft    PointType = "penalty_area_top_left"
	PointPenaltyAreaBottomLeft PointType = "penalty_area_bottom_left"
	PointPenaltySpotLeft       PointType = "penalty_spot_left"
	PointGoalAreaTopLeft       PointType = "goal_area_top_left"
	PointGoalAreaBottomLeft    PointType = "goal_area_bottom_left"

	PointPenaltyAreaTopRight    PointType = "penalty_area_top_right"
	PointPenaltyAreaBottomRight PointType = "penalty_area_bottom_right"
	PointPenaltySpotRight       PointType = "penalty_spot_right"
	PointGoalAreaTopRight       PointType = "goal_area_top_right"
	PointGoalAreaBottomRight    PointType = "goal_area_bottom_right"

	PointGoalPostTopLeft     PointType = "goal_post_top_left"
	PointGoalPostBottomLeft  PointType = "goal_post_bottom_left"
	PointGoalPostTopRight    PointType = "goal_post_top_right"
	PointGoalPostBottomRight PointType = "goal_post_bottom_right"

	PointHalfwayTop    PointType = "halfway_top"
	PointHalfwayBottom PointType = "halfway_bottom"

	PointCustom PointType = "custom"
)

// Regulation markings in metres. They do not scale with the pitch.
const (
	PenaltyAreaDepth    = 16.5
	PenaltyAreaHalfSpan = 20.15
	GoalAreaDepth       = 5.5
	GoalAreaHalfSpan    = 9.15
	PenaltySpotDistance = 11.0
	CenterCircleRadius  = 9.15
	GoalHalfWidth       = 3.66

	DefaultPitchLength = 105.0
	DefaultPitchWidth  = 68.0
)

// StandardPitchCoordinates returns the canonical pitch location of every
// standard landmark for a pitch of the given size. The origin is the bottom
// left corner, x runs along the length and y along the width.
func StandardPitchCoordinates(length, width float64) map[PointType]geometry.Point {
	cx, cy := length/2, width/2
	return map[PointType]geometry.Point{
		PointCornerTopLeft:     geometry.Pt(0, width),
		PointCornerTopRight:    geometry.Pt(length, width),
		PointCornerBottomLeft:  geometry.Pt(0, 0),
		PointCornerBottomRight: geometry.Pt(length, 0),

		PointCenterSpot:         geometry.Pt(cx, cy),
		PointCenterCircleTop:    geometry.Pt(cx, cy+CenterCircleRadius),
		PointCenterCircleBottom: geometry.Pt(cx, cy-CenterCircleRadius),

		PointPenaltyAreaTopLeft:    geometry.Pt(PenaltyAreaDepth, cy+PenaltyAreaHalfSpan),
		PointPenaltyAreaBottomLeft: geometry.Pt(PenaltyAreaDepth, cy-PenaltyAreaHalfSpan),
		PointPenaltySpotLeft:       geometry.Pt(PenaltySpotDistance, cy),
		PointGoalAreaTopLeft:       geometry.Pt(GoalAreaDepth, cy+GoalAreaHalfSpan),
		PointGoalAreaBottomLeft:    geometry.Pt(GoalAreaDepth, cy-GoalAreaHalfSpan),

		PointPenaltyAreaTopRight:    geometry.Pt(length-PenaltyAreaDepth, cy+PenaltyAreaHalfSpan),
		PointPenaltyAreaBottomRight: geometry.Pt(length-PenaltyAreaDepth, cy-PenaltyAreaHalfSpan),
		PointPenaltySpotRight:       geometry.Pt(length-PenaltySpotDistance, cy),
		PointGoalAreaTopRight:       geometry.Pt(length-GoalAreaDepth, cy+GoalAreaHalfSpan),
		PointGoalAreaBottomRight:    geometry.Pt(length-GoalAreaDepth, cy-GoalAreaHalfSpan),

		PointGoalPostTopLeft:     geometry.Pt(0, cy+GoalHalfWidth),
		PointGoalPostBottomLeft:  geometry.Pt(0, cy-GoalHalfWidth),
		PointGoalPostTopRight:    geometry.Pt(length, cy+GoalHalfWidth),
		PointGoalPostBottomRight: geometry.Pt(length, cy-GoalHalfWidth),

		PointHalfwayTop:    geometry.Pt(cx, width),
		PointHalfwayBottom: geometry.Pt(cx, 0),
	}
}

// StandardPoint returns the canonical location of t. It reports false for
// custom and unknown point types.
func StandardPoint(t PointType, length, width float64) (geometry.Point, bool) {
	p, ok := StandardPitchCoordinates(length, width)[t]
	return p, ok
}

// Valid reports whether t is a standard landmark or custom.
func (t PointType) Valid() bool {
	if t == PointCustom {
		return true
	}
	_, ok := StandardPoint(t, DefaultPitchLength, DefaultPitchWidth)
	return ok
}
