package model

import (
	"time"

	"github.com/sells-group/review-cli/internal/geometry"
)

// CalibrationPointInput is one reviewer-supplied correspondence. Pitch
// coordinates may be omitted for standard landmarks, in which case the
// canonical location for the pitch size is used.
type CalibrationPointInput struct {
	PointType   PointType `json:"point_type" yaml:"point_type"`
	PixelX      float64   `json:"pixel_x" yaml:"pixel_x"`
	PixelY      float64   `json:"pixel_y" yaml:"pixel_y"`
	PitchX      *float64  `json:"pitch_x,omitempty" yaml:"pitch_x,omitempty"`
	PitchY      *float64  `json:"pitch_y,omitempty" yaml:"pitch_y,omitempty"`
	CustomLabel string    `json:"custom_label,omitempty" yaml:"custom_label,omitempty"`
}

// Label returns the custom label for custom points and the point type
// otherwise.
func (p CalibrationPointInput) Label() string {
	if p.PointType == PointCustom && p.CustomLabel != "" {
		return p.CustomLabel
	}
	return string(p.PointType)
}

// CalibrationInput is a full point set submitted for one match.
type CalibrationInput struct {
	MatchID          int64                   `json:"match_id" yaml:"match_id"`
	PitchLength      float64                 `json:"pitch_length" yaml:"pitch_length"`
	PitchWidth       float64                 `json:"pitch_width" yaml:"pitch_width"`
	CalibrationFrame *int                    `json:"calibration_frame,omitempty" yaml:"calibration_frame,omitempty"`
	CalibratedBy     string                  `json:"calibrated_by,omitempty" yaml:"calibrated_by,omitempty"`
	Points           []CalibrationPointInput `json:"points" yaml:"points"`
}

// CalibrationPoint is a resolved correspondence owned by a Calibration.
type CalibrationPoint struct {
	PointType PointType      `json:"point_type"`
	Label     string         `json:"label,omitempty"`
	Pixel     geometry.Point `json:"pixel"`
	Pitch     geometry.Point `json:"pitch"`
	// Error is the distance in metres between Pitch and the reprojected pixel.
	Error float64 `json:"reprojection_error"`
}

// Calibration is the published transform for a match. It is never mutated
// after publication; recalibration replaces it wholesale.
type Calibration struct {
	MatchID              int64              `json:"match_id"`
	PitchLength          float64            `json:"pitch_length"`
	PitchWidth           float64            `json:"pitch_width"`
	Points               []CalibrationPoint `json:"points"`
	Homography           [9]float64         `json:"homography_matrix"`
	InverseHomography    [9]float64         `json:"inverse_homography_matrix"`
	ReprojectionError    float64            `json:"reprojection_error"`
	MaxReprojectionError float64            `json:"max_reprojection_error"`
	IsValid              bool               `json:"is_valid"`
	Version              int64              `json:"version"`
	CalibrationFrame     *int               `json:"calibration_frame,omitempty"`
	CalibratedBy         string             `json:"calibrated_by,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// PointCount returns the number of correspondences.
func (c *Calibration) PointCount() int {
	if c == nil {
		return 0
	}
	return len(c.Points)
}

// CalibrationStatus is an observational summary of a match's calibration.
type CalibrationStatus struct {
	MatchID           int64    `json:"match_id"`
	IsCalibrated      bool     `json:"is_calibrated"`
	IsValid           bool     `json:"is_valid"`
	PointCount        int      `json:"point_count"`
	ReprojectionError *float64 `json:"reprojection_error"`
	Version           int64    `json:"version,omitempty"`
}
