package calibration

import (
	"math"

	"github.com/sells-group/review-cli/internal/config"
	"github.com/sells-group/review-cli/internal/geometry"
	"github.com/sells-group/review-cli/internal/model"
)

// ResolvePoints validates the pitch dimensions and every point of input and
// returns the points with their pitch locations filled in. Errors name the
// offending input.
func ResolvePoints(cfg config.CalibrationConfig, input model.CalibrationInput) ([]model.CalibrationPoint, error) {
	if err := checkDimension("pitch_length", input.PitchLength, cfg.MinPitchLengthM, cfg.MaxPitchLengthM); err != nil {
		return nil, err
	}
	if err := checkDimension("pitch_width", input.PitchWidth, cfg.MinPitchWidthM, cfg.MaxPitchWidthM); err != nil {
		return nil, err
	}
	if input.PitchWidth >= input.PitchLength {
		return nil, geometry.NewCalibrationError("pitch_width %.2f m must be less than pitch_length %.2f m",
			input.PitchWidth, input.PitchLength)
	}
	if len(input.Points) < geometry.MinPoints {
		return nil, geometry.NewCalibrationError("need at least %d points, got %d", geometry.MinPoints, len(input.Points))
	}

	standard := model.StandardPitchCoordinates(input.PitchLength, input.PitchWidth)
	seen := make(map[model.PointType]int, len(input.Points))
	out := make([]model.CalibrationPoint, len(input.Points))

	for i, in := range input.Points {
		label := in.Label()
		if !in.PointType.Valid() {
			return nil, geometry.PointError(i, label, "unknown point type")
		}
		if !finite(in.PixelX) || !finite(in.PixelY) {
			return nil, geometry.PointError(i, label, "pixel coordinates are not finite")
		}
		if (in.PitchX == nil) != (in.PitchY == nil) {
			return nil, geometry.PointError(i, label, "pitch_x and pitch_y must be given together")
		}

		var pitch geometry.Point
		switch {
		case in.PointType == model.PointCustom:
			if in.CustomLabel == "" {
				return nil, geometry.PointError(i, label, "custom points need a custom_label")
			}
			if in.PitchX == nil {
				return nil, geometry.PointError(i, label, "custom points need explicit pitch coordinates")
			}
			pitch = geometry.Pt(*in.PitchX, *in.PitchY)
		default:
			if j, dup := seen[in.PointType]; dup {
				return nil, geometry.PointError(i, label, "landmark already given as point %d", j)
			}
			seen[in.PointType] = i
			pitch = standard[in.PointType]
			if in.PitchX != nil {
				pitch = geometry.Pt(*in.PitchX, *in.PitchY)
			}
		}

		if !pitch.IsFinite() {
			return nil, geometry.PointError(i, label, "pitch coordinates are not finite")
		}
		m := cfg.PitchMarginM
		if pitch.X < -m || pitch.X > input.PitchLength+m || pitch.Y < -m || pitch.Y > input.PitchWidth+m {
			return nil, geometry.PointError(i, label,
				"pitch location (%.2f, %.2f) lies outside the %.1f x %.1f m pitch",
				pitch.X, pitch.Y, input.PitchLength, input.PitchWidth)
		}

		out[i] = model.CalibrationPoint{
			PointType: in.PointType,
			Label:     label,
			Pixel:     geometry.Pt(in.PixelX, in.PixelY),
			Pitch:     pitch,
		}
	}
	return out, nil
}

func checkDimension(name string, v, lo, hi float64) error {
	if !finite(v) || v <= 0 {
		return geometry.NewCalibrationError("%s must be a positive number of metres, got %v", name, v)
	}
	if (lo > 0 && v < lo) || (hi > 0 && v > hi) {
		return geometry.NewCalibrationError("%s %.2f m is outside the allowed range %.0f-%.0f m", name, v, lo, hi)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
