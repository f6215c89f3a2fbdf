package geometry

import (
	"errors"
	"fmt"
)

// CalibrationError reports insufficient or degenerate calibration input.
// Index is the offending point index, or -1 when the problem is not tied to
// a single point.
type CalibrationError struct {
	Reason string
	Index  int
	Label  string
}

func (e *CalibrationError) Error() string {
	switch {
	case e.Index >= 0 && e.Label != "":
		return fmt.Sprintf("calibration: point %d (%s): %s", e.Index, e.Label, e.Reason)
	case e.Index >= 0:
		return fmt.Sprintf("calibration: point %d: %s", e.Index, e.Reason)
	default:
		return "calibration: " + e.Reason
	}
}

// NewCalibrationError returns a CalibrationError not tied to a single point.
func NewCalibrationError(format string, args ...any) *CalibrationError {
	return &CalibrationError{Reason: fmt.Sprintf(format, args...), Index: -1}
}

// PointError returns a CalibrationError for the point at index i.
func PointError(i int, label, format string, args ...any) *CalibrationError {
	return &CalibrationError{Reason: fmt.Sprintf(format, args...), Index: i, Label: label}
}

// TransformError reports a pixel/pitch conversion that could not be made,
// usually because no valid calibration exists.
type TransformError struct {
	Reason string
}

func (e *TransformError) Error() string {
	return "transform: " + e.Reason
}

// ErrNoCalibration is returned by conversions when the match has no valid calibration.
var ErrNoCalibration = &TransformError{Reason: "pitch coordinates unavailable: no valid calibration"}

// IsCalibrationError reports whether err (or any error in its chain) is a CalibrationError.
func IsCalibrationError(err error) bool {
	var ce *CalibrationError
	return errors.As(err, &ce)
}

// IsTransformError reports whether err (or any error in its chain) is a TransformError.
func IsTransformError(err error) bool {
	var te *TransformError
	return errors.As(err, &te)
}
