package calibration

import (
	"github.com/sells-group/review-cli/internal/geometry"
	"github.com/sells-group/review-cli/internal/model"
)

// Locator is an immutable view of one published calibration. A nil Locator
// is usable and behaves as "no calibration": conversions fail with
// geometry.ErrNoCalibration and cached pitch fields are never fresh.
type Locator struct {
	cal *model.Calibration
	fwd *geometry.Homography
	inv *geometry.Homography
}

func newLocator(cal *model.Calibration) (*Locator, error) {
	fwd, err := geometry.NewHomography(cal.Homography)
	if err != nil {
		return nil, err
	}
	inv, err := geometry.NewHomography(cal.InverseHomography)
	if err != nil {
		return nil, err
	}
	return &Locator{cal: cal, fwd: fwd, inv: inv}, nil
}

// Calibration returns the underlying calibration, or nil.
func (l *Locator) Calibration() *model.Calibration {
	if l == nil {
		return nil
	}
	return l.cal
}

// Valid reports whether conversions are available.
func (l *Locator) Valid() bool {
	return l != nil && l.cal.IsValid
}

// Version returns the calibration version, or 0 without one.
func (l *Locator) Version() int64 {
	if l == nil {
		return 0
	}
	return l.cal.Version
}

// Fresh reports whether a pitch field cached at version v was computed with
// this calibration.
func (l *Locator) Fresh(v int64) bool {
	return l.Valid() && v != 0 && v == l.cal.Version
}

// PixelToPitch maps a pixel location to pitch metres.
func (l *Locator) PixelToPitch(p geometry.Point) (geometry.Point, error) {
	if !l.Valid() {
		return geometry.Point{}, geometry.ErrNoCalibration
	}
	return l.fwd.Apply(p)
}

// PitchToPixel maps pitch metres to a pixel location.
func (l *Locator) PitchToPixel(p geometry.Point) (geometry.Point, error) {
	if !l.Valid() {
		return geometry.Point{}, geometry.ErrNoCalibration
	}
	return l.inv.Apply(p)
}

// ConvertEvent fills the cached pitch anchors of e from its effective pixel
// anchors and stamps the calibration version. Without a valid calibration
// the cached fields are cleared. It reports whether a start location was
// converted.
func (l *Locator) ConvertEvent(e *model.Event) bool {
	e.StartPitch, e.EndPitch, e.PitchVersion = nil, nil, 0
	if !l.Valid() {
		return false
	}
	e.PitchVersion = l.cal.Version
	if e.End != nil {
		if p, err := l.PixelToPitch(*e.End); err == nil {
			e.EndPitch = &p
		}
	}
	start, ok := e.Start.Effective()
	if !ok {
		return false
	}
	p, err := l.PixelToPitch(start)
	if err != nil {
		return false
	}
	e.StartPitch = &p
	return true
}

// ConvertBall fills the cached pitch location of b from its effective pixel
// location.
func (l *Locator) ConvertBall(b *model.BallPosition) bool {
	b.Pitch, b.PitchVersion = nil, 0
	if !l.Valid() {
		return false
	}
	b.PitchVersion = l.cal.Version
	px, ok := b.Pixel.Effective()
	if !ok {
		return false
	}
	p, err := l.PixelToPitch(px)
	if err != nil {
		return false
	}
	b.Pitch = &p
	return true
}
