// Package geometry implements the planar projective geometry used to map
// broadcast video pixels onto pitch coordinates in meters.
package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Point is a 2D point in either pixel space or pitch space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Coord returns p as a go-geom coordinate.
func (p Point) Coord() geom.Coord { return geom.Coord{p.X, p.Y} }

// IsFinite reports whether both components are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return xy.Distance(a.Coord(), b.Coord())
}

// Correspondence pairs a pixel location with its known pitch location.
type Correspondence struct {
	Pixel Point
	Pitch Point
	Label string
}

// Collinear reports whether a, b and c lie on (or very near) a common line.
// tol is relative: twice the triangle area divided by the squared longest
// side, so the test does not depend on the coordinate scale.
func Collinear(a, b, c Point, tol float64) bool {
	cross := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	longest := math.Max(sqDist(a, b), math.Max(sqDist(b, c), sqDist(a, c)))
	if longest == 0 {
		return true
	}
	return math.Abs(cross)/longest < tol
}

func sqDist(a, b Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

// GeneralPosition reports whether the four points have no three collinear.
// On failure it returns the indices (into pts) of the first collinear triple.
func GeneralPosition(pts [4]Point, tol float64) ([3]int, bool) {
	triples := [4][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}
	for _, t := range triples {
		if Collinear(pts[t[0]], pts[t[1]], pts[t[2]], tol) {
			return t, false
		}
	}
	return [3]int{}, true
}

// findGeneralSubset searches for four correspondences that are in general
// position on both the pixel and the pitch side. The search is exhaustive,
// so callers must bound len(pairs).
func findGeneralSubset(pairs []Correspondence, tol float64) ([4]int, bool) {
	n := len(pairs)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				if Collinear(pairs[i].Pixel, pairs[j].Pixel, pairs[k].Pixel, tol) ||
					Collinear(pairs[i].Pitch, pairs[j].Pitch, pairs[k].Pitch, tol) {
					continue
				}
				for l := k + 1; l < n; l++ {
					idx := [4]int{i, j, k, l}
					if subsetGeneral(pairs, idx, tol) {
						return idx, true
					}
				}
			}
		}
	}
	return [4]int{}, false
}

func subsetGeneral(pairs []Correspondence, idx [4]int, tol float64) bool {
	var pix, pitch [4]Point
	for i, p := range idx {
		pix[i] = pairs[p].Pixel
		pitch[i] = pairs[p].Pitch
	}
	_, okPix := GeneralPosition(pix, tol)
	_, okPitch := GeneralPosition(pitch, tol)
	return okPix && okPitch
}
