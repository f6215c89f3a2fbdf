package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MinPoints is the number of correspondences needed to fix a homography.
const MinPoints = 4

const (
	// infinityEpsilon bounds the homogeneous w below which a point is
	// treated as mapping to the line at infinity.
	infinityEpsilon = 1e-12
	// rankEpsilon bounds the ratio of the second-smallest to the largest
	// singular value of the DLT system; below it the null space is not unique.
	rankEpsilon = 1e-10
)

// SolveOptions tunes the homography solve.
type SolveOptions struct {
	// CollinearityTolerance is the relative area threshold used by Collinear.
	CollinearityTolerance float64
	// MaxPoints bounds the exhaustive general-position search.
	MaxPoints int
}

// DefaultSolveOptions returns the options used when none are configured.
func DefaultSolveOptions() SolveOptions {
	return SolveOptions{
		CollinearityTolerance: 1e-3,
		MaxPoints:             32,
	}
}

// Homography is a 3x3 projective transform stored row-major, normalised so
// that the bottom-right element is 1 whenever that is numerically possible.
type Homography struct {
	m [9]float64
}

// NewHomography wraps a row-major 3x3 matrix.
func NewHomography(m [9]float64) (*Homography, error) {
	allZero := true
	for i, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &TransformError{Reason: fmt.Sprintf("matrix element %d is not finite", i)}
		}
		if v != 0 {
			allZero = false
		}
	}
	if allZero {
		return nil, &TransformError{Reason: "matrix is all zeros"}
	}
	return &Homography{m: m}, nil
}

// Identity returns the identity transform.
func Identity() *Homography {
	return &Homography{m: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// Matrix returns the row-major matrix.
func (h *Homography) Matrix() [9]float64 { return h.m }

// Apply maps p through the transform.
func (h *Homography) Apply(p Point) (Point, error) {
	if h == nil {
		return Point{}, ErrNoCalibration
	}
	m := h.m
	w := m[6]*p.X + m[7]*p.Y + m[8]
	if math.Abs(w) < infinityEpsilon {
		return Point{}, &TransformError{Reason: fmt.Sprintf("point (%.3f, %.3f) maps to infinity", p.X, p.Y)}
	}
	out := Point{
		X: (m[0]*p.X + m[1]*p.Y + m[2]) / w,
		Y: (m[3]*p.X + m[4]*p.Y + m[5]) / w,
	}
	if !out.IsFinite() {
		return Point{}, &TransformError{Reason: fmt.Sprintf("point (%.3f, %.3f) has no finite image", p.X, p.Y)}
	}
	return out, nil
}

// Condition returns the 2-norm condition number of the matrix.
func (h *Homography) Condition() float64 {
	return mat.Cond(mat.NewDense(3, 3, h.m[:]), 2)
}

// Inverse returns the inverse transform. It refuses matrices whose
// condition number exceeds maxCond, since their inverse carries no
// meaningful digits.
func (h *Homography) Inverse(maxCond float64) (*Homography, error) {
	d := mat.NewDense(3, 3, h.m[:])
	cond := mat.Cond(d, 2)
	if math.IsNaN(cond) || math.IsInf(cond, 0) || (maxCond > 0 && cond > maxCond) {
		return nil, &TransformError{Reason: fmt.Sprintf("matrix is near-singular (condition number %.3g)", cond)}
	}
	if det := mat.Det(d); det == 0 || math.IsNaN(det) {
		return nil, &TransformError{Reason: "matrix is singular"}
	}

	var inv mat.Dense
	if err := inv.Inverse(d); err != nil {
		return nil, &TransformError{Reason: "invert matrix: " + err.Error()}
	}
	return fromDense(&inv)
}

// SolveHomography fits the transform mapping each pair's Pixel to its Pitch.
// Exactly four pairs are solved exactly; more are solved in the least-squares
// sense with a normalised direct linear transform. Degenerate input yields a
// *CalibrationError.
func SolveHomography(pairs []Correspondence, opts SolveOptions) (*Homography, error) {
	if opts.CollinearityTolerance <= 0 {
		opts.CollinearityTolerance = DefaultSolveOptions().CollinearityTolerance
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = DefaultSolveOptions().MaxPoints
	}

	if err := checkPairs(pairs, opts); err != nil {
		return nil, err
	}

	pixels := make([]Point, len(pairs))
	pitches := make([]Point, len(pairs))
	for i, p := range pairs {
		pixels[i] = p.Pixel
		pitches[i] = p.Pitch
	}
	tPix, _ := normalizer(pixels)
	tPitch, tPitchInv := normalizer(pitches)

	npix := make([]Point, len(pairs))
	npitch := make([]Point, len(pairs))
	for i := range pairs {
		npix[i] = applyAffine(tPix, pixels[i])
		npitch[i] = applyAffine(tPitch, pitches[i])
	}

	var hn *mat.Dense
	var err error
	if len(pairs) == MinPoints {
		hn, err = solveExact(npix, npitch)
	} else {
		hn, err = solveDLT(npix, npitch)
	}
	if err != nil {
		return nil, err
	}

	// H = T_pitch^-1 * Hn * T_pix
	var tmp, full mat.Dense
	tmp.Mul(tPitchInv, hn)
	full.Mul(&tmp, tPix)

	h, err := fromDense(&full)
	if err != nil {
		return nil, NewCalibrationError("solved transform is unusable: %v", err)
	}
	return h, nil
}

func checkPairs(pairs []Correspondence, opts SolveOptions) error {
	if len(pairs) < MinPoints {
		return NewCalibrationError("need at least %d points, got %d", MinPoints, len(pairs))
	}
	if len(pairs) > opts.MaxPoints {
		return NewCalibrationError("at most %d points are supported, got %d", opts.MaxPoints, len(pairs))
	}
	for i, p := range pairs {
		if !p.Pixel.IsFinite() {
			return PointError(i, p.Label, "pixel coordinates are not finite")
		}
		if !p.Pitch.IsFinite() {
			return PointError(i, p.Label, "pitch coordinates are not finite")
		}
		for j := 0; j < i; j++ {
			if p.Pixel == pairs[j].Pixel {
				return PointError(i, p.Label, "duplicates the pixel location of point %d", j)
			}
			if p.Pitch == pairs[j].Pitch {
				return PointError(i, p.Label, "duplicates the pitch location of point %d", j)
			}
		}
	}

	if len(pairs) == MinPoints {
		var pix, pitch [4]Point
		for i := range pairs {
			pix[i] = pairs[i].Pixel
			pitch[i] = pairs[i].Pitch
		}
		if t, ok := GeneralPosition(pix, opts.CollinearityTolerance); !ok {
			return collinearError("pixel", pairs, t)
		}
		if t, ok := GeneralPosition(pitch, opts.CollinearityTolerance); !ok {
			return collinearError("pitch", pairs, t)
		}
		return nil
	}

	if _, ok := findGeneralSubset(pairs, opts.CollinearityTolerance); !ok {
		return NewCalibrationError("no four points are in general position; at most two points may share a line")
	}
	return nil
}

func collinearError(side string, pairs []Correspondence, t [3]int) error {
	return NewCalibrationError("points %s, %s and %s are collinear in %s space",
		pointName(pairs, t[0]), pointName(pairs, t[1]), pointName(pairs, t[2]), side)
}

func pointName(pairs []Correspondence, i int) string {
	if pairs[i].Label != "" {
		return fmt.Sprintf("%d (%s)", i, pairs[i].Label)
	}
	return fmt.Sprintf("%d", i)
}

// normalizer returns the similarity transform that moves the centroid of pts
// to the origin and scales their mean distance to sqrt(2), and its inverse.
func normalizer(pts []Point) (*mat.Dense, *mat.Dense) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var mean float64
	for _, p := range pts {
		mean += math.Hypot(p.X-cx, p.Y-cy)
	}
	mean /= n
	s := 1.0
	if mean > 0 {
		s = math.Sqrt2 / mean
	}

	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
	inv := mat.NewDense(3, 3, []float64{
		1 / s, 0, cx,
		0, 1 / s, cy,
		0, 0, 1,
	})
	return t, inv
}

func applyAffine(t *mat.Dense, p Point) Point {
	return Point{
		X: t.At(0, 0)*p.X + t.At(0, 1)*p.Y + t.At(0, 2),
		Y: t.At(1, 0)*p.X + t.At(1, 1)*p.Y + t.At(1, 2),
	}
}

// solveExact solves the 8x8 system obtained by fixing h33 = 1.
func solveExact(src, dst []Point) (*mat.Dense, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < MinPoints; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		r := 2 * i

		a.Set(r, 0, x)
		a.Set(r, 1, y)
		a.Set(r, 2, 1)
		a.Set(r, 6, -x*u)
		a.Set(r, 7, -y*u)
		b.SetVec(r, u)

		a.Set(r+1, 3, x)
		a.Set(r+1, 4, y)
		a.Set(r+1, 5, 1)
		a.Set(r+1, 6, -x*v)
		a.Set(r+1, 7, -y*v)
		b.SetVec(r+1, v)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return nil, NewCalibrationError("point configuration is degenerate: %v", err)
	}
	data := make([]float64, 9)
	for i := 0; i < 8; i++ {
		data[i] = h.AtVec(i)
	}
	data[8] = 1
	return mat.NewDense(3, 3, data), nil
}

// solveDLT returns the right singular vector of the smallest singular value
// of the stacked 2n x 9 DLT system.
func solveDLT(src, dst []Point) (*mat.Dense, error) {
	n := len(src)
	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, NewCalibrationError("singular value decomposition did not converge")
	}
	values := svd.Values(nil)
	if values[0] == 0 || values[7]/values[0] < rankEpsilon {
		return nil, NewCalibrationError("point configuration is degenerate: transform is not unique")
	}

	var v mat.Dense
	svd.VTo(&v)
	data := make([]float64, 9)
	for i := 0; i < 9; i++ {
		data[i] = v.At(i, 8)
	}
	return mat.NewDense(3, 3, data), nil
}

// fromDense normalises a 3x3 matrix and wraps it as a Homography.
func fromDense(d *mat.Dense) (*Homography, error) {
	var m [9]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m[r*3+c] = d.At(r, c)
		}
	}

	scale := m[8]
	if math.Abs(scale) < infinityEpsilon {
		// Fall back to unit Frobenius norm, keeping the sign of the
		// largest element positive.
		var norm, largest float64
		for _, v := range m {
			norm += v * v
			if math.Abs(v) > math.Abs(largest) {
				largest = v
			}
		}
		scale = math.Sqrt(norm)
		if largest < 0 {
			scale = -scale
		}
	}
	if scale == 0 {
		return nil, &TransformError{Reason: "matrix is all zeros"}
	}
	for i := range m {
		m[i] /= scale
	}
	return NewHomography(m)
}
