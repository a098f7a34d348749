package homography

import (
	"gonum.org/v1/gonum/mat"
	"math"
)

// ModelFitter fits a homography to point correspondences.  src[i] maps to
// dst[i].  It is the model estimation step used inside RANSAC and can be
// replaced, eg: with a binding to a native vision library.
type ModelFitter interface {
	Fit(src, dst []Point) (Matrix, error)
}

// DLT fits a homography with the normalised Direct Linear Transform.  Points
// are first translated and scaled so their centroid is at the origin and
// their mean distance from it is sqrt(2), which keeps the linear system well
// conditioned.  The solution is the right singular vector of the smallest
// singular value.
type DLT struct{}

// rankTol is the ratio to the largest singular value under which a singular
// value is treated as zero
const rankTol = 1e-10

// Fit solves for the homography mapping src onto dst in a least squares
// sense.  At least four correspondences are needed.
func (DLT) Fit(src, dst []Point) (Matrix, error) {

	if len(src) != len(dst) {
		return Matrix{}, ErrMismatchedPoints
	}

	n := len(src)

	if n < 4 {
		return Matrix{}, ErrTooFewPoints
	}

	t1, ok := normalizer(src)

	if !ok {
		return Matrix{}, ErrDegenerate
	}

	t2, ok := normalizer(dst)

	if !ok {
		return Matrix{}, ErrDegenerate
	}

	// build the 2n x 9 system A h = 0
	a := mat.NewDense(2*n, 9, nil)

	for i := 0; i < n; i++ {
		x, y := t1.apply(src[i])
		u, v := t2.apply(dst[i])

		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD

	if ok := svd.Factorize(a, mat.SVDFullV); !ok {
		return Matrix{}, ErrDegenerate
	}

	values := svd.Values(nil)

	// the null space must be one dimensional.  values are in descending
	// order and there are 8 of them for a minimal sample
	if values[0] == 0 || values[7]/values[0] < rankTol {
		return Matrix{}, ErrDegenerate
	}

	var v mat.Dense
	svd.VTo(&v)

	hn := mat.NewDense(3, 3, nil)

	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, v.At(i, 8))
	}

	// denormalise: H = T2^-1 * Hn * T1
	var tmp, h mat.Dense
	tmp.Mul(t2.inverse(), hn)
	h.Mul(&tmp, t1.matrix())

	m := fromDense(&h)

	if math.Abs(m[8]) < 1e-12 {
		return Matrix{}, ErrDegenerate
	}

	m = m.Normalized()

	// a singular transform collapses the reference plane onto a line
	if math.Abs(mat.Det(m.Dense())) < 1e-9 {
		return Matrix{}, ErrDegenerate
	}

	return m, nil
}

// similarity is an isotropic scale plus translation used to condition
// point sets
type similarity struct {
	scale  float64
	cx, cy float64
}

// normalizer returns the conditioning transform for pts.  ok is false when
// all points coincide.
func normalizer(pts []Point) (similarity, bool) {

	var cx, cy float64

	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}

	cx /= float64(len(pts))
	cy /= float64(len(pts))

	var mean float64

	for _, p := range pts {
		mean += math.Hypot(p.X-cx, p.Y-cy)
	}

	mean /= float64(len(pts))

	if mean < 1e-12 {
		return similarity{}, false
	}

	return similarity{scale: math.Sqrt2 / mean, cx: cx, cy: cy}, true
}

// apply maps p through the similarity
func (s similarity) apply(p Point) (float64, float64) {
	return s.scale * (p.X - s.cx), s.scale * (p.Y - s.cy)
}

// matrix returns the similarity as a 3x3 matrix
func (s similarity) matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		s.scale, 0, -s.scale * s.cx,
		0, s.scale, -s.scale * s.cy,
		0, 0, 1,
	})
}

// inverse returns the inverse similarity as a 3x3 matrix
func (s similarity) inverse() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1 / s.scale, 0, s.cx,
		0, 1 / s.scale, s.cy,
		0, 0, 1,
	})
}

// collinear reports whether three points lie on a line, using the triangle
// area relative to the longest side so the test is scale independent
func collinear(a, b, c Point) bool {

	area := math.Abs((b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X))
	side := math.Max(math.Hypot(b.X-a.X, b.Y-a.Y),
		math.Max(math.Hypot(c.X-a.X, c.Y-a.Y), math.Hypot(c.X-b.X, c.Y-b.Y)))

	if side < 1e-9 {
		return true
	}

	// area/side is the distance of the opposite point from the longest side
	return area/side < 1e-3
}

// degenerateSample reports whether any three of the four points are collinear
func degenerateSample(p []Point) bool {
	return collinear(p[0], p[1], p[2]) || collinear(p[0], p[1], p[3]) ||
		collinear(p[0], p[2], p[3]) || collinear(p[1], p[2], p[3])
}
