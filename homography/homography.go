package homography

import (
	"errors"
	"gonum.org/v1/gonum/mat"
	"math"
)

var (
	// ErrTooFewPoints is returned when less than four correspondences are given
	ErrTooFewPoints = errors.New("at least 4 point correspondences required")
	// ErrDegenerate is returned when the points do not constrain a projective
	// transform, eg: three or more of a minimal sample are collinear
	ErrDegenerate = errors.New("degenerate point configuration")
	// ErrNoConsensus is returned when RANSAC finds no model supported by at
	// least four inliers
	ErrNoConsensus = errors.New("no homography with sufficient inlier support")
	// ErrMismatchedPoints is returned when source and destination point lists
	// differ in length
	ErrMismatchedPoints = errors.New("source and destination point counts differ")
)

// Point is a 2D point in pixel space
type Point struct {
	X, Y float64
}

// Matrix is a 3x3 projective transform stored in row major order, mapping
// reference image coordinates to scene coordinates
type Matrix [9]float64

// Identity returns the identity transform
func Identity() Matrix {
	return Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// At returns the element at row r, column c
func (m Matrix) At(r, c int) float64 {
	return m[r*3+c]
}

// Dense returns the matrix as a gonum Dense
func (m Matrix) Dense() *mat.Dense {
	return mat.NewDense(3, 3, m[:])
}

// fromDense copies a 3x3 Dense into a Matrix
func fromDense(d mat.Matrix) Matrix {

	var m Matrix

	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m[r*3+c] = d.At(r, c)
		}
	}

	return m
}

// Project maps the point (x, y) through the transform.  ok is false when the
// point maps to infinity.
func (m Matrix) Project(x, y float64) (px, py float64, ok bool) {

	w := m[6]*x + m[7]*y + m[8]

	if math.Abs(w) < 1e-12 {
		return 0, 0, false
	}

	px = (m[0]*x + m[1]*y + m[2]) / w
	py = (m[3]*x + m[4]*y + m[5]) / w

	if math.IsNaN(px) || math.IsNaN(py) || math.IsInf(px, 0) || math.IsInf(py, 0) {
		return 0, 0, false
	}

	return px, py, true
}

// ReprojectionError returns the Euclidean distance between dst and src
// projected through the transform, or +Inf if src maps to infinity
func (m Matrix) ReprojectionError(src, dst Point) float64 {

	px, py, ok := m.Project(src.X, src.Y)

	if !ok {
		return math.Inf(1)
	}

	return math.Hypot(px-dst.X, py-dst.Y)
}

// Normalized returns the matrix scaled so the bottom right element is 1.
// Matrices with a zero bottom right element are returned unchanged.
func (m Matrix) Normalized() Matrix {

	if math.Abs(m[8]) < 1e-15 {
		return m
	}

	s := 1 / m[8]

	for i := range m {
		m[i] *= s
	}

	return m
}
