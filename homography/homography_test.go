package homography

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"math"
	"testing"
)

// knownH is a mild perspective transform used to generate correspondences
var knownH = Matrix{
	1.2, 0.1, 30,
	-0.05, 0.9, 20,
	0.0005, 0.0002, 1,
}

// matricesEqual compare matrices
func matricesEqual(a, b mat.Matrix, epsilon float64) bool {
	r1, c1 := a.Dims()
	r2, c2 := b.Dims()

	if r1 != r2 || c1 != c2 {
		return false
	}

	for i := 0; i < r1; i++ {
		for j := 0; j < c1; j++ {
			if diff := a.At(i, j) - b.At(i, j); diff > epsilon || diff < -epsilon {
				return false
			}
		}
	}

	return true
}

// requireMatrix fails the test when got differs from want
func requireMatrix(t *testing.T, want, got Matrix, epsilon float64) {
	t.Helper()

	if !matricesEqual(want.Dense(), got.Dense(), epsilon) {
		t.Fatalf("expected matrix %v, got %v",
			mat.Formatted(want.Dense(), mat.Prefix(""), mat.Excerpt(0)),
			mat.Formatted(got.Dense(), mat.Prefix(""), mat.Excerpt(0)),
		)
	}
}

// grid returns points on a regular grid
func grid(cols, rows int, step float64) []Point {

	pts := make([]Point, 0, cols*rows)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			pts = append(pts, Point{X: float64(x) * step, Y: float64(y) * step})
		}
	}

	return pts
}

// projectAll maps every point through h
func projectAll(t *testing.T, h Matrix, src []Point) []Point {
	t.Helper()

	dst := make([]Point, len(src))

	for i, p := range src {
		x, y, ok := h.Project(p.X, p.Y)
		require.True(t, ok)
		dst[i] = Point{X: x, Y: y}
	}

	return dst
}

func TestProject(t *testing.T) {

	x, y, ok := Identity().Project(12.5, -3)
	require.True(t, ok)
	assert.Equal(t, 12.5, x)
	assert.Equal(t, -3.0, y)

	// w = x, so the y axis maps to infinity
	inf := Matrix{1, 0, 0, 0, 1, 0, 1, 0, 0}
	_, _, ok = inf.Project(0, 5)
	assert.False(t, ok)
	assert.True(t, math.IsInf(inf.ReprojectionError(Point{0, 5}, Point{0, 5}), 1))

	scaled := Matrix{2, 0, 0, 0, 2, 0, 0, 0, 2}
	requireMatrix(t, Identity(), scaled.Normalized(), 1e-12)
}

func TestDLTMinimalSample(t *testing.T) {

	src := []Point{{0, 0}, {100, 0}, {100, 100}, {0, 100}}
	dst := projectAll(t, knownH, src)

	h, err := DLT{}.Fit(src, dst)
	require.NoError(t, err)
	requireMatrix(t, knownH, h, 1e-6)

	for i := range src {
		assert.Less(t, h.ReprojectionError(src[i], dst[i]), 1e-6)
	}
}

func TestDLTOverdetermined(t *testing.T) {

	src := grid(8, 6, 25)
	dst := projectAll(t, knownH, src)

	h, err := DLT{}.Fit(src, dst)
	require.NoError(t, err)
	requireMatrix(t, knownH, h, 1e-6)
}

func TestDLTDegenerate(t *testing.T) {

	// all points on a line
	src := []Point{{0, 0}, {10, 10}, {20, 20}, {30, 30}, {40, 40}}
	dst := []Point{{5, 1}, {15, 11}, {25, 21}, {35, 31}, {45, 41}}

	_, err := DLT{}.Fit(src, dst)
	assert.ErrorIs(t, err, ErrDegenerate)

	// coincident points
	same := []Point{{3, 3}, {3, 3}, {3, 3}, {3, 3}}
	_, err = DLT{}.Fit(same, same)
	assert.ErrorIs(t, err, ErrDegenerate)

	_, err = DLT{}.Fit(src[:3], dst[:3])
	assert.ErrorIs(t, err, ErrTooFewPoints)

	_, err = DLT{}.Fit(src, dst[:4])
	assert.ErrorIs(t, err, ErrMismatchedPoints)
}

func TestCollinear(t *testing.T) {

	assert.True(t, collinear(Point{0, 0}, Point{1, 1}, Point{2, 2}))
	assert.True(t, collinear(Point{0, 0}, Point{0, 0}, Point{0, 0}))
	assert.False(t, collinear(Point{0, 0}, Point{10, 0}, Point{0, 10}))

	assert.True(t, degenerateSample([]Point{{0, 0}, {5, 0}, {10, 0}, {3, 9}}))
	assert.False(t, degenerateSample([]Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}))
}

func TestEstimateWithOutliers(t *testing.T) {

	src := grid(10, 10, 20)
	dst := projectAll(t, knownH, src)

	outliers := make(map[int]bool)

	// corrupt 30% of the correspondences by at least 50 pixels
	for i := 0; i < len(src); i += 10 {
		for _, j := range []int{i + 1, i + 4, i + 7} {
			dst[j].X += 50 + float64(j)
			dst[j].Y -= 40 + float64(j%7)*3
			outliers[j] = true
		}
	}

	res, err := NewEstimator(DefaultParams()).Estimate(src, dst)
	require.NoError(t, err)
	requireMatrix(t, knownH, res.H, 1e-6)

	require.Len(t, res.Inliers, len(src)-len(outliers))

	for _, i := range res.Inliers {
		assert.False(t, outliers[i], "outlier %d reported as inlier", i)
	}
}

func TestEstimateDeterministic(t *testing.T) {

	src := grid(6, 6, 30)
	dst := projectAll(t, knownH, src)

	for i := 0; i < len(dst); i += 3 {
		dst[i].X += 75
	}

	est := NewEstimator(DefaultParams())

	r1, err := est.Estimate(src, dst)
	require.NoError(t, err)

	r2, err := est.Estimate(src, dst)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
}

func TestEstimateErrors(t *testing.T) {

	est := NewEstimator(DefaultParams())

	_, err := est.Estimate([]Point{{0, 0}, {1, 0}, {0, 1}}, []Point{{0, 0}, {1, 0}, {0, 1}})
	assert.ErrorIs(t, err, ErrTooFewPoints)

	_, err = est.Estimate(make([]Point, 5), make([]Point, 4))
	assert.ErrorIs(t, err, ErrMismatchedPoints)

	// every sample is degenerate so no model is ever fitted
	line := []Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}}
	_, err = est.Estimate(line, line)
	assert.ErrorIs(t, err, ErrNoConsensus)
}

func TestUpdateIterations(t *testing.T) {

	// no outliers needs a single sample
	assert.Equal(t, 0, updateIterations(0.995, 0, 2000))

	// half outliers: log(0.005)/log(1-0.0625) = 82.1
	assert.Equal(t, 82, updateIterations(0.995, 0.5, 2000))

	// all outliers never converges
	assert.Equal(t, 2000, updateIterations(0.995, 1, 2000))
}
