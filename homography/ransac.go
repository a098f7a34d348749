package homography

import (
	"math"
	"math/rand"
	"slices"
)

// sampleSize is the number of correspondences that determine a homography
const sampleSize = 4

// Params defines the RANSAC parameters
type Params struct {
	// Threshold is the maximum reprojection error in pixels for a
	// correspondence to be counted as an inlier
	Threshold float64
	// MaxIterations bounds the number of random samples drawn
	MaxIterations int
	// Confidence is the desired probability that at least one sample drawn
	// is outlier free.  It is used to stop early once a model with enough
	// support is found.  Set to 1 to always run MaxIterations.
	Confidence float64
	// Seed seeds the sampler.  Each Estimate call restarts from this seed so
	// identical input always gives identical output.
	Seed int64
}

// DefaultParams returns the RANSAC parameters:
// - Threshold: 5 pixels
// - MaxIterations: 2000
// - Confidence: 0.995
// - Seed: 1
func DefaultParams() Params {
	return Params{
		Threshold:     5.0,
		MaxIterations: 2000,
		Confidence:    0.995,
		Seed:          1,
	}
}

// Result is a successfully estimated homography and the indices of the
// correspondences supporting it
type Result struct {
	H       Matrix
	Inliers []int
}

// Estimator robustly estimates a homography with RANSAC
type Estimator struct {
	Params Params
	// Fitter fits a model to a minimal sample and to the final inlier set
	Fitter ModelFitter
}

// NewEstimator returns a RANSAC estimator using the DLT model fitter
func NewEstimator(p Params) *Estimator {
	return &Estimator{
		Params: p,
		Fitter: DLT{},
	}
}

// Estimate finds the homography mapping src onto dst supported by the most
// correspondences.  It returns ErrTooFewPoints for less than four
// correspondences and ErrNoConsensus when no candidate gathers four inliers.
func (e *Estimator) Estimate(src, dst []Point) (Result, error) {

	if len(src) != len(dst) {
		return Result{}, ErrMismatchedPoints
	}

	n := len(src)

	if n < sampleSize {
		return Result{}, ErrTooFewPoints
	}

	rng := rand.New(rand.NewSource(e.Params.Seed))

	maxIter := e.Params.MaxIterations

	if maxIter <= 0 {
		maxIter = 1
	}

	var (
		best  []int
		bestH Matrix
		idx   = make([]int, sampleSize)
		sSrc  = make([]Point, sampleSize)
		sDst  = make([]Point, sampleSize)
	)

	for iter := 0; iter < maxIter; iter++ {

		drawSample(rng, n, idx)

		for i, j := range idx {
			sSrc[i] = src[j]
			sDst[i] = dst[j]
		}

		if degenerateSample(sSrc) || degenerateSample(sDst) {
			continue
		}

		h, err := e.Fitter.Fit(sSrc, sDst)

		if err != nil {
			continue
		}

		inl := e.inliers(h, src, dst)

		if len(inl) > len(best) {
			best = inl
			bestH = h

			outlierRatio := float64(n-len(inl)) / float64(n)
			maxIter = min(maxIter, updateIterations(e.Params.Confidence, outlierRatio, maxIter))
		}
	}

	if len(best) < sampleSize {
		return Result{}, ErrNoConsensus
	}

	// refit on the whole consensus set, keeping the refit only when it does
	// not lose support
	inSrc := make([]Point, len(best))
	inDst := make([]Point, len(best))

	for i, j := range best {
		inSrc[i] = src[j]
		inDst[i] = dst[j]
	}

	if h, err := e.Fitter.Fit(inSrc, inDst); err == nil {

		if inl := e.inliers(h, src, dst); len(inl) >= len(best) {
			best = inl
			bestH = h
		}
	}

	return Result{H: bestH, Inliers: best}, nil
}

// inliers returns the indices of correspondences with a reprojection error
// below the threshold
func (e *Estimator) inliers(h Matrix, src, dst []Point) []int {

	inl := make([]int, 0, len(src))

	for i := range src {
		if h.ReprojectionError(src[i], dst[i]) < e.Params.Threshold {
			inl = append(inl, i)
		}
	}

	return inl
}

// drawSample fills idx with distinct random indices in [0, n)
func drawSample(rng *rand.Rand, n int, idx []int) {

	for i := range idx {
		for {
			j := rng.Intn(n)

			if !slices.Contains(idx[:i], j) {
				idx[i] = j
				break
			}
		}
	}
}

// updateIterations returns the number of samples needed to draw an outlier
// free sample with the given confidence, capped at maxIter
func updateIterations(confidence, outlierRatio float64, maxIter int) int {

	num := math.Max(1-confidence, math.SmallestNonzeroFloat64)
	denom := 1 - math.Pow(1-outlierRatio, sampleSize)

	if denom < math.SmallestNonzeroFloat64 {
		return 0
	}

	num = math.Log(num)
	denom = math.Log(denom)

	if denom >= 0 || -num >= float64(maxIter)*(-denom) {
		return maxIter
	}

	return int(math.Round(num / denom))
}
