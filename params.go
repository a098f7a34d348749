package featdetect

import (
	"errors"
	"fmt"
	"github.com/swdee/go-featdetect/features"
	"github.com/swdee/go-featdetect/homography"
	"github.com/swdee/go-featdetect/match"
	"runtime"
)

var (
	// ErrInvalidMinPoints is returned when MinPoints is not positive
	ErrInvalidMinPoints = errors.New("min points must be greater than zero")
	// ErrInvalidDownscale is returned when the downscale threshold or factor
	// are out of range
	ErrInvalidDownscale = errors.New("invalid downscale parameters")
	// ErrInvalidHomography is returned for unusable RANSAC parameters
	ErrInvalidHomography = errors.New("invalid homography parameters")
)

// Params defines the struct containing the parameters used to build a
// reference database and run detection against it
type Params struct {
	// Extractor is the local feature algorithm used on both reference images
	// and frames
	Extractor features.Kind
	// Matcher is the nearest neighbour search backend
	Matcher match.Kind
	// MinPoints is the number of good matches a reference image must exceed
	// to be considered present in a frame
	MinPoints int
	// DownscaleHeight is the reference image height above which images are
	// scaled down before extraction
	DownscaleHeight int
	// DownscaleFactor is the uniform scale applied to reference images taller
	// than DownscaleHeight
	DownscaleFactor float64
	// Homography are the RANSAC parameters used to localize a matched
	// reference image
	Homography homography.Params
	// MinObjectArea is the smallest projected object area in square pixels
	// accepted as a detection.  Zero disables the check.
	MinObjectArea float64
	// Workers is the number of feature extractors run in parallel when
	// building the reference database
	Workers int
}

// DefaultParams returns an instance of Params configured with default values
// featuring:
// - Extractor: RootSIFT
// - Matcher: brute force
// - Min Points: 10
// - Downscale: images taller than 1000 pixels scaled by 0.3
// - Homography: RANSAC with a 5 pixel reprojection threshold
// - Min Object Area: disabled
// - Workers: number of CPUs
func DefaultParams() Params {
	return Params{
		Extractor:       features.RootSIFT,
		Matcher:         match.BruteForce,
		MinPoints:       10,
		DownscaleHeight: 1000,
		DownscaleFactor: 0.3,
		Homography:      homography.DefaultParams(),
		MinObjectArea:   0,
		Workers:         runtime.NumCPU(),
	}
}

// Validate checks the parameters and returns the first configuration error
// found
func (p Params) Validate() error {

	if !p.Extractor.Valid() {
		return fmt.Errorf("%w: %v", features.ErrInvalidKind, p.Extractor)
	}

	if !p.Matcher.Valid() {
		return fmt.Errorf("%w: %v", match.ErrInvalidKind, p.Matcher)
	}

	if p.MinPoints <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMinPoints, p.MinPoints)
	}

	if p.DownscaleHeight <= 0 || p.DownscaleFactor <= 0 || p.DownscaleFactor > 1 {
		return fmt.Errorf("%w: height=%d factor=%v", ErrInvalidDownscale,
			p.DownscaleHeight, p.DownscaleFactor)
	}

	if p.Homography.Threshold <= 0 || p.Homography.MaxIterations <= 0 ||
		p.Homography.Confidence <= 0 || p.Homography.Confidence > 1 {
		return fmt.Errorf("%w: %+v", ErrInvalidHomography, p.Homography)
	}

	return nil
}

// workers returns the extractor pool size
func (p Params) workers() int {

	if p.Workers < 1 {
		return 1
	}

	return p.Workers
}
