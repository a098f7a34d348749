package features

import (
	"math"
)

// rootSIFTEps is added to the L1 norm to avoid division by zero on all zero
// descriptors
const rootSIFTEps = 1e-7

// RootSIFT applies the Hellinger kernel transform to a SIFT descriptor by
// L1 normalising it and taking the element wise square root.  The result has
// the same length as d and no negative components.  d is not modified.
func RootSIFT(d Descriptor) Descriptor {

	var sum float64

	for _, v := range d {
		sum += float64(v)
	}

	norm := sum + rootSIFTEps
	out := make(Descriptor, len(d))

	for i, v := range d {
		x := float64(v) / norm

		// SIFT never produces negative bins, but clamp so the root is real
		// for any input
		if x < 0 {
			x = 0
		}

		out[i] = float32(math.Sqrt(x))
	}

	return out
}

// NormalizeSet returns a copy of fs with RootSIFT applied to every
// descriptor.  Keypoints are shared with fs.
func NormalizeSet(fs FeatureSet) FeatureSet {

	if fs.Empty() {
		return fs
	}

	out := FeatureSet{
		Keypoints:   fs.Keypoints,
		Descriptors: make([]Descriptor, len(fs.Descriptors)),
	}

	for i, d := range fs.Descriptors {
		out.Descriptors[i] = RootSIFT(d)
	}

	return out
}
