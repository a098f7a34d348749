package features

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidKind is returned when an unknown feature extractor is requested
	ErrInvalidKind = errors.New("invalid feature extractor kind")
)

// Kind specifies the local feature algorithm used for keypoint detection and
// descriptor computation
type Kind int

const (
	SIFT     Kind = 1
	RootSIFT Kind = 2
	SURF     Kind = 3
)

// String returns the name of the extractor kind
func (k Kind) String() string {

	switch k {
	case SIFT:
		return "SIFT"
	case RootSIFT:
		return "RootSIFT"
	case SURF:
		return "SURF"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is a known extractor kind
func (k Kind) Valid() bool {
	return k == SIFT || k == RootSIFT || k == SURF
}

// ParseKind converts a name such as "SIFT", "RootSIFT" or "SURF" (case
// insensitive) into a Kind
func ParseKind(name string) (Kind, error) {

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sift":
		return SIFT, nil
	case "rootsift":
		return RootSIFT, nil
	case "surf":
		return SURF, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidKind, name)
}

// Keypoint is a repeatably locatable point in an image.  Only X and Y are
// used for matching and geometry, the remaining fields are carried through
// from the extractor unchanged
type Keypoint struct {
	X        float64
	Y        float64
	Size     float64
	Angle    float64
	Response float64
	Octave   int
}

// Descriptor is the numeric vector describing the local appearance around
// a Keypoint
type Descriptor []float32

// FeatureSet is the ordered list of keypoints and their descriptors for a
// single image.  Keypoints[i] is described by Descriptors[i].  A FeatureSet
// is not modified after extraction
type FeatureSet struct {
	Keypoints   []Keypoint
	Descriptors []Descriptor
}

// Len returns the number of features in the set
func (f FeatureSet) Len() int {
	return len(f.Descriptors)
}

// Empty reports whether the set has no descriptors
func (f FeatureSet) Empty() bool {
	return len(f.Descriptors) == 0
}

// Dim returns the descriptor dimensionality, or 0 for an empty set
func (f FeatureSet) Dim() int {

	if len(f.Descriptors) == 0 {
		return 0
	}

	return len(f.Descriptors[0])
}

// Point returns the location of keypoint i
func (f FeatureSet) Point(i int) (float64, float64) {
	return f.Keypoints[i].X, f.Keypoints[i].Y
}
