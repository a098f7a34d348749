package match

import (
	"errors"
	"fmt"
	"github.com/swdee/go-featdetect/features"
	"strings"
)

// RatioThreshold is Lowe's ratio test constant.  A nearest neighbour is kept
// only if its distance is below RatioThreshold times the distance of the
// second nearest neighbour
const RatioThreshold = 0.7

var (
	// ErrInvalidKind is returned when an unknown matcher is requested
	ErrInvalidKind = errors.New("invalid matcher kind")
)

// Kind specifies the nearest neighbour search backend
type Kind int

const (
	// BruteForce compares every query against every corpus descriptor
	BruteForce Kind = 1
	// FLANN uses an approximate nearest neighbour KD-tree index
	FLANN Kind = 2
)

// String returns the name of the matcher kind
func (k Kind) String() string {

	switch k {
	case BruteForce:
		return "BF"
	case FLANN:
		return "FLANN"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is a known matcher kind
func (k Kind) Valid() bool {
	return k == BruteForce || k == FLANN
}

// ParseKind converts "BF" or "FLANN" (case insensitive) into a Kind
func ParseKind(name string) (Kind, error) {

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bf", "bruteforce":
		return BruteForce, nil
	case "flann", "ann":
		return FLANN, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidKind, name)
}

// Neighbor is a single k nearest neighbour result
type Neighbor struct {
	// Index of the descriptor in the corpus
	Index int
	// Distance is the L2 distance between query and corpus descriptors
	Distance float32
}

// Searcher finds the k nearest corpus descriptors for every query descriptor.
// The result has one entry per query, each ordered by ascending distance and
// holding at most k neighbours.
type Searcher interface {
	KNN(query, corpus []features.Descriptor, k int) [][]Neighbor
	Close() error
}

// NewSearcher returns a Searcher for the given kind backed by OpenCV
func NewSearcher(kind Kind) (Searcher, error) {

	switch kind {
	case BruteForce:
		return NewGocvBF(), nil
	case FLANN:
		return NewGocvFLANN(), nil
	}

	return nil, ErrInvalidKind
}

// Correspondence is a matched pair of keypoints between a reference image and
// a scene
type Correspondence struct {
	RefIndex   int
	SceneIndex int
	Distance   float32
}

// RatioTest reports whether the nearest distance d1 is sufficiently smaller
// than the second nearest distance d2
func RatioTest(d1, d2 float32) bool {
	return d1 < RatioThreshold*d2
}

// GoodMatches applies the ratio test to kNN results (k=2) where the query
// side is the reference.  Queries returning less than two neighbours are
// skipped.
func GoodMatches(neighbors [][]Neighbor) []Correspondence {

	good := make([]Correspondence, 0)

	for q, nn := range neighbors {

		if len(nn) < 2 {
			continue
		}

		if RatioTest(nn[0].Distance, nn[1].Distance) {
			good = append(good, Correspondence{
				RefIndex:   q,
				SceneIndex: nn[0].Index,
				Distance:   nn[0].Distance,
			})
		}
	}

	return good
}

// Match decides whether ref is present in scene.  Reference descriptors are
// used as queries against the scene descriptors.  It returns the good matches
// and true when their count is strictly greater than minPoints.  Empty
// feature sets never match.
func Match(s Searcher, ref, scene features.FeatureSet, minPoints int) ([]Correspondence, bool) {

	if ref.Empty() || scene.Empty() {
		return nil, false
	}

	good := GoodMatches(s.KNN(ref.Descriptors, scene.Descriptors, 2))

	return good, len(good) > minPoints
}
