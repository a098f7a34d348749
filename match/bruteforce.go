package match

import (
	"github.com/swdee/go-featdetect/features"
	"math"
	"sort"
)

// BruteForceL2 is a pure Go exhaustive L2 nearest neighbour search.  Results
// are deterministic, ties are broken by corpus index.
type BruteForceL2 struct{}

// NewBruteForceL2 returns a pure Go searcher
func NewBruteForceL2() *BruteForceL2 {
	return &BruteForceL2{}
}

// KNN returns the k nearest corpus descriptors for each query
func (b *BruteForceL2) KNN(query, corpus []features.Descriptor, k int) [][]Neighbor {

	out := make([][]Neighbor, len(query))

	if k <= 0 {
		return out
	}

	for qi, q := range query {
		cands := make([]Neighbor, len(corpus))

		for ci, c := range corpus {
			cands[ci] = Neighbor{Index: ci, Distance: l2(q, c)}
		}

		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].Distance < cands[j].Distance
		})

		if len(cands) > k {
			cands = cands[:k]
		}

		out[qi] = cands
	}

	return out
}

// Close is a no-op
func (b *BruteForceL2) Close() error {
	return nil
}

// l2 returns the Euclidean distance between a and b over their common length
func l2(a, b features.Descriptor) float32 {

	n := len(a)

	if len(b) < n {
		n = len(b)
	}

	var sum float64

	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return float32(math.Sqrt(sum))
}
