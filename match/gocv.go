package match

import (
	"github.com/swdee/go-featdetect/features"
	"gocv.io/x/gocv"
)

// GocvBF wraps the OpenCV brute force matcher using the L2 norm
type GocvBF struct {
	bf gocv.BFMatcher
}

// NewGocvBF returns an OpenCV brute force searcher
func NewGocvBF() *GocvBF {
	return &GocvBF{
		bf: gocv.NewBFMatcher(),
	}
}

// KNN runs cv::BFMatcher::knnMatch
func (g *GocvBF) KNN(query, corpus []features.Descriptor, k int) [][]Neighbor {

	if len(query) == 0 || len(corpus) == 0 {
		return make([][]Neighbor, len(query))
	}

	q := descriptorsToMat(query)
	defer q.Close()

	c := descriptorsToMat(corpus)
	defer c.Close()

	return fromDMatches(g.bf.KnnMatch(q, c, k), len(query))
}

// Close frees the OpenCV matcher
func (g *GocvBF) Close() error {
	return g.bf.Close()
}

// GocvFLANN wraps the OpenCV FLANN based matcher.  gocv only exposes the
// default constructor, so the index is OpenCV's default randomized KD-tree
// (4 trees, 32 checks).
type GocvFLANN struct {
	flann gocv.FlannBasedMatcher
}

// NewGocvFLANN returns an OpenCV approximate nearest neighbour searcher
func NewGocvFLANN() *GocvFLANN {
	return &GocvFLANN{
		flann: gocv.NewFlannBasedMatcher(),
	}
}

// KNN runs cv::FlannBasedMatcher::knnMatch
func (g *GocvFLANN) KNN(query, corpus []features.Descriptor, k int) [][]Neighbor {

	if len(query) == 0 || len(corpus) == 0 {
		return make([][]Neighbor, len(query))
	}

	q := descriptorsToMat(query)
	defer q.Close()

	c := descriptorsToMat(corpus)
	defer c.Close()

	return fromDMatches(g.flann.KnnMatch(q, c, k), len(query))
}

// Close frees the OpenCV matcher
func (g *GocvFLANN) Close() error {
	return g.flann.Close()
}

// descriptorsToMat packs descriptors into a CV_32F Mat with one row each.
// Rows are copied straight into the Mat buffer, short descriptors are zero
// padded.
func descriptorsToMat(desc []features.Descriptor) gocv.Mat {

	dim := len(desc[0])
	m := gocv.NewMatWithSize(len(desc), dim, gocv.MatTypeCV32F)

	data, err := m.DataPtrFloat32()

	if err != nil {
		// non continuous Mat, fill element by element
		m.SetTo(gocv.NewScalar(0, 0, 0, 0))

		for i, d := range desc {
			for j := 0; j < dim && j < len(d); j++ {
				m.SetFloatAt(i, j, d[j])
			}
		}

		return m
	}

	for i, d := range desc {
		row := data[i*dim : (i+1)*dim]
		n := copy(row, d)
		clear(row[n:])
	}

	return m
}

// fromDMatches converts OpenCV matches, indexed by QueryIdx, into Neighbor
// lists
func fromDMatches(matches [][]gocv.DMatch, numQuery int) [][]Neighbor {

	out := make([][]Neighbor, numQuery)

	for _, row := range matches {

		if len(row) == 0 {
			continue
		}

		qi := row[0].QueryIdx

		if qi < 0 || qi >= numQuery {
			continue
		}

		nn := make([]Neighbor, len(row))

		for i, m := range row {
			nn[i] = Neighbor{Index: m.TrainIdx, Distance: float32(m.Distance)}
		}

		out[qi] = nn
	}

	return out
}
