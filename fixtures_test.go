package featdetect

import (
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-featdetect/features"
	"github.com/swdee/go-featdetect/homography"
	"github.com/swdee/go-featdetect/match"
	"gocv.io/x/gocv"
	"image"
	"image/color"
	"math/rand"
	"testing"
)

const testDim = 128

// fakeExtractor returns canned features for an image, chosen by its width
type fakeExtractor struct {
	sets map[int]features.FeatureSet
}

func (f *fakeExtractor) Extract(img gocv.Mat) features.FeatureSet {
	return f.sets[img.Cols()]
}

func (f *fakeExtractor) Kind() features.Kind {
	return features.SIFT
}

func (f *fakeExtractor) Close() error {
	return nil
}

// oneHot returns a descriptor with a single component set
func oneHot(i int) features.Descriptor {
	d := make(features.Descriptor, testDim)
	d[i] = 1
	return d
}

// refSet returns 16 features on a 4x4 grid spaced 20 pixels apart, using
// one hot descriptors first..first+15
func refSet(first int) features.FeatureSet {

	fs := features.FeatureSet{}

	for k := 0; k < 16; k++ {
		fs.Keypoints = append(fs.Keypoints, features.Keypoint{
			X: float64(10 + 20*(k%4)),
			Y: float64(10 + 20*(k/4)),
		})
		fs.Descriptors = append(fs.Descriptors, oneHot(first+k))
	}

	return fs
}

// placement puts the first n features of a reference set into a scene,
// translated by (dx, dy)
type placement struct {
	ref    features.FeatureSet
	n      int
	dx, dy float64
}

// sceneSet builds a scene FeatureSet from placements
func sceneSet(parts ...placement) features.FeatureSet {

	fs := features.FeatureSet{}

	for _, p := range parts {
		for k := 0; k < p.n; k++ {
			kp := p.ref.Keypoints[k]
			kp.X += p.dx
			kp.Y += p.dy

			fs.Keypoints = append(fs.Keypoints, kp)
			fs.Descriptors = append(fs.Descriptors, p.ref.Descriptors[k])
		}
	}

	return fs
}

// image widths selecting the canned features
const (
	cupWidth   = 201
	book1Width = 202
	book2Width = 203

	sceneFull     = 640
	sceneEmpty    = 641
	scenePartial  = 642
	sceneWrongDim = 643
	sceneBothBook = 644
)

var (
	cupFeatures   = refSet(0)
	book1Features = refSet(16)
	book2Features = refSet(32)
)

// newFakeExtractor returns the extractor shared by the detection tests.
//
// The full scene holds all of the cup, 5 features of book1 and 12 of book2 so
// only the second book reference passes the ratio test threshold of 10.
func newFakeExtractor() *fakeExtractor {

	wrong := features.FeatureSet{
		Keypoints:   []features.Keypoint{{X: 1, Y: 1}, {X: 2, Y: 2}},
		Descriptors: []features.Descriptor{make(features.Descriptor, 64), make(features.Descriptor, 64)},
	}

	return &fakeExtractor{
		sets: map[int]features.FeatureSet{
			cupWidth:   cupFeatures,
			book1Width: book1Features,
			book2Width: book2Features,
			sceneFull: sceneSet(
				placement{cupFeatures, 16, 50.5, 30.5},
				placement{book1Features, 5, 100.5, 300.5},
				placement{book2Features, 12, 300.5, 200.5},
			),
			scenePartial: sceneSet(
				placement{book1Features, 5, 100.5, 300.5},
			),
			sceneWrongDim: wrong,
			sceneBothBook: sceneSet(
				placement{book1Features, 16, 100.5, 300.5},
				placement{book2Features, 16, 300.5, 200.5},
			),
		},
	}
}

// newMat returns a blank BGR image, closed when the test ends
func newMat(t *testing.T, rows, cols int) gocv.Mat {
	t.Helper()

	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })

	return m
}

// testParams returns Params matching the fake extractor
func testParams() Params {

	p := DefaultParams()
	p.Extractor = features.SIFT
	p.Workers = 3

	return p
}

// referenceClasses returns the cup and book classes
func referenceClasses(t *testing.T) []ReferenceClass {
	t.Helper()

	return []ReferenceClass{
		{
			Label: "cup",
			Images: []ReferenceInput{
				{Name: "cup1.png", Image: newMat(t, 101, cupWidth)},
			},
		},
		{
			Label: "book",
			Images: []ReferenceInput{
				{Name: "book1.png", Image: newMat(t, 102, book1Width)},
				{Name: "book2.png", Image: newMat(t, 151, book2Width)},
			},
		},
	}
}

// buildTestDatabase builds the reference database with the fake extractor
func buildTestDatabase(t *testing.T, log logs.Log, ext features.Extractor) *Database {
	t.Helper()

	pool, err := newExtractorPool(3, func() (features.Extractor, error) {
		return ext, nil
	})
	require.NoError(t, err)

	db, err := buildDatabase(referenceClasses(t), testParams(), pool, log)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db
}

// newTestDetector returns a detector over db using the brute force searcher
func newTestDetector(t *testing.T, db *Database, log logs.Log, est HomographyEstimator) *KeypointDetector {
	t.Helper()

	if est == nil {
		est = homography.NewEstimator(homography.DefaultParams())
	}

	d, err := NewKeypointDetectorWith(db, testParams(), newFakeExtractor(),
		match.NewBruteForceL2(), est, log)
	require.NoError(t, err)

	return d
}

// texturedMat draws seeded random filled rectangles and circles onto a grey
// BGR image, giving real SIFT plenty of distinct keypoints
func texturedMat(t *testing.T, rows, cols int, seed int64) gocv.Mat {
	t.Helper()

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0),
		rows, cols, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { img.Close() })

	rng := rand.New(rand.NewSource(seed))

	randColor := func() color.RGBA {
		return color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255}
	}

	for i := 0; i < 40; i++ {
		x, y := rng.Intn(cols), rng.Intn(rows)
		r := image.Rect(x, y, x+10+rng.Intn(50), y+10+rng.Intn(50))
		gocv.Rectangle(&img, r, randColor(), -1)
	}

	for i := 0; i < 25; i++ {
		c := image.Pt(rng.Intn(cols), rng.Intn(rows))
		gocv.Circle(&img, c, 5+rng.Intn(20), randColor(), -1)
	}

	return img
}
