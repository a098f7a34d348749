package features

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"image"
	"image/color"
	"math/rand"
	"testing"
)

// texturedMat draws seeded random filled rectangles and circles onto a grey
// BGR image so SIFT finds plenty of distinct corners and blobs
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

func TestSIFTExtractor(t *testing.T) {

	img := texturedMat(t, 240, 320, 7)

	sift, err := NewExtractor(SIFT)
	require.NoError(t, err)
	defer sift.Close()

	root, err := NewExtractor(RootSIFT)
	require.NoError(t, err)
	defer root.Close()

	assert.Equal(t, SIFT, sift.Kind())
	assert.Equal(t, RootSIFT, root.Kind())

	plain := sift.Extract(img)
	require.False(t, plain.Empty())
	require.Len(t, plain.Descriptors, plain.Len())
	assert.Equal(t, 128, plain.Dim())

	for i, kp := range plain.Keypoints {
		assert.True(t, kp.X >= 0 && kp.X < 320 && kp.Y >= 0 && kp.Y < 240,
			"keypoint %d at (%v, %v) outside the image", i, kp.X, kp.Y)
	}

	// same detector underneath, so keypoints line up row for row and each
	// RootSIFT descriptor is the transform of the matching SIFT descriptor
	normed := root.Extract(img)
	require.Equal(t, plain.Len(), normed.Len())

	for i := 0; i < plain.Len(); i += 17 {
		assert.Equal(t, plain.Keypoints[i], normed.Keypoints[i])
		assert.InDeltaSlice(t, RootSIFT(plain.Descriptors[i]), normed.Descriptors[i], 1e-5)
	}

	// grayscale input gives the same features as BGR
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	assert.Equal(t, plain.Len(), sift.Extract(gray).Len())
}

func TestSIFTExtractorNoKeypoints(t *testing.T) {

	flat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(50, 50, 50, 0), 100, 100, gocv.MatTypeCV8UC3)
	defer flat.Close()

	ext := NewSIFTExtractor(true)
	defer ext.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	assert.True(t, ext.Extract(flat).Empty())
	assert.True(t, ext.Extract(empty).Empty())

	_, err := NewExtractor(Kind(99))
	assert.ErrorIs(t, err, ErrInvalidKind)
}
