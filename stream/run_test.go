package stream

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-featdetect"
	"gocv.io/x/gocv"
	"os"
	"path/filepath"
	"testing"
)

// widthDetector reports a "wide" detection for frames wider than 100 pixels
type widthDetector struct {
	calls int
}

func (w *widthDetector) Detect(frame gocv.Mat) featdetect.Result {

	w.calls++

	res := featdetect.Result{Boxes: make(map[string][]featdetect.Box)}

	if frame.Cols() > 100 {
		res.Boxes["wide"] = []featdetect.Box{{XMax: frame.Cols(), YMax: frame.Rows()}}
		res.Detections = append(res.Detections, featdetect.Detection{Label: "wide"})
	}

	return res
}

// frames returns blank frames of the given widths
func frames(t *testing.T, widths ...int) []gocv.Mat {
	t.Helper()

	out := make([]gocv.Mat, len(widths))

	for i, w := range widths {
		out[i] = gocv.NewMatWithSize(50, w, gocv.MatTypeCV8UC3)
	}

	t.Cleanup(func() {
		for _, m := range out {
			m.Close()
		}
	})

	return out
}

func TestRun(t *testing.T) {

	det := &widthDetector{}
	var found []bool

	n, err := Run(context.Background(), NewMatSource(frames(t, 50, 150, 200)...), det,
		func(frame gocv.Mat, res featdetect.Result) bool {
			found = append(found, !res.Empty())
			return true
		})

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, det.calls)
	assert.Equal(t, []bool{false, true, true}, found)
}

func TestRunSinkStops(t *testing.T) {

	det := &widthDetector{}

	n, err := Run(context.Background(), NewMatSource(frames(t, 150, 150, 150)...), det,
		func(frame gocv.Mat, res featdetect.Result) bool {
			return false
		})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, det.calls)
}

func TestRunCancelled(t *testing.T) {

	ctx, cancel := context.WithCancel(context.Background())
	det := &widthDetector{}

	n, err := Run(ctx, NewMatSource(frames(t, 150, 150, 150)...), det,
		func(frame gocv.Mat, res featdetect.Result) bool {
			cancel()
			return true
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)

	// nil sink runs to the end of the stream
	n, err = Run(context.Background(), NewMatSource(frames(t, 10, 20)...), det, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImageDirSource(t *testing.T) {

	dir := t.TempDir()

	for i, name := range []string{"b.png", "a.png", "c.jpg"} {
		img := gocv.NewMatWithSize(20, 30+i, gocv.MatTypeCV8UC3)
		require.True(t, gocv.IMWrite(filepath.Join(dir, name), img))
		img.Close()
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("nope"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644))

	src, err := NewImageDirSource(dir)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 4, src.Len())

	var names []string
	var widths []int

	for {
		frame, ok := src.Next()

		if !ok {
			break
		}

		names = append(names, filepath.Base(src.Current()))
		widths = append(widths, frame.Cols())
	}

	assert.Equal(t, []string{"a.png", "b.png", "c.jpg"}, names)
	assert.Equal(t, []int{31, 30, 32}, widths)
	assert.Equal(t, 1, src.Skipped())

	_, err = NewImageDirSource(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
