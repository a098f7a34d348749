package stream

import (
	"fmt"
	"gocv.io/x/gocv"
	"os"
	"path/filepath"
	"strings"
)

// FrameSource yields frames one at a time until the stream ends
type FrameSource interface {
	// Next returns the next frame and true, or false once the stream has
	// ended.  The frame is owned by the source and only valid until the next
	// call.
	Next() (gocv.Mat, bool)
	// Close releases the source
	Close() error
}

// CaptureSource reads frames from an OpenCV video capture, either a camera
// or a video file
type CaptureSource struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

// NewCameraSource opens the camera with the given device ID
func NewCameraSource(id int) (*CaptureSource, error) {

	capture, err := gocv.VideoCaptureDevice(id)

	if err != nil {
		return nil, fmt.Errorf("error opening camera %d: %w", id, err)
	}

	return newCaptureSource(capture), nil
}

// NewVideoSource opens a video file
func NewVideoSource(path string) (*CaptureSource, error) {

	capture, err := gocv.VideoCaptureFile(path)

	if err != nil {
		return nil, fmt.Errorf("error opening video file: %w", err)
	}

	return newCaptureSource(capture), nil
}

func newCaptureSource(capture *gocv.VideoCapture) *CaptureSource {
	return &CaptureSource{
		capture: capture,
		frame:   gocv.NewMat(),
	}
}

// Next reads the next frame.  A failed or empty read ends the stream.
func (c *CaptureSource) Next() (gocv.Mat, bool) {

	if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
		return c.frame, false
	}

	return c.frame, true
}

// Close releases the capture device
func (c *CaptureSource) Close() error {
	c.frame.Close()
	return c.capture.Close()
}

// imageExts are the file extensions read by ImageDirSource
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// ImageDirSource yields the images of a directory in lexical order
type ImageDirSource struct {
	files   []string
	next    int
	current string
	skipped int
	frame   gocv.Mat
}

// NewImageDirSource lists the image files in dir
func NewImageDirSource(dir string) (*ImageDirSource, error) {

	entries, err := os.ReadDir(dir)

	if err != nil {
		return nil, fmt.Errorf("error reading image directory: %w", err)
	}

	s := &ImageDirSource{
		frame: gocv.NewMat(),
	}

	for _, e := range entries {

		if !e.Type().IsRegular() {
			continue
		}

		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			s.files = append(s.files, filepath.Join(dir, e.Name()))
		}
	}

	return s, nil
}

// Next reads the next image.  Files OpenCV can't decode are skipped.
func (s *ImageDirSource) Next() (gocv.Mat, bool) {

	for s.next < len(s.files) {
		file := s.files[s.next]
		s.next++

		img := gocv.IMRead(file, gocv.IMReadColor)

		if img.Empty() {
			img.Close()
			s.skipped++
			continue
		}

		s.frame.Close()
		s.frame = img
		s.current = file

		return s.frame, true
	}

	return s.frame, false
}

// Current returns the path of the image last returned by Next
func (s *ImageDirSource) Current() string {
	return s.current
}

// Len returns the number of image files found
func (s *ImageDirSource) Len() int {
	return len(s.files)
}

// Skipped returns the number of files that could not be decoded
func (s *ImageDirSource) Skipped() int {
	return s.skipped
}

// Close frees the last frame
func (s *ImageDirSource) Close() error {
	return s.frame.Close()
}

// MatSource yields a fixed list of frames, eg: a single image
type MatSource struct {
	frames []gocv.Mat
	next   int
}

// NewMatSource returns a source over frames.  The caller keeps ownership of
// the frames.
func NewMatSource(frames ...gocv.Mat) *MatSource {
	return &MatSource{frames: frames}
}

// Next returns the next frame in the list
func (m *MatSource) Next() (gocv.Mat, bool) {

	if m.next >= len(m.frames) {
		return gocv.Mat{}, false
	}

	f := m.frames[m.next]
	m.next++

	return f, true
}

// Close does nothing as the frames belong to the caller
func (m *MatSource) Close() error {
	return nil
}
