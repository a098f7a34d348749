package features

import (
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// Extractor detects keypoints and computes their descriptors for an image.
// Implementations wrap OpenCV feature detectors which are not safe for
// concurrent use, so an Extractor must only be used by one goroutine at a
// time.
type Extractor interface {
	// Extract returns the features found in img.  An image with no
	// detectable keypoints yields an empty FeatureSet.
	Extract(img gocv.Mat) FeatureSet
	// Kind returns the algorithm the extractor implements
	Kind() Kind
	// Close frees the underlying detector
	Close() error
}

// NewExtractor returns an Extractor for the given kind
func NewExtractor(kind Kind) (Extractor, error) {

	switch kind {
	case SIFT:
		return NewSIFTExtractor(false), nil
	case RootSIFT:
		return NewSIFTExtractor(true), nil
	case SURF:
		return NewSURFExtractor(), nil
	}

	return nil, ErrInvalidKind
}

// SIFTExtractor extracts SIFT features, optionally transformed to RootSIFT
type SIFTExtractor struct {
	sift gocv.SIFT
	// root applies the RootSIFT transform to all descriptors
	root bool
	gray gocv.Mat
}

// NewSIFTExtractor returns a SIFT feature extractor.  When root is true the
// descriptors are RootSIFT normalised.
func NewSIFTExtractor(root bool) *SIFTExtractor {
	return &SIFTExtractor{
		sift: gocv.NewSIFT(),
		root: root,
		gray: gocv.NewMat(),
	}
}

// Kind returns SIFT or RootSIFT
func (s *SIFTExtractor) Kind() Kind {

	if s.root {
		return RootSIFT
	}

	return SIFT
}

// Extract runs SIFT on img
func (s *SIFTExtractor) Extract(img gocv.Mat) FeatureSet {

	if img.Empty() {
		return FeatureSet{}
	}

	src := toGray(img, &s.gray)

	mask := gocv.NewMat()
	defer mask.Close()

	kps, desc := s.sift.DetectAndCompute(src, mask)
	defer desc.Close()

	fs := fromGocv(kps, desc)

	if s.root {
		fs = NormalizeSet(fs)
	}

	return fs
}

// Close frees the SIFT detector
func (s *SIFTExtractor) Close() error {
	s.gray.Close()
	return s.sift.Close()
}

// SURFExtractor extracts SURF features.  It requires OpenCV to be built with
// the contrib nonfree modules.
type SURFExtractor struct {
	surf contrib.SURF
	gray gocv.Mat
}

// NewSURFExtractor returns a SURF feature extractor with OpenCV defaults
func NewSURFExtractor() *SURFExtractor {
	return &SURFExtractor{
		surf: contrib.NewSURF(),
		gray: gocv.NewMat(),
	}
}

// Kind returns SURF
func (s *SURFExtractor) Kind() Kind {
	return SURF
}

// Extract runs SURF on img
func (s *SURFExtractor) Extract(img gocv.Mat) FeatureSet {

	if img.Empty() {
		return FeatureSet{}
	}

	src := toGray(img, &s.gray)

	mask := gocv.NewMat()
	defer mask.Close()

	kps, desc := s.surf.DetectAndCompute(src, mask)
	defer desc.Close()

	return fromGocv(kps, desc)
}

// Close frees the SURF detector
func (s *SURFExtractor) Close() error {
	s.gray.Close()
	return s.surf.Close()
}

// toGray converts a multi channel BGR image to grayscale using buf as the
// destination, single channel images are returned as is
func toGray(img gocv.Mat, buf *gocv.Mat) gocv.Mat {

	switch img.Channels() {
	case 3:
		gocv.CvtColor(img, buf, gocv.ColorBGRToGray)
		return *buf
	case 4:
		gocv.CvtColor(img, buf, gocv.ColorBGRAToGray)
		return *buf
	}

	return img
}

// fromGocv copies gocv keypoints and a CV_32F descriptor Mat (one row per
// keypoint) into a FeatureSet
func fromGocv(kps []gocv.KeyPoint, desc gocv.Mat) FeatureSet {

	if len(kps) == 0 || desc.Empty() {
		return FeatureSet{}
	}

	rows := desc.Rows()
	cols := desc.Cols()

	if rows > len(kps) {
		rows = len(kps)
	}

	fs := FeatureSet{
		Keypoints:   make([]Keypoint, rows),
		Descriptors: make([]Descriptor, rows),
	}

	for i := 0; i < rows; i++ {
		kp := kps[i]

		fs.Keypoints[i] = Keypoint{
			X:        kp.X,
			Y:        kp.Y,
			Size:     kp.Size,
			Angle:    kp.Angle,
			Response: kp.Response,
			Octave:   kp.Octave,
		}

		d := make(Descriptor, cols)

		for j := 0; j < cols; j++ {
			d[j] = desc.GetFloatAt(i, j)
		}

		fs.Descriptors[i] = d
	}

	return fs
}
