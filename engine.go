package featdetect

import (
	"errors"
	"fmt"
	"github.com/cyclopcam/logs"
	"github.com/swdee/go-featdetect/features"
	"github.com/swdee/go-featdetect/homography"
	"github.com/swdee/go-featdetect/localize"
	"github.com/swdee/go-featdetect/match"
	"gocv.io/x/gocv"
	"image"
	"sync"
)

// ErrKindMismatch is returned when a database was built with a different
// feature extractor than the detector is configured for
var ErrKindMismatch = errors.New("database extractor kind mismatch")

// Box is an axis aligned bounding box in (ymin, xmin, ymax, xmax) order
type Box = localize.Box

// Detection is a class found in a frame
type Detection struct {
	// Label of the detected class
	Label string
	// Box bounds Quad
	Box Box
	// Quad is the reference image outline projected into the frame, corners
	// in the order top-left, bottom-left, bottom-right, top-right of the
	// reference
	Quad [4]image.Point
	// Anchor is the caption position
	Anchor image.Point
	// Count is the class detection count including this frame
	Count int64
	// Reference is the name of the reference image that matched
	Reference string
	// Matches is the number of correspondences passing the ratio test
	Matches int
	// Inliers is the number of correspondences supporting the homography
	Inliers int
}

// Result holds the detections of a single frame.  Each class appears at
// most once.
type Result struct {
	// Boxes maps class label to its bounding boxes
	Boxes map[string][]Box
	// Detections in database class order
	Detections []Detection
}

// newResult returns an empty Result
func newResult() Result {
	return Result{
		Boxes: make(map[string][]Box),
	}
}

// add records a detection
func (r *Result) add(d Detection) {
	r.Boxes[d.Label] = append(r.Boxes[d.Label], d.Box)
	r.Detections = append(r.Detections, d)
}

// Empty reports whether nothing was detected
func (r Result) Empty() bool {
	return len(r.Detections) == 0
}

// Detector finds object classes in a frame
type Detector interface {
	// Detect returns the classes present in frame.  It never fails, a frame
	// that can't be processed gives an empty Result.
	Detect(frame gocv.Mat) Result
}

// HomographyEstimator robustly fits a homography to noisy correspondences
type HomographyEstimator interface {
	Estimate(src, dst []homography.Point) (homography.Result, error)
}

// KeypointDetector detects classes by matching frame keypoints against a
// reference Database
type KeypointDetector struct {
	db        *Database
	params    Params
	extractor features.Extractor
	searcher  match.Searcher
	estimator HomographyEstimator
	localizer localize.Localizer
	log       logs.Log
	// owned is set when the extractor and searcher were created here and
	// must be closed with the detector
	owned bool
	// mu serialises Detect as OpenCV extractors keep per call state
	mu sync.Mutex
}

// NewKeypointDetector returns a detector for db with the extractor, searcher
// and estimator described by p
func NewKeypointDetector(db *Database, p Params, log logs.Log) (*KeypointDetector, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}

	ext, err := features.NewExtractor(p.Extractor)

	if err != nil {
		return nil, fmt.Errorf("error creating extractor: %w", err)
	}

	searcher, err := match.NewSearcher(p.Matcher)

	if err != nil {
		ext.Close()
		return nil, fmt.Errorf("error creating searcher: %w", err)
	}

	d, err := NewKeypointDetectorWith(db, p, ext, searcher,
		homography.NewEstimator(p.Homography), log)

	if err != nil {
		ext.Close()
		searcher.Close()
		return nil, err
	}

	d.owned = true

	return d, nil
}

// NewKeypointDetectorWith returns a detector using the given components.
// The caller keeps ownership of ext and searcher.
func NewKeypointDetectorWith(db *Database, p Params, ext features.Extractor,
	searcher match.Searcher, est HomographyEstimator, log logs.Log) (*KeypointDetector, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}

	if db.Kind() != p.Extractor {
		return nil, fmt.Errorf("%w: database %v, detector %v", ErrKindMismatch,
			db.Kind(), p.Extractor)
	}

	if ext.Kind() != db.Kind() {
		return nil, fmt.Errorf("%w: database %v, extractor %v", ErrKindMismatch,
			db.Kind(), ext.Kind())
	}

	return &KeypointDetector{
		db:        db,
		params:    p,
		extractor: ext,
		searcher:  searcher,
		estimator: est,
		localizer: localize.Localizer{MinArea: p.MinObjectArea},
		log:       log,
	}, nil
}

// Detect extracts the frame features once and tries every class in database
// order.  Within a class the first reference image that passes the ratio
// test and localizes is used and the class counter goes up by one.
func (d *KeypointDetector) Detect(frame gocv.Mat) Result {

	d.mu.Lock()
	defer d.mu.Unlock()

	res := newResult()

	if frame.Empty() {
		return res
	}

	scene := d.extractor.Extract(frame)

	if scene.Empty() {
		d.log.Debugf("Frame has no keypoints")
		return res
	}

	if d.db.Dim() != 0 && scene.Dim() != d.db.Dim() {
		d.log.Errorf("Frame descriptor dimension %d does not match database dimension %d",
			scene.Dim(), d.db.Dim())
		return res
	}

	for _, class := range d.db.classes {

		det, ok := d.detectClass(class, scene)

		if !ok {
			continue
		}

		det.Count = class.count.increment()
		res.add(det)
	}

	return res
}

// detectClass returns the detection from the first reference image of class
// that matches and localizes in scene
func (d *KeypointDetector) detectClass(class *ClassEntry, scene features.FeatureSet) (Detection, bool) {

	for _, ref := range class.Images {

		good, ok := match.Match(d.searcher, ref.Features, scene, d.params.MinPoints)

		if !ok {
			continue
		}

		src := make([]homography.Point, len(good))
		dst := make([]homography.Point, len(good))

		for i, m := range good {
			src[i].X, src[i].Y = ref.Features.Point(m.RefIndex)
			dst[i].X, dst[i].Y = scene.Point(m.SceneIndex)
		}

		hr, err := d.estimator.Estimate(src, dst)

		if err != nil {
			d.log.Debugf("%s/%s: %d good matches, homography failed: %v",
				class.Label, ref.Name, len(good), err)
			continue
		}

		region, err := d.localizer.Localize(hr.H, ref.Width, ref.Height)

		if err != nil {
			d.log.Debugf("%s/%s: localization failed: %v", class.Label, ref.Name, err)
			continue
		}

		return Detection{
			Label:     class.Label,
			Box:       region.Box,
			Quad:      region.Quad,
			Anchor:    region.Anchor,
			Reference: ref.Name,
			Matches:   len(good),
			Inliers:   len(hr.Inliers),
		}, true
	}

	return Detection{}, false
}

// Counts returns a snapshot of the detection count of every class
func (d *KeypointDetector) Counts() map[string]int64 {
	return d.db.Counts()
}

// Database returns the reference database
func (d *KeypointDetector) Database() *Database {
	return d.db
}

// Close frees the extractor and searcher if the detector created them
func (d *KeypointDetector) Close() error {

	if !d.owned {
		return nil
	}

	return errors.Join(d.extractor.Close(), d.searcher.Close())
}
