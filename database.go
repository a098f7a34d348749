package featdetect

import (
	"errors"
	"fmt"
	"github.com/cyclopcam/logs"
	"github.com/swdee/go-featdetect/features"
	"github.com/swdee/go-featdetect/preprocess"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrDuplicateClass is returned when two reference classes share a label
	ErrDuplicateClass = errors.New("duplicate class label")
	// ErrDimensionMismatch is returned when reference descriptors differ in
	// dimensionality
	ErrDimensionMismatch = errors.New("descriptor dimension mismatch")
	// ErrUnreadableImage is returned when a reference image can not be
	// decoded or is empty
	ErrUnreadableImage = errors.New("unreadable reference image")
)

// ReferenceInput is a single example photo of an object class as supplied
// to BuildDatabase
type ReferenceInput struct {
	// Name identifies the image, usually its file name
	Name string
	// Image is the BGR pixel data.  It is not retained by the Database.
	Image gocv.Mat
}

// ReferenceClass is an object class label and its example photos in
// precedence order
type ReferenceClass struct {
	Label  string
	Images []ReferenceInput
}

// ReferenceImage is an example photo of a class after preprocessing, with
// the features extracted from it
type ReferenceImage struct {
	// Name identifies the image within its class
	Name string
	// Width and Height are the dimensions after downscaling, the same
	// coordinate space as the keypoints
	Width  int
	Height int
	// Image is the downscaled image.  It is empty when the database was
	// restored from a cache.
	Image gocv.Mat
	// Features are the keypoints and descriptors of Image
	Features features.FeatureSet
}

// ClassEntry is an object class in the Database, its reference images and
// the number of frames it has been detected in
type ClassEntry struct {
	Label  string
	Images []*ReferenceImage
	count  counter
}

// Count returns the number of frames this class has been detected in
func (c *ClassEntry) Count() int64 {
	return c.count.value()
}

// Database is the ordered set of object classes detection runs against.
// Class order, and image order within a class, decide which reference wins
// when several would match.
type Database struct {
	classes []*ClassEntry
	index   map[string]*ClassEntry
	// kind is the extractor the features were computed with
	kind features.Kind
	// dim is the descriptor dimensionality shared by all reference images
	dim int
}

// newDatabase returns an empty database for features of the given kind
func newDatabase(kind features.Kind) *Database {
	return &Database{
		index: make(map[string]*ClassEntry),
		kind:  kind,
	}
}

// add appends a class, failing on a label already present
func (db *Database) add(entry *ClassEntry) error {

	if _, ok := db.index[entry.Label]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateClass, entry.Label)
	}

	db.classes = append(db.classes, entry)
	db.index[entry.Label] = entry

	return nil
}

// Classes returns the classes in precedence order
func (db *Database) Classes() []*ClassEntry {

	out := make([]*ClassEntry, len(db.classes))
	copy(out, db.classes)

	return out
}

// Class returns the class with the given label
func (db *Database) Class(label string) (*ClassEntry, bool) {
	entry, ok := db.index[label]
	return entry, ok
}

// Len returns the number of classes
func (db *Database) Len() int {
	return len(db.classes)
}

// Dim returns the descriptor dimensionality, or 0 if no reference image
// produced any features
func (db *Database) Dim() int {
	return db.dim
}

// Kind returns the feature extractor the database was built with
func (db *Database) Kind() features.Kind {
	return db.kind
}

// Counts returns a snapshot of the detection count of every class
func (db *Database) Counts() map[string]int64 {

	counts := make(map[string]int64, len(db.classes))

	for _, c := range db.classes {
		counts[c.Label] = c.Count()
	}

	return counts
}

// Close frees the reference image Mats
func (db *Database) Close() {

	if db == nil {
		return
	}

	for _, c := range db.classes {
		for _, img := range c.Images {
			if img != nil {
				_ = img.Image.Close()
			}
		}
	}
}

// checkDim sets the database dimensionality from the reference features and
// verifies every non empty set agrees with it
func (db *Database) checkDim() error {

	db.dim = 0

	for _, c := range db.classes {
		for _, img := range c.Images {

			d := img.Features.Dim()

			if d == 0 {
				continue
			}

			if db.dim == 0 {
				db.dim = d
				continue
			}

			if d != db.dim {
				return fmt.Errorf("%w: %s/%s has %d, expected %d",
					ErrDimensionMismatch, c.Label, img.Name, d, db.dim)
			}
		}
	}

	return nil
}

// BuildDatabase extracts features from every reference image and returns
// the Database used for detection.  Images taller than p.DownscaleHeight are
// scaled down first.  Extraction runs on p.Workers goroutines but the
// resulting order always follows classes.
func BuildDatabase(classes []ReferenceClass, p Params, log logs.Log) (*Database, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}

	pool, err := NewExtractorPool(p.workers(), p.Extractor)

	if err != nil {
		return nil, fmt.Errorf("error creating extractor pool: %w", err)
	}

	defer pool.Close()

	return buildDatabase(classes, p, pool, log)
}

// buildDatabase runs the extraction using extractors from pool
func buildDatabase(classes []ReferenceClass, p Params, pool *ExtractorPool,
	log logs.Log) (*Database, error) {

	db := newDatabase(p.Extractor)

	for _, rc := range classes {

		entry := &ClassEntry{
			Label:  rc.Label,
			Images: make([]*ReferenceImage, len(rc.Images)),
		}

		if err := db.add(entry); err != nil {
			return nil, err
		}
	}

	ds := preprocess.NewDownscaler(p.DownscaleHeight, p.DownscaleFactor)

	var g errgroup.Group
	g.SetLimit(pool.Size())

	for ci, rc := range classes {
		entry := db.classes[ci]

		for ii, in := range rc.Images {
			g.Go(func() error {

				if in.Image.Empty() {
					return fmt.Errorf("%w: %s/%s", ErrUnreadableImage, rc.Label, in.Name)
				}

				img, scaled := ds.Apply(in.Image)

				ext := pool.Get()
				fs := ext.Extract(img)
				pool.Return(ext)

				entry.Images[ii] = &ReferenceImage{
					Name:     in.Name,
					Width:    img.Cols(),
					Height:   img.Rows(),
					Image:    img,
					Features: fs,
				}

				if fs.Empty() {
					log.Warnf("Reference %s/%s has no keypoints and will never match",
						rc.Label, in.Name)
				} else {
					log.Debugf("Reference %s/%s: %d keypoints (%dx%d, downscaled=%v)",
						rc.Label, in.Name, fs.Len(), img.Cols(), img.Rows(), scaled)
				}

				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		db.Close()
		return nil, err
	}

	if err := db.checkDim(); err != nil {
		db.Close()
		return nil, err
	}

	log.Infof("Reference database built: %d classes, %s descriptors of dimension %d",
		db.Len(), db.kind, db.dim)

	return db, nil
}
