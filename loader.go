package featdetect

import (
	"fmt"
	"github.com/cyclopcam/logs"
	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
)

// LoadOptions controls how a reference directory is read
type LoadOptions struct {
	// SkipUnreadable logs and skips files that can't be decoded instead of
	// failing the whole load
	SkipUnreadable bool
	// Classes restricts loading to the listed labels.  Empty loads every
	// class directory.
	Classes []string
	// Log receives warnings for skipped files.  Nil disables them.
	Log logs.Log
}

// LoadReferenceDir reads a reference image directory laid out as one
// subdirectory per class, named by the class label, holding example photos
// of that class.  Classes and images are returned in lexical directory
// order, the precedence order used at detection time.  Images are decoded
// with EXIF orientation applied and returned as BGR Mats owned by the
// caller, see CloseReferences.
func LoadReferenceDir(dir string, opts LoadOptions) ([]ReferenceClass, error) {

	entries, err := os.ReadDir(dir)

	if err != nil {
		return nil, fmt.Errorf("error reading reference directory: %w", err)
	}

	var classes []ReferenceClass

	for _, e := range entries {

		if !e.IsDir() {
			continue
		}

		if len(opts.Classes) > 0 && !slices.Contains(opts.Classes, e.Name()) {
			continue
		}

		rc, err := loadClassDir(filepath.Join(dir, e.Name()), e.Name(), opts)

		if err != nil {
			CloseReferences(classes)
			return nil, err
		}

		classes = append(classes, rc)
	}

	return classes, nil
}

// loadClassDir reads every regular file in a class directory
func loadClassDir(dir, label string, opts LoadOptions) (ReferenceClass, error) {

	rc := ReferenceClass{Label: label}

	entries, err := os.ReadDir(dir)

	if err != nil {
		return rc, fmt.Errorf("error reading class directory %s: %w", label, err)
	}

	for _, e := range entries {

		if !e.Type().IsRegular() {
			continue
		}

		mat, err := loadImage(filepath.Join(dir, e.Name()))

		if err != nil {
			if opts.SkipUnreadable {
				if opts.Log != nil {
					opts.Log.Warnf("Skipping reference %s/%s: %v", label, e.Name(), err)
				}
				continue
			}

			CloseReferences([]ReferenceClass{rc})
			return ReferenceClass{}, fmt.Errorf("%w: %s/%s: %v", ErrUnreadableImage, label, e.Name(), err)
		}

		rc.Images = append(rc.Images, ReferenceInput{Name: e.Name(), Image: mat})
	}

	return rc, nil
}

// loadImage decodes an image file into a BGR Mat
func loadImage(path string) (gocv.Mat, error) {

	img, err := imaging.Open(path, imaging.AutoOrientation(true))

	if err != nil {
		return gocv.Mat{}, err
	}

	return gocv.ImageToMatRGB(img)
}

// CloseReferences frees the Mats of loaded reference classes
func CloseReferences(classes []ReferenceClass) {

	for _, rc := range classes {
		for _, in := range rc.Images {
			_ = in.Image.Close()
		}
	}
}
