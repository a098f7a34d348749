package preprocess

import (
	"gocv.io/x/gocv"
	"image"
	"math"
)

// Downscaler defines the struct used for shrinking large images before
// feature extraction.  Images taller than MaxHeight are scaled on both axes
// by Factor, smaller images pass through at their original size.
type Downscaler struct {
	// MaxHeight is the largest image height in pixels left untouched
	MaxHeight int
	// Factor is the uniform scale applied to images above MaxHeight
	Factor float64
}

// NewDownscaler returns a Downscaler with the given threshold and factor
func NewDownscaler(maxHeight int, factor float64) Downscaler {
	return Downscaler{
		MaxHeight: maxHeight,
		Factor:    factor,
	}
}

// Needed reports whether an image of the given height is scaled
func (d Downscaler) Needed(height int) bool {
	return height > d.MaxHeight
}

// Dims returns the output dimensions for a w x h source image.  Dimensions
// are rounded to the nearest pixel and never drop below one.
func (d Downscaler) Dims(w, h int) (int, int) {

	if !d.Needed(h) {
		return w, h
	}

	dw := int(math.Round(float64(w) * d.Factor))
	dh := int(math.Round(float64(h) * d.Factor))

	return max(dw, 1), max(dh, 1)
}

// Apply returns a downscaled copy of src and whether scaling took place.
// The caller owns the returned Mat and must Close it.
func (d Downscaler) Apply(src gocv.Mat) (gocv.Mat, bool) {

	if src.Empty() || !d.Needed(src.Rows()) {
		return src.Clone(), false
	}

	w, h := d.Dims(src.Cols(), src.Rows())

	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(w, h), 0, 0, gocv.InterpolationArea)

	return dst, true
}
