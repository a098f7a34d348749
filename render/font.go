package render

import (
	"gocv.io/x/gocv"
	"image/color"
)

// Font defines the parameters for rendering text on an image using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
}

// DefaultFont returns default font settings of black Hershey complex small
// text at scale 1.2
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheyComplexSmall,
		Scale:     1.2,
		Color:     Black,
		Thickness: 2,
		LineType:  gocv.LineAA,
	}
}
