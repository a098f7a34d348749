package render

import (
	"github.com/lucasb-eyer/go-colorful"
	"image/color"
)

var (
	Black  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

// ClassPalette returns n visually distinct colors with evenly spaced hues,
// used to give each class its own outline color.  The same n always gives
// the same palette.
func ClassPalette(n int) []color.RGBA {

	palette := make([]color.RGBA, n)

	for i := range palette {
		c := colorful.Hsv(float64(i)*360/float64(n), 0.85, 0.95)
		r, g, b := c.RGB255()
		palette[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}

	return palette
}

// ClassColors assigns a palette color to every label in order
func ClassColors(labels []string) map[string]color.RGBA {

	palette := ClassPalette(len(labels))
	colors := make(map[string]color.RGBA, len(labels))

	for i, label := range labels {
		colors[label] = palette[i]
	}

	return colors
}
