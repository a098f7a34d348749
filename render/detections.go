package render

import (
	"fmt"
	"github.com/swdee/go-featdetect"
	"github.com/swdee/go-featdetect/localize"
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// Style defines how detections are drawn
type Style struct {
	// LineColor is the outline color used for classes not in ClassColors
	LineColor color.RGBA
	// LineThickness of the outline in pixels
	LineThickness int
	// ClassColors optionally overrides LineColor per class label
	ClassColors map[string]color.RGBA
	// Font of the "label: count" caption
	Font Font
}

// DefaultStyle returns the default style of a thick yellow outline with a
// black caption
func DefaultStyle() Style {
	return Style{
		LineColor:     Yellow,
		LineThickness: 10,
		Font:          DefaultFont(),
	}
}

// color returns the outline color for a label
func (s Style) color(label string) color.RGBA {

	if c, ok := s.ClassColors[label]; ok {
		return c
	}

	return s.LineColor
}

// Caption returns the text drawn next to a detection
func Caption(det featdetect.Detection) string {
	return fmt.Sprintf("%s: %d", det.Label, det.Count)
}

// Detections draws the projected outline of every detection and its
// caption onto img.  Detections that fall completely outside the image are
// skipped.
func Detections(img *gocv.Mat, res featdetect.Result, style Style) {

	w, h := img.Cols(), img.Rows()

	for _, det := range res.Detections {

		visible := localize.Clip(det.Quad, w, h)

		if len(visible) == 0 {
			continue
		}

		pts := gocv.NewPointsVectorFromPoints([][]image.Point{det.Quad[:]})
		gocv.Polylines(img, pts, true, style.color(det.Label), style.LineThickness)
		pts.Close()

		pos := captionPosition(det.Anchor, visible, w, h)

		gocv.PutTextWithParams(img, Caption(det), pos, style.Font.Face,
			style.Font.Scale, style.Font.Color, style.Font.Thickness,
			style.Font.LineType, false)
	}
}

// captionPosition returns the anchor when it lies in the image, otherwise
// the top left corner of the visible part of the outline
func captionPosition(anchor image.Point, visible [][]image.Point, w, h int) image.Point {

	if anchor.In(image.Rect(0, 0, w, h)) {
		return anchor
	}

	first := visible[0][0]
	r := image.Rectangle{Min: first, Max: first}

	for _, poly := range visible {
		for _, p := range poly {
			r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
		}
	}

	return r.Min
}
