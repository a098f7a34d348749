package localize

import (
	"errors"
	"github.com/ctessum/go.clipper"
	"github.com/swdee/go-featdetect/homography"
	"image"
	"math"
)

var (
	// ErrDegenerate is returned when a reference corner projects to infinity
	ErrDegenerate = errors.New("homography maps a reference corner to infinity")
	// ErrTooSmall is returned when the projected quadrilateral covers less
	// than the minimum object area
	ErrTooSmall = errors.New("projected object area below minimum")
)

// Box is an axis aligned bounding box in (ymin, xmin, ymax, xmax) order,
// integer pixel coordinates in the scene
type Box struct {
	YMin int
	XMin int
	YMax int
	XMax int
}

// Width returns the horizontal extent of the box
func (b Box) Width() int {
	return b.XMax - b.XMin
}

// Height returns the vertical extent of the box
func (b Box) Height() int {
	return b.YMax - b.YMin
}

// Rect returns the box as an image.Rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.XMin, b.YMin, b.XMax, b.YMax)
}

// Region is the location of a reference image in a scene
type Region struct {
	// Quad holds the projected reference corners in Corners order
	Quad [4]image.Point
	// Box is the min/max over Quad
	Box Box
	// Anchor is where a caption is placed, the x of the first corner and
	// the y of the second
	Anchor image.Point
}

// Area returns the area enclosed by the region quadrilateral
func (r Region) Area() float64 {
	return Area(r.Quad)
}

// Corners returns the corners of a w x h reference image in the order
// top-left, bottom-left, bottom-right, top-right
func Corners(w, h int) [4]homography.Point {
	return [4]homography.Point{
		{X: 0, Y: 0},
		{X: 0, Y: float64(h - 1)},
		{X: float64(w - 1), Y: float64(h - 1)},
		{X: float64(w - 1), Y: 0},
	}
}

// Localize projects the corners of a w x h reference image through h and
// derives the scene quadrilateral, bounding box and caption anchor.
// Projected coordinates are truncated toward zero.
func Localize(h homography.Matrix, w, hgt int) (Region, error) {

	var r Region

	for i, c := range Corners(w, hgt) {
		x, y, ok := h.Project(c.X, c.Y)

		if !ok || math.Abs(x) > math.MaxInt32 || math.Abs(y) > math.MaxInt32 {
			return Region{}, ErrDegenerate
		}

		r.Quad[i] = image.Point{X: int(x), Y: int(y)}
	}

	r.Box = Bound(r.Quad)
	r.Anchor = image.Point{X: r.Quad[0].X, Y: r.Quad[1].Y}

	return r, nil
}

// Bound returns the axis aligned bounding box of a quadrilateral
func Bound(q [4]image.Point) Box {

	b := Box{
		YMin: q[0].Y,
		XMin: q[0].X,
		YMax: q[0].Y,
		XMax: q[0].X,
	}

	for _, p := range q[1:] {
		b.XMin = min(b.XMin, p.X)
		b.YMin = min(b.YMin, p.Y)
		b.XMax = max(b.XMax, p.X)
		b.YMax = max(b.YMax, p.Y)
	}

	return b
}

// toPath converts points to a clipper path
func toPath(pts []image.Point) clipper.Path {

	path := make(clipper.Path, 0, len(pts))

	for _, p := range pts {
		path = append(path, &clipper.IntPoint{X: clipper.CInt(p.X), Y: clipper.CInt(p.Y)})
	}

	return path
}

// fromPath converts a clipper path back to points
func fromPath(path clipper.Path) []image.Point {

	pts := make([]image.Point, len(path))

	for i, p := range path {
		pts[i] = image.Point{X: int(p.X), Y: int(p.Y)}
	}

	return pts
}

// Area returns the unsigned area of a quadrilateral.  Self intersecting
// quadrilaterals, produced by a homography that flips part of the reference,
// have the signed areas of their lobes cancel.
func Area(q [4]image.Point) float64 {
	return math.Abs(clipper.Area(toPath(q[:])))
}

// Clip intersects a quadrilateral with the frame rectangle [0, w) x [0, h)
// and returns the visible polygons.  A quadrilateral entirely outside the
// frame gives no polygons.
func Clip(q [4]image.Point, w, h int) [][]image.Point {

	frame := clipper.Path{
		{X: 0, Y: 0},
		{X: clipper.CInt(w - 1), Y: 0},
		{X: clipper.CInt(w - 1), Y: clipper.CInt(h - 1)},
		{X: 0, Y: clipper.CInt(h - 1)},
	}

	c := clipper.NewClipper(clipper.IoNone)
	c.AddPath(toPath(q[:]), clipper.PtSubject, true)
	c.AddPath(frame, clipper.PtClip, true)

	solution, ok := c.Execute1(clipper.CtIntersection, clipper.PftNonZero, clipper.PftNonZero)

	if !ok {
		return nil
	}

	out := make([][]image.Point, 0, len(solution))

	for _, path := range solution {
		if len(path) >= 3 {
			out = append(out, fromPath(path))
		}
	}

	return out
}

// Localizer turns a homography into a Region, rejecting regions smaller
// than MinArea square pixels.  A zero MinArea accepts any region.
type Localizer struct {
	MinArea float64
}

// Localize projects a w x h reference through h
func (l Localizer) Localize(h homography.Matrix, w, hgt int) (Region, error) {

	r, err := Localize(h, w, hgt)

	if err != nil {
		return Region{}, err
	}

	if l.MinArea > 0 && r.Area() < l.MinArea {
		return Region{}, ErrTooSmall
	}

	return r, nil
}
