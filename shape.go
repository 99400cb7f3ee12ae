package strata

import (
	"github.com/gogpu/strata/internal/tessellate"
)

// Point is a 2D point in a shape's local coordinates.
type Point struct {
	X, Y float32
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float32) Point { return Point{X: x, Y: y} }

// Rect is an axis-aligned rectangle.
type Rect struct {
	MinX, MinY, MaxX, MaxY float32
}

// XYWH creates a rectangle from its origin and size.
func XYWH(x, y, w, h float32) Rect {
	return Rect{MinX: x, MinY: y, MaxX: x + w, MaxY: y + h}
}

// BorderRadii are per-corner radii of a rounded rectangle.
type BorderRadii struct {
	TopLeft, TopRight, BottomRight, BottomLeft float32
}

// UniformRadii gives every corner radius r.
func UniformRadii(r float32) BorderRadii {
	return BorderRadii{r, r, r, r}
}

// Path records an outline from line and Bézier segments. Curves are
// flattened as they are added, within a quarter of a logical pixel.
type Path struct {
	p tessellate.Path
}

// NewPath returns an empty path.
func NewPath() *Path { return &Path{} }

// MoveTo starts a new contour.
func (p *Path) MoveTo(x, y float32) { p.p.MoveTo(x, y) }

// LineTo adds a straight segment.
func (p *Path) LineTo(x, y float32) { p.p.LineTo(x, y) }

// QuadTo adds a quadratic Bézier segment.
func (p *Path) QuadTo(cx, cy, x, y float32) { p.p.QuadTo(cx, cy, x, y) }

// CubicTo adds a cubic Bézier segment.
func (p *Path) CubicTo(c1x, c1y, c2x, c2y, x, y float32) {
	p.p.CubicTo(c1x, c1y, c2x, c2y, x, y)
}

// Close closes the current contour.
func (p *Path) Close() { p.p.Close() }

// Stroke describes a shape's outline paint.
type Stroke struct {
	Width float32
	Color Color
}

// Shape is an outline with its paint. Shapes are values; the renderer
// tessellates a copy when it is added.
type Shape struct {
	contours []tessellate.Contour

	// Fill is the fill color. SetColor overrides it per instance.
	Fill Color
	// NoFill leaves the interior unpainted (stroke only).
	NoFill bool
	// Stroke outlines the shape when Width > 0.
	Stroke Stroke
	// UV maps the shape bounds onto this rectangle of its textures, in
	// normalized texture coordinates. The zero value maps the whole texture.
	UV Rect
}

// NewRect returns a rectangle filled black.
func NewRect(r Rect) Shape {
	return polygonShape(tessellate.Rectangle(tessellate.Rect(r)))
}

// NewRoundedRect returns a rectangle with rounded corners. Radii are clamped
// to half the shorter side.
func NewRoundedRect(r Rect, radii BorderRadii) Shape {
	return polygonShape(tessellate.RoundedRect(tessellate.Rect(r), tessellate.Radii(radii)))
}

// NewPolygon returns a closed polygon. Self-intersecting outlines are filled
// best-effort and reported as ErrTessellationDegenerate diagnostics.
func NewPolygon(points ...Point) Shape {
	pts := make([]tessellate.Point, len(points))
	for i, p := range points {
		pts[i] = tessellate.Point(p)
	}
	return polygonShape(pts)
}

// NewPathShape returns the shape outlined by p. Open contours are filled as
// if closed and stroked open.
func NewPathShape(p *Path) Shape {
	return Shape{contours: p.p.Contours(), Fill: Black}
}

func polygonShape(pts []tessellate.Point) Shape {
	return Shape{
		contours: []tessellate.Contour{{Points: pts, Closed: true}},
		Fill:     Black,
	}
}

// WithFill returns s filled with c.
func (s Shape) WithFill(c Color) Shape {
	s.Fill = c
	s.NoFill = false
	return s
}

// WithStroke returns s outlined with the given width and color.
func (s Shape) WithStroke(width float32, c Color) Shape {
	s.Stroke = Stroke{Width: width, Color: c}
	return s
}

// WithoutFill returns s with only its stroke painted.
func (s Shape) WithoutFill() Shape {
	s.NoFill = true
	return s
}

// WithUV returns s with its texture coordinates mapped onto uv.
func (s Shape) WithUV(uv Rect) Shape {
	s.UV = uv
	return s
}

// Bounds returns the bounding box of the outline.
func (s Shape) Bounds() Rect {
	var r Rect
	first := true
	for _, c := range s.contours {
		for _, p := range c.Points {
			if first {
				r = Rect{p.X, p.Y, p.X, p.Y}
				first = false
				continue
			}
			r.MinX, r.MinY = min(r.MinX, p.X), min(r.MinY, p.Y)
			r.MaxX, r.MaxY = max(r.MaxX, p.X), max(r.MaxY, p.Y)
		}
	}
	return r
}

func (s Shape) input(antiAlias bool) tessellate.Input {
	contours := make([]tessellate.Contour, len(s.contours))
	for i, c := range s.contours {
		contours[i] = tessellate.Contour{Points: append([]tessellate.Point(nil), c.Points...), Closed: c.Closed}
	}
	return tessellate.Input{
		Contours:    contours,
		Fill:        !s.NoFill,
		StrokeWidth: s.Stroke.Width,
		AntiAlias:   antiAlias,
		UV:          tessellate.Rect(s.UV),
	}
}
