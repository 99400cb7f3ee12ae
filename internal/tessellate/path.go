package tessellate

import "math"

// Tolerance is the maximum distance between a curve and its flattened
// polyline, in local units.
const Tolerance = 0.25

// maxSubdivision bounds curve recursion for huge or non-finite control points.
const maxSubdivision = 16

// Path records an outline as line and Bézier segments and flattens curves as
// they are added.
type Path struct {
	contours []Contour
	cur      []Point
	start    Point
	last     Point
}

// MoveTo starts a new contour.
func (p *Path) MoveTo(x, y float32) {
	p.flush(false)
	p.start = Point{X: x, Y: y}
	p.last = p.start
	p.cur = append(p.cur[:0:0], p.start)
}

// LineTo adds a straight segment.
func (p *Path) LineTo(x, y float32) {
	p.ensureStarted()
	p.last = Point{X: x, Y: y}
	p.cur = append(p.cur, p.last)
}

// QuadTo adds a quadratic Bézier segment.
func (p *Path) QuadTo(cx, cy, x, y float32) {
	p.ensureStarted()
	end := Point{X: x, Y: y}
	p.cur = flattenQuad(p.last, Point{X: cx, Y: cy}, end, 0, p.cur)
	p.last = end
}

// CubicTo adds a cubic Bézier segment.
func (p *Path) CubicTo(c1x, c1y, c2x, c2y, x, y float32) {
	p.ensureStarted()
	end := Point{X: x, Y: y}
	p.cur = flattenCubic(p.last, Point{X: c1x, Y: c1y}, Point{X: c2x, Y: c2y}, end, 0, p.cur)
	p.last = end
}

// Close closes the current contour.
func (p *Path) Close() {
	p.flush(true)
	p.last = p.start
}

// Contours returns the flattened contours. Open trailing contours are included.
func (p *Path) Contours() []Contour {
	out := append([]Contour(nil), p.contours...)
	if len(p.cur) > 0 {
		out = append(out, Contour{Points: append([]Point(nil), p.cur...)})
	}
	return out
}

func (p *Path) ensureStarted() {
	if len(p.cur) == 0 {
		p.cur = append(p.cur, p.last)
	}
}

func (p *Path) flush(closed bool) {
	if len(p.cur) > 0 {
		p.contours = append(p.contours, Contour{Points: p.cur, Closed: closed})
	}
	p.cur = nil
}

func flattenQuad(p0, p1, p2 Point, depth int, out []Point) []Point {
	if depth >= maxSubdivision || distanceToSegment(p1, p0, p2) < Tolerance {
		return append(out, p2)
	}
	q0, q1 := mid(p0, p1), mid(p1, p2)
	q2 := mid(q0, q1)
	out = flattenQuad(p0, q0, q2, depth+1, out)
	return flattenQuad(q2, q1, p2, depth+1, out)
}

func flattenCubic(p0, p1, p2, p3 Point, depth int, out []Point) []Point {
	if depth >= maxSubdivision || max(distanceToSegment(p1, p0, p3), distanceToSegment(p2, p0, p3)) < Tolerance {
		return append(out, p3)
	}
	q0, q1, q2 := mid(p0, p1), mid(p1, p2), mid(p2, p3)
	r0, r1 := mid(q0, q1), mid(q1, q2)
	s := mid(r0, r1)
	out = flattenCubic(p0, q0, r0, s, depth+1, out)
	return flattenCubic(s, r1, q2, p3, depth+1, out)
}

func mid(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// distanceToSegment is the distance from p to the segment a-b.
func distanceToSegment(p, a, b Point) float32 {
	abx, aby := float64(b.X-a.X), float64(b.Y-a.Y)
	apx, apy := float64(p.X-a.X), float64(p.Y-a.Y)
	l2 := abx*abx + aby*aby
	if l2 < 1e-20 {
		return float32(math.Hypot(apx, apy))
	}
	t := math.Max(0, math.Min(1, (apx*abx+apy*aby)/l2))
	return float32(math.Hypot(apx-abx*t, apy-aby*t))
}

// Radii are per-corner radii of a rounded rectangle.
type Radii struct {
	TopLeft, TopRight, BottomRight, BottomLeft float32
}

// RoundedRect returns the outline of r with rounded corners, clockwise on a
// y-down screen. Radii are clamped to half the shorter side.
func RoundedRect(r Rect, radii Radii) []Point {
	limit := max(0, min(r.Width(), r.Height())/2)
	clamp := func(v float32) float32 {
		if !(v > 0) {
			return 0
		}
		return min(v, limit)
	}
	tl, tr := clamp(radii.TopLeft), clamp(radii.TopRight)
	br, bl := clamp(radii.BottomRight), clamp(radii.BottomLeft)

	var pts []Point
	pts = appendArc(pts, r.MinX+tl, r.MinY+tl, tl, math.Pi, 1.5*math.Pi)
	pts = appendArc(pts, r.MaxX-tr, r.MinY+tr, tr, 1.5*math.Pi, 2*math.Pi)
	pts = appendArc(pts, r.MaxX-br, r.MaxY-br, br, 0, 0.5*math.Pi)
	pts = appendArc(pts, r.MinX+bl, r.MaxY-bl, bl, 0.5*math.Pi, math.Pi)
	return pts
}

// Rectangle returns the four corners of r, clockwise on a y-down screen.
func Rectangle(r Rect) []Point {
	return []Point{
		{X: r.MinX, Y: r.MinY},
		{X: r.MaxX, Y: r.MinY},
		{X: r.MaxX, Y: r.MaxY},
		{X: r.MinX, Y: r.MaxY},
	}
}

func appendArc(pts []Point, cx, cy, radius float32, from, to float64) []Point {
	if radius == 0 {
		return append(pts, Point{X: cx, Y: cy})
	}
	segments := arcSegments(radius, to-from)
	for i := 0; i <= segments; i++ {
		a := from + (to-from)*float64(i)/float64(segments)
		pts = append(pts, Point{
			X: cx + radius*float32(math.Cos(a)),
			Y: cy + radius*float32(math.Sin(a)),
		})
	}
	return pts
}

func arcSegments(radius float32, sweep float64) int {
	r := float64(radius)
	if r <= Tolerance {
		return 1
	}
	step := 2 * math.Acos(1-Tolerance/r)
	n := int(math.Ceil(math.Abs(sweep) / step))
	return max(1, min(n, 64))
}
