package tessellate

import "math"

// appendStroke adds the stroke body of c to m.Fill and, when aa is set, the
// fringe along both stroke edges (and the butt caps of open contours) to
// m.Fringe. Joins are mitered; miter length is clamped to MiterLimit.
func appendStroke(m *Mesh, c Contour, width float32, aa bool) {
	pts := c.Points
	n := len(pts)
	closed := c.Closed && n > 2
	half := width / 2

	// Offset direction and length per point.
	dirs := make([]Point, n)
	for i := range pts {
		var prev, next Point
		hasPrev := closed || i > 0
		hasNext := closed || i < n-1
		if hasPrev {
			prev = edgeNormal(pts[(i+n-1)%n], pts[i])
		}
		if hasNext {
			next = edgeNormal(pts[i], pts[(i+1)%n])
		}
		switch {
		case hasPrev && hasNext:
			dirs[i] = miter(prev, next, half)
		case hasNext:
			dirs[i] = Point{X: next.X * half, Y: next.Y * half}
		default:
			dirs[i] = Point{X: prev.X * half, Y: prev.Y * half}
		}
	}

	outer := make([]Point, n)
	inner := make([]Point, n)
	for i, p := range pts {
		outer[i] = Point{X: p.X + dirs[i].X, Y: p.Y + dirs[i].Y}
		inner[i] = Point{X: p.X - dirs[i].X, Y: p.Y - dirs[i].Y}
	}

	base := uint32(len(m.Fill.Vertices)) //nolint:gosec // G115: vertex count fits uint32
	for i := range pts {
		m.Fill.Vertices = append(m.Fill.Vertices,
			Vertex{X: outer[i].X, Y: outer[i].Y, Coverage: 1, Paint: PaintStroke},
			Vertex{X: inner[i].X, Y: inner[i].Y, Coverage: 1, Paint: PaintStroke},
		)
	}
	segments := n - 1
	if closed {
		segments = n
	}
	for i := 0; i < segments; i++ {
		j := (i + 1) % n
		o0, i0 := base+uint32(2*i), base+uint32(2*i+1) //nolint:gosec // G115: bounded by vertex count
		o1, i1 := base+uint32(2*j), base+uint32(2*j+1) //nolint:gosec // G115: bounded by vertex count
		m.Fill.Indices = append(m.Fill.Indices, o0, i0, o1, i0, i1, o1)
	}

	if !aa {
		return
	}
	outN := make([]Point, n)
	inN := make([]Point, n)
	for i, d := range dirs {
		u := unit(d)
		outN[i] = u
		inN[i] = Point{X: -u.X, Y: -u.Y}
	}
	appendFringeStrip(&m.Fringe, outer, outN, closed, PaintStroke)
	appendFringeStrip(&m.Fringe, inner, inN, closed, PaintStroke)
	if closed {
		return
	}
	// Butt caps.
	startDir := unit(Point{X: pts[0].X - pts[1].X, Y: pts[0].Y - pts[1].Y})
	endDir := unit(Point{X: pts[n-1].X - pts[n-2].X, Y: pts[n-1].Y - pts[n-2].Y})
	appendFringeStrip(&m.Fringe, []Point{inner[0], outer[0]}, []Point{startDir, startDir}, false, PaintStroke)
	appendFringeStrip(&m.Fringe, []Point{outer[n-1], inner[n-1]}, []Point{endDir, endDir}, false, PaintStroke)
}

// miter returns the join offset for two unit edge normals.
func miter(prev, next Point, half float32) Point {
	d := joinNormal(prev, next)
	cos := d.X*next.X + d.Y*next.Y
	l := half * MiterLimit
	if cos > 1e-6 {
		l = min(half/cos, l)
	}
	return Point{X: d.X * l, Y: d.Y * l}
}

func unit(p Point) Point {
	l := float32(math.Hypot(float64(p.X), float64(p.Y)))
	if l == 0 {
		return Point{}
	}
	return Point{X: p.X / l, Y: p.Y / l}
}
