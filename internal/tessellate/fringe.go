package tessellate

import "math"

// appendFringeRing appends the anti-aliasing strip around a closed outline.
// Normals point outward for positive signed area and inward otherwise, which
// for a hole ring is away from the fill.
func appendFringeRing(dst *Part, pts []Point, paint float32) {
	n := len(pts)
	normals := make([]Point, n)
	for i := range pts {
		prev := edgeNormal(pts[(i+n-1)%n], pts[i])
		next := edgeNormal(pts[i], pts[(i+1)%n])
		normals[i] = joinNormal(prev, next)
	}
	appendFringeStrip(dst, pts, normals, true, paint)
}

// appendFringeStrip emits an inner/outer vertex pair per point and joins
// consecutive pairs with quads. Closed strips also join the last pair to the
// first.
func appendFringeStrip(dst *Part, pts, normals []Point, closed bool, paint float32) {
	base := uint32(len(dst.Vertices)) //nolint:gosec // G115: vertex count fits uint32
	for i, p := range pts {
		nrm := normals[i]
		dst.Vertices = append(dst.Vertices,
			Vertex{X: p.X, Y: p.Y, NX: nrm.X, NY: nrm.Y, Coverage: 1, Paint: paint},
			Vertex{X: p.X, Y: p.Y, NX: nrm.X, NY: nrm.Y, Coverage: 0, Paint: paint},
		)
	}
	segments := len(pts) - 1
	if closed {
		segments = len(pts)
	}
	for i := 0; i < segments; i++ {
		j := (i + 1) % len(pts)
		in0, out0 := base+uint32(2*i), base+uint32(2*i+1) //nolint:gosec // G115: bounded by vertex count
		in1, out1 := base+uint32(2*j), base+uint32(2*j+1) //nolint:gosec // G115: bounded by vertex count
		dst.Indices = append(dst.Indices, in0, out0, out1, in0, out1, in1)
	}
}

// edgeNormal returns the unit normal of a→b pointing to the outside of a
// polygon with positive signed area.
func edgeNormal(a, b Point) Point {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return Point{}
	}
	return Point{X: dy / l, Y: -dx / l}
}

// joinNormal averages two unit edge normals. A 180° spike falls back to the
// second normal.
func joinNormal(a, b Point) Point {
	s := Point{X: a.X + b.X, Y: a.Y + b.Y}
	l := float32(math.Hypot(float64(s.X), float64(s.Y)))
	if l < 1e-6 {
		return b
	}
	return Point{X: s.X / l, Y: s.Y / l}
}
