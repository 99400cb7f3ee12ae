package raster

import "math"

// samplePattern holds the standard sub-pixel sample offsets for each
// supported sample count, matching the D3D/Vulkan standard locations.
var samplePattern = map[int][][2]float64{
	1: {{0.5, 0.5}},
	2: {{0.75, 0.75}, {0.25, 0.25}},
	4: {{0.375, 0.125}, {0.875, 0.375}, {0.125, 0.625}, {0.625, 0.875}},
	8: {
		{0.5625, 0.3125}, {0.4375, 0.6875}, {0.8125, 0.5625}, {0.3125, 0.1875},
		{0.1875, 0.8125}, {0.0625, 0.4375}, {0.6875, 0.9375}, {0.9375, 0.0625},
	},
}

// SupportedSampleCount reports whether n is a supported sample count.
func SupportedSampleCount(n int) bool {
	_, ok := samplePattern[n]
	return ok
}

// svert is a vertex after the vertex stage, in physical pixels.
type svert struct {
	x, y     float64
	coverage float32
	u, v     float32
	paint    float32
}

// tri is a set-up triangle, wound so that its edge functions are positive
// inside.
type tri struct {
	v       [3]svert
	invArea float64
	topLeft [3]bool
	// Pixel bounds, inclusive.
	minX, minY, maxX, maxY int
}

// edge evaluates the edge function of a→b at p; positive on the inner side.
func edge(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// setup prepares a triangle for rasterization. It returns false for
// degenerate, non-finite or off-target triangles.
func setup(a, b, c svert, width, height int) (tri, bool) {
	area := edge(a.x, a.y, b.x, b.y, c.x, c.y)
	if area == 0 || math.IsNaN(area) || math.IsInf(area, 0) {
		return tri{}, false
	}
	if area < 0 {
		b, c = c, b
		area = -area
	}
	t := tri{v: [3]svert{a, b, c}, invArea: 1 / area}
	for i := range 3 {
		p, q := t.v[i], t.v[(i+1)%3]
		dx, dy := q.x-p.x, q.y-p.y
		// Top edges run in +x along a horizontal; left edges run upward.
		t.topLeft[i] = (dy == 0 && dx > 0) || dy < 0
	}
	minX := math.Min(a.x, math.Min(b.x, c.x))
	maxX := math.Max(a.x, math.Max(b.x, c.x))
	minY := math.Min(a.y, math.Min(b.y, c.y))
	maxY := math.Max(a.y, math.Max(b.y, c.y))
	if maxX < 0 || maxY < 0 || minX >= float64(width) || minY >= float64(height) {
		return tri{}, false
	}
	t.minX = max(0, int(math.Floor(minX)))
	t.minY = max(0, int(math.Floor(minY)))
	t.maxX = min(width-1, int(math.Ceil(maxX)))
	t.maxY = min(height-1, int(math.Ceil(maxY)))
	return t, true
}

// weights returns the barycentric weights of sample point (px, py) and
// whether it lies inside the triangle under the top-left fill rule.
func (t *tri) weights(px, py float64) (w0, w1, w2 float64, inside bool) {
	a, b, c := &t.v[0], &t.v[1], &t.v[2]
	e0 := edge(b.x, b.y, c.x, c.y, px, py) // opposite a
	e1 := edge(c.x, c.y, a.x, a.y, px, py) // opposite b
	e2 := edge(a.x, a.y, b.x, b.y, px, py) // opposite c
	if !covers(e0, t.topLeft[1]) || !covers(e1, t.topLeft[2]) || !covers(e2, t.topLeft[0]) {
		return 0, 0, 0, false
	}
	return e0 * t.invArea, e1 * t.invArea, e2 * t.invArea, true
}

func covers(e float64, topLeft bool) bool {
	return e > 0 || (e == 0 && topLeft)
}

// interpolate blends the varyings of the three vertices.
func (t *tri) interpolate(w0, w1, w2 float64) (coverage, u, v float32) {
	a, b, c := &t.v[0], &t.v[1], &t.v[2]
	coverage = float32(w0*float64(a.coverage) + w1*float64(b.coverage) + w2*float64(c.coverage))
	u = float32(w0*float64(a.u) + w1*float64(b.u) + w2*float64(c.u))
	v = float32(w0*float64(a.v) + w1*float64(b.v) + w2*float64(c.v))
	return coverage, u, v
}
