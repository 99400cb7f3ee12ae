package xform

import "math"

// normalStep is the local-space distance used to sample the screen-space
// direction of a fringe normal.
const normalStep = 1e-2

// FringeOffset projects a fringe vertex and pushes it outward by width logical
// pixels along the screen-space image of its local normal (nx, ny). The
// result is in logical pixels. Vertices with a zero normal are only projected.
func FringeOffset(m Mat4, x, y, nx, ny, width float32) (sx, sy float32) {
	sx, sy, _ = m.Project(x, y)
	if nx == 0 && ny == 0 {
		return sx, sy
	}
	qx, qy, _ := m.Project(x+nx*normalStep, y+ny*normalStep)
	dx, dy := qx-sx, qy-sy
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if !(l > 1e-12) || math.IsInf(float64(l), 0) {
		// Degenerate projection: fall back to the untransformed normal.
		dx, dy = nx, ny
		l = float32(math.Hypot(float64(dx), float64(dy)))
	}
	return sx + dx/l*width, sy + dy/l*width
}

// ProjectVertex is the vertex stage shared by the software rasterizer: it
// projects the local vertex, offsets fringe vertices (coverage < 1) and
// converts logical to physical pixels with the display scale factor.
func ProjectVertex(m Mat4, x, y, nx, ny, coverage, fringeWidth, scale float32) (px, py float32) {
	var sx, sy float32
	if coverage < 1 {
		sx, sy = FringeOffset(m, x, y, nx, ny, fringeWidth)
	} else {
		sx, sy, _ = m.Project(x, y)
	}
	return sx * scale, sy * scale
}
