// Package xform implements the per-instance vertex math: 4×4 homogeneous
// transforms, the clamped perspective divide, the screen-space anti-aliasing
// fringe offset and the draw-order depth bias.
//
// The WGSL vertex shader in internal/gpu mirrors these functions; the software
// rasterizer calls them directly.
package xform

import "math"

// Mat4 is a 4×4 matrix in row-major order, applied to column vectors:
//
//	| m[0]  m[1]  m[2]  m[3]  |   | x |
//	| m[4]  m[5]  m[6]  m[7]  | * | y |
//	| m[8]  m[9]  m[10] m[11] |   | z |
//	| m[12] m[13] m[14] m[15] |   | w |
type Mat4 [16]float32

// MinW is the smallest |w| allowed in the perspective divide.
const MinW = 1e-6

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate returns a translation matrix.
func Translate(x, y, z float32) Mat4 {
	return Mat4{
		1, 0, 0, x,
		0, 1, 0, y,
		0, 0, 1, z,
		0, 0, 0, 1,
	}
}

// Scale returns a scaling matrix.
func Scale(x, y, z float32) Mat4 {
	return Mat4{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	}
}

// RotateZ rotates in the XY plane (angle in radians).
func RotateZ(angle float64) Mat4 {
	c, s := float32(math.Cos(angle)), float32(math.Sin(angle))
	return Mat4{
		c, -s, 0, 0,
		s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// RotateX rotates around the X axis (angle in radians).
func RotateX(angle float64) Mat4 {
	c, s := float32(math.Cos(angle)), float32(math.Sin(angle))
	return Mat4{
		1, 0, 0, 0,
		0, c, -s, 0,
		0, s, c, 0,
		0, 0, 0, 1,
	}
}

// RotateY rotates around the Y axis (angle in radians).
func RotateY(angle float64) Mat4 {
	c, s := float32(math.Cos(angle)), float32(math.Sin(angle))
	return Mat4{
		c, 0, s, 0,
		0, 1, 0, 0,
		-s, 0, c, 0,
		0, 0, 0, 1,
	}
}

// Perspective returns a CSS-style perspective projection with the viewer at
// the given distance along +z, centered on (originX, originY).
func Perspective(distance, originX, originY float32) Mat4 {
	p := Identity()
	if distance > 0 {
		p[14] = -1 / distance
	}
	return Compose(Compose(Translate(-originX, -originY, 0), p), Translate(originX, originY, 0))
}

// Mul returns the matrix product m * o.
func (m Mat4) Mul(o Mat4) Mat4 {
	var r Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[row*4+k] * o[k*4+col]
			}
			r[row*4+col] = sum
		}
	}
	return r
}

// Compose returns the transform that applies a first and then b.
func Compose(a, b Mat4) Mat4 {
	return b.Mul(a)
}

// Then is Compose(m, next).
func (m Mat4) Then(next Mat4) Mat4 {
	return Compose(m, next)
}

// Apply multiplies the homogeneous point (x, y, z, w).
func (m Mat4) Apply(x, y, z, w float32) [4]float32 {
	return [4]float32{
		m[0]*x + m[1]*y + m[2]*z + m[3]*w,
		m[4]*x + m[5]*y + m[6]*z + m[7]*w,
		m[8]*x + m[9]*y + m[10]*z + m[11]*w,
		m[12]*x + m[13]*y + m[14]*z + m[15]*w,
	}
}

// Columns returns the matrix in column-major order, the layout of a WGSL mat4x4.
func (m Mat4) Columns() [16]float32 {
	var c [16]float32
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			c[col*4+row] = m[row*4+col]
		}
	}
	return c
}

// FromColumns is the inverse of Columns.
func FromColumns(c [16]float32) Mat4 {
	var m Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			m[row*4+col] = c[col*4+row]
		}
	}
	return m
}

// IsIdentity reports whether m is exactly the identity.
func (m Mat4) IsIdentity() bool {
	return m == Identity()
}

// ClampW keeps w away from zero while preserving its sign.
func ClampW(w float32) float32 {
	if w >= 0 && w < MinW {
		return MinW
	}
	if w < 0 && w > -MinW {
		return -MinW
	}
	return w
}

// Project transforms the local point (x, y) and performs the perspective
// divide, returning logical pixel coordinates and the projected z.
func (m Mat4) Project(x, y float32) (sx, sy, sz float32) {
	p := m.Apply(x, y, 0, 1)
	w := ClampW(p[3])
	return p[0] / w, p[1] / w, p[2] / w
}
