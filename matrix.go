package strata

import "github.com/gogpu/strata/internal/xform"

// Matrix4 is a 4×4 homogeneous transform in row-major order, applied to
// column vectors. It maps a shape's local coordinates to logical pixels:
//
//	| m[0]  m[1]  m[2]  m[3]  |
//	| m[4]  m[5]  m[6]  m[7]  |
//	| m[8]  m[9]  m[10] m[11] |
//	| m[12] m[13] m[14] m[15] |
//
// The bottom row carries perspective; w is clamped away from zero before
// the divide.
type Matrix4 [16]float32

// Identity returns the identity transform.
func Identity() Matrix4 { return Matrix4(xform.Identity()) }

// Translate creates a translation.
func Translate(x, y float32) Matrix4 { return Matrix4(xform.Translate(x, y, 0)) }

// Scale creates a scaling transform.
func Scale(x, y float32) Matrix4 { return Matrix4(xform.Scale(x, y, 1)) }

// Rotate rotates in the screen plane (angle in radians).
func Rotate(angle float64) Matrix4 { return Matrix4(xform.RotateZ(angle)) }

// RotateX tilts around the horizontal axis (angle in radians).
func RotateX(angle float64) Matrix4 { return Matrix4(xform.RotateX(angle)) }

// RotateY tilts around the vertical axis (angle in radians).
func RotateY(angle float64) Matrix4 { return Matrix4(xform.RotateY(angle)) }

// Perspective creates a projection with the viewer at distance logical
// pixels in front of the screen, centered on (originX, originY). Combine it
// after a RotateX or RotateY to tilt content in 3D.
func Perspective(distance, originX, originY float32) Matrix4 {
	return Matrix4(xform.Perspective(distance, originX, originY))
}

// Affine creates a 2D affine transform:
//
//	x' = a*x + b*y + c
//	y' = d*x + e*y + f
func Affine(a, b, c, d, e, f float32) Matrix4 {
	return Matrix4{
		a, b, 0, c,
		d, e, 0, f,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Multiply returns the matrix product m * other, which applies other first.
func (m Matrix4) Multiply(other Matrix4) Matrix4 {
	return Matrix4(xform.Mat4(m).Mul(xform.Mat4(other)))
}

// Then returns the transform that applies m first and then next.
func (m Matrix4) Then(next Matrix4) Matrix4 {
	return next.Multiply(m)
}

// TransformPoint maps a local point to logical pixels, including the
// perspective divide.
func (m Matrix4) TransformPoint(p Point) Point {
	x, y, _ := xform.Mat4(m).Project(p.X, p.Y)
	return Point{X: x, Y: y}
}

// IsIdentity reports whether m is exactly the identity.
func (m Matrix4) IsIdentity() bool {
	return m == Identity()
}
