package strata

import (
	"math"
	"testing"
)

func pointNear(a, b Point, eps float32) bool {
	return float32(math.Abs(float64(a.X-b.X))) <= eps && float32(math.Abs(float64(a.Y-b.Y))) <= eps
}

func TestMatrixTransformPoint(t *testing.T) {
	tests := []struct {
		name string
		m    Matrix4
		in   Point
		want Point
	}{
		{"identity", Identity(), Point{3, 4}, Point{3, 4}},
		{"translate", Translate(10, -5), Point{1, 1}, Point{11, -4}},
		{"scale", Scale(2, 3), Point{1, 1}, Point{2, 3}},
		{"rotate 90", Rotate(math.Pi / 2), Point{1, 0}, Point{0, 1}},
		{"affine", Affine(1, 0, 5, 0, 1, 7), Point{0, 0}, Point{5, 7}},
		{"scale then translate", Scale(2, 2).Then(Translate(10, 0)), Point{1, 1}, Point{12, 2}},
		{"translate then scale", Translate(10, 0).Then(Scale(2, 2)), Point{1, 1}, Point{22, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.TransformPoint(tt.in); !pointNear(got, tt.want, 1e-5) {
				t.Errorf("TransformPoint(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMatrixMultiplyOrder(t *testing.T) {
	a, b := Scale(2, 2), Translate(10, 0)
	if a.Then(b) != b.Multiply(a) {
		t.Error("Then is not the reversed product")
	}
}

func TestMatrixIsIdentity(t *testing.T) {
	if !Identity().IsIdentity() {
		t.Error("Identity is not identity")
	}
	if Translate(1, 0).IsIdentity() {
		t.Error("translation reported as identity")
	}
	if !Scale(1, 1).IsIdentity() {
		t.Error("unit scale is identity")
	}
}

func TestPerspectiveKeepsOrigin(t *testing.T) {
	m := RotateX(math.Pi / 4).Then(Perspective(500, 0, 0))
	if got := m.TransformPoint(Point{}); !pointNear(got, Point{}, 1e-5) {
		t.Errorf("origin moved to %v", got)
	}
}
