// Package tessellate converts shape outlines into triangle meshes.
//
// A Mesh has two parts: the fill (interior triangles and stroke bodies, all
// with coverage 1) and, when anti-aliasing by inflated geometry is requested,
// a fringe strip along every boundary. Fringe vertices come in pairs at
// the same boundary position: the inner one has coverage 1, the outer one
// coverage 0. Both carry the outward normal; the vertex stage pushes the
// outer vertex one logical pixel out in screen space (see internal/xform).
//
// Fills follow the even-odd rule: a contour nested inside an odd number of
// others cuts a hole, whatever its winding.
//
// Malformed input never fails hard. Tessellate always returns the best mesh it
// could build, possibly empty, together with an error wrapping ErrDegenerate
// that callers report as a diagnostic.
package tessellate

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerate reports malformed geometry: non-finite coordinates, fewer than
// three distinct points, zero area or a self-intersecting outline.
var ErrDegenerate = errors.New("tessellate: degenerate geometry")

// Paint selects the per-instance color a vertex takes.
const (
	PaintFill   float32 = 0
	PaintStroke float32 = 1
)

// VertexSize is the size of an encoded Vertex in bytes.
const VertexSize = 32

// Point is a 2D point in local shape coordinates.
type Point struct {
	X, Y float32
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	MinX, MinY, MaxX, MaxY float32
}

// Width returns MaxX - MinX.
func (r Rect) Width() float32 { return r.MaxX - r.MinX }

// Height returns MaxY - MinY.
func (r Rect) Height() float32 { return r.MaxY - r.MinY }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return !(r.MaxX > r.MinX) || !(r.MaxY > r.MinY) }

// Contour is a polyline. Filling always treats it as closed; Closed only
// matters for strokes.
type Contour struct {
	Points []Point
	Closed bool
}

// Vertex is the GPU vertex layout: local position, outward normal, coverage,
// texture coordinates and paint selector.
type Vertex struct {
	X, Y     float32
	NX, NY   float32
	Coverage float32
	U, V     float32
	Paint    float32
}

// Part is one indexed triangle list.
type Part struct {
	Vertices []Vertex
	Indices  []uint32
}

// Triangles returns the number of triangles.
func (p *Part) Triangles() int { return len(p.Indices) / 3 }

// Mesh is a tessellated shape.
type Mesh struct {
	Fill   Part
	Fringe Part
	Bounds Rect
}

// Empty reports whether the mesh has no triangles at all.
func (m *Mesh) Empty() bool {
	return len(m.Fill.Indices) == 0 && len(m.Fringe.Indices) == 0
}

// Input describes one shape to tessellate.
type Input struct {
	Contours    []Contour
	Fill        bool
	StrokeWidth float32
	AntiAlias   bool
	// UV maps the shape bounds onto this texture rectangle.
	// The zero value means the whole texture.
	UV Rect
}

// MiterLimit bounds the miter length of stroke joins, in stroke half-widths.
const MiterLimit = 4

// Tessellate builds the mesh for in.
func Tessellate(in Input) (Mesh, error) {
	var (
		mesh Mesh
		diag error
	)
	note := func(format string, args ...any) {
		if diag == nil {
			diag = fmt.Errorf("%w: "+format, append([]any{ErrDegenerate}, args...)...)
		}
	}

	contours := make([]Contour, 0, len(in.Contours))
	for i, c := range in.Contours {
		pts, dropped := sanitize(c.Points)
		if dropped {
			note("contour %d has non-finite coordinates", i)
		}
		if len(pts) == 0 {
			continue
		}
		contours = append(contours, Contour{Points: pts, Closed: c.Closed})
	}
	if len(contours) == 0 {
		note("no drawable points")
		return mesh, diag
	}
	mesh.Bounds = bounds(contours)

	stroked := in.StrokeWidth > 0 && !math.IsInf(float64(in.StrokeWidth), 0)
	if in.Fill {
		rings := make([]ring, 0, len(contours))
		for i, c := range contours {
			if len(c.Points) < 3 {
				note("contour %d has %d distinct points", i, len(c.Points))
				continue
			}
			area := signedArea(c.Points)
			if math.Abs(float64(area)) < 1e-9 {
				note("contour %d has zero area", i)
				continue
			}
			rings = append(rings, ring{pts: c.Points, area: area, index: i})
		}
		if len(rings) > 0 {
			for _, reg := range evenOddRegions(rings) {
				pts, holes := reg.outer.pts, []ring(nil)
				if len(reg.holes) > 0 {
					pts, holes = bridgeHoles(reg)
					if len(holes) < len(reg.holes) {
						note("contour %d has %d holes that cannot be bridged", reg.outer.index, len(reg.holes)-len(holes))
					}
				}
				base := uint32(len(mesh.Fill.Vertices)) //nolint:gosec // G115: vertex count fits uint32
				for _, p := range pts {
					mesh.Fill.Vertices = append(mesh.Fill.Vertices, Vertex{X: p.X, Y: p.Y, Coverage: 1, Paint: PaintFill})
				}
				var ok bool
				mesh.Fill.Indices, ok = earClip(pts, base, mesh.Fill.Indices)
				if !ok {
					note("contour %d self-intersects", reg.outer.index)
				}
				if in.AntiAlias && !stroked {
					// Hole rings run the other way, so their fringes point
					// into the hole.
					appendFringeRing(&mesh.Fringe, reg.outer.pts, PaintFill)
					for _, h := range holes {
						appendFringeRing(&mesh.Fringe, h.pts, PaintFill)
					}
				}
			}
		}
	}

	if stroked {
		for _, c := range contours {
			if len(c.Points) < 2 {
				continue
			}
			appendStroke(&mesh, c, in.StrokeWidth, in.AntiAlias)
		}
	}

	applyUV(&mesh, in.UV)
	return mesh, diag
}

// sanitize drops non-finite points and consecutive duplicates, including a
// trailing point equal to the first.
func sanitize(pts []Point) ([]Point, bool) {
	out := make([]Point, 0, len(pts))
	dropped := false
	for _, p := range pts {
		if !finite(p.X) || !finite(p.Y) {
			dropped = true
			continue
		}
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[len(out)-1] == out[0] {
		out = out[:len(out)-1]
	}
	return out, dropped
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func bounds(contours []Contour) Rect {
	r := Rect{
		MinX: float32(math.Inf(1)), MinY: float32(math.Inf(1)),
		MaxX: float32(math.Inf(-1)), MaxY: float32(math.Inf(-1)),
	}
	for _, c := range contours {
		for _, p := range c.Points {
			r.MinX = min(r.MinX, p.X)
			r.MinY = min(r.MinY, p.Y)
			r.MaxX = max(r.MaxX, p.X)
			r.MaxY = max(r.MaxY, p.Y)
		}
	}
	return r
}

// signedArea is positive for outlines listed clockwise on a y-down screen.
func signedArea(pts []Point) float32 {
	var a float64
	for i := range pts {
		p, q := pts[i], pts[(i+1)%len(pts)]
		a += float64(p.X)*float64(q.Y) - float64(q.X)*float64(p.Y)
	}
	return float32(a / 2)
}

func reversed(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}

func applyUV(m *Mesh, uv Rect) {
	if uv == (Rect{}) {
		uv = Rect{MaxX: 1, MaxY: 1}
	}
	b := m.Bounds
	w, h := b.Width(), b.Height()
	mapPart := func(p *Part) {
		for i := range p.Vertices {
			v := &p.Vertices[i]
			v.U, v.V = uv.MinX, uv.MinY
			if w > 0 {
				v.U += (v.X - b.MinX) / w * uv.Width()
			}
			if h > 0 {
				v.V += (v.Y - b.MinY) / h * uv.Height()
			}
		}
	}
	mapPart(&m.Fill)
	mapPart(&m.Fringe)
}
