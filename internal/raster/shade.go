package raster

import (
	"math"

	"github.com/gogpu/strata/internal/color"
	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/strata/internal/xform"
)

// texture is a decoded premultiplied linear image.
type texture struct {
	width, height int
	texels        []color.Premul
}

func decodeTexture(width, height int, pixels []byte) *texture {
	t := &texture{width: width, height: height, texels: make([]color.Premul, width*height)}
	for i := range t.texels {
		p := pixels[i*4 : i*4+4]
		t.texels[i] = color.DecodeTexel(p[0], p[1], p[2], p[3])
	}
	return t
}

// sample filters t bilinearly at (u, v) with clamp-to-edge addressing.
func (t *texture) sample(u, v float32) color.Premul {
	if t == nil || t.width == 0 || t.height == 0 {
		return color.Transparent
	}
	x := float64(u)*float64(t.width) - 0.5
	y := float64(v)*float64(t.height) - 0.5
	if math.IsNaN(x) || math.IsNaN(y) {
		return color.Transparent
	}
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := float32(x-x0), float32(y-y0)
	ix, iy := int(x0), int(y0)

	c00 := t.at(ix, iy)
	c10 := t.at(ix+1, iy)
	c01 := t.at(ix, iy+1)
	c11 := t.at(ix+1, iy+1)
	top := c00.Scale(1 - fx).Add(c10.Scale(fx))
	bottom := c01.Scale(1 - fx).Add(c11.Scale(fx))
	return top.Scale(1 - fy).Add(bottom.Scale(fy))
}

func (t *texture) at(x, y int) color.Premul {
	x = max(0, min(x, t.width-1))
	y = max(0, min(y, t.height-1))
	return t.texels[y*t.width+x]
}

// vertexStage projects one vertex of an instance to physical pixels.
func vertexStage(m xform.Mat4, plan *frame.Plan, index int, fringe, scale float32) svert {
	src := &plan.Vertices[index]
	px, py := xform.ProjectVertex(m, src.X, src.Y, src.NX, src.NY, src.Coverage, fringe, scale)
	return svert{
		x:        float64(px),
		y:        float64(py),
		coverage: src.Coverage,
		u:        src.U,
		v:        src.V,
		paint:    src.Paint,
	}
}

// fragment computes the premultiplied output of a content draw.
func (j *job) fragment(paint, coverage, u, v float32) color.Premul {
	base := j.fill
	if paint >= 0.5 {
		base = j.stroke
	}
	var bg, fg color.Premul
	switch j.variant {
	case frame.SingleTexture:
		s := j.background.sample(u, v)
		if j.foregroundOnly {
			fg = s
		} else {
			bg = s
		}
	case frame.DualTexture:
		bg = j.background.sample(u, v)
		fg = j.foreground.sample(u, v)
	}
	return color.Layers(base, bg, fg).Scale(clampCoverage(coverage))
}

func clampCoverage(c float32) float32 {
	if !(c > 0) {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
