package color

// Over composites src over dst (Porter-Duff source-over, premultiplied).
func Over(src, dst Premul) Premul {
	k := 1 - src.A
	return Premul{
		R: src.R + dst.R*k,
		G: src.G + dst.G*k,
		B: src.B + dst.B*k,
		A: src.A + dst.A*k,
	}
}

// Layers composites an instance fill color under its background layer and
// the result under its foreground layer:
//
//	fg + (bg + fill*(1-bg.a)) * (1-fg.a)
//
// All inputs are premultiplied. Absent layers are Transparent, which reduces
// the result to fill.
func Layers(fill, background, foreground Premul) Premul {
	return Over(foreground, Over(background, fill))
}

// Weighted blended OIT constants. The depth term of the weight is clamped to
// [minWeight, maxWeight] so that 16-bit float accumulation neither underflows
// nor overflows.
const (
	minWeight = 1e-2
	maxWeight = 3e3
	minAccum  = 1e-5
)

// Weight returns the OIT accumulation weight for a fragment of the given
// alpha at the given depth in [0,1], where smaller depth is nearer:
//
//	alpha * clamp(3e3 * (1-depth)^3, 1e-2, 3e3)
func Weight(alpha, depth float32) float32 {
	near := float64(1 - clamp01(depth))
	w := min(max(maxWeight*near*near*near, minWeight), maxWeight)
	return alpha * float32(w)
}

// Accum is the per-pixel state of the OIT accumulation pass.
// Sum holds Σ premul*w in RGB and Σ alpha*w in A; Reveal is Π(1-alpha).
type Accum struct {
	Sum    Premul
	Reveal float32
}

// NewAccum returns the cleared accumulation state.
func NewAccum() Accum {
	return Accum{Reveal: 1}
}

// Add accumulates one translucent fragment.
func (a *Accum) Add(src Premul, depth float32) {
	w := Weight(src.A, depth)
	a.Sum = a.Sum.Add(src.Scale(w))
	a.Reveal *= 1 - src.A
}

// Resolve normalizes the accumulated color and derives coverage from revealage.
// The result is premultiplied and meant to be composited Over the opaque frame.
func (a Accum) Resolve() Premul {
	alpha := 1 - a.Reveal
	if alpha <= 0 {
		return Transparent
	}
	d := a.Sum.A
	if d < minAccum {
		d = minAccum
	}
	inv := alpha / d
	return Premul{R: a.Sum.R * inv, G: a.Sum.G * inv, B: a.Sum.B * inv, A: alpha}
}
