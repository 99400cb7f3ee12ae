// Package color implements the linear-light color math shared by the software
// and GPU backends: sRGB transfer functions, premultiplied alpha, layered
// texture compositing and weighted blended order-independent transparency.
//
// Colors cross the package boundary in display space (sRGB, straight alpha)
// and are kept premultiplied in linear light everywhere else.
package color

// Straight is a non-premultiplied color with float32 components in [0,1].
// RGB are in the space indicated by context; alpha is always linear.
type Straight struct {
	R, G, B, A float32
}

// Premul is a premultiplied linear-light color.
type Premul struct {
	R, G, B, A float32
}

// Transparent is the zero premultiplied color.
var Transparent = Premul{}

// DecodeSRGB8 converts an 8-bit sRGB straight-alpha color to premultiplied
// linear light.
func DecodeSRGB8(r, g, b, a uint8) Premul {
	alpha := float32(a) / 255
	return Premul{
		R: SRGB8ToLinear(r) * alpha,
		G: SRGB8ToLinear(g) * alpha,
		B: SRGB8ToLinear(b) * alpha,
		A: alpha,
	}
}

// DecodeSRGB converts a straight sRGB color to premultiplied linear light.
func DecodeSRGB(c Straight) Premul {
	return Straight{
		R: SRGBToLinear(c.R),
		G: SRGBToLinear(c.G),
		B: SRGBToLinear(c.B),
		A: c.A,
	}.Premultiply()
}

// EncodeSRGB converts a premultiplied linear color back to straight sRGB.
func (p Premul) EncodeSRGB() Straight {
	s := p.Unpremultiply()
	return Straight{
		R: LinearToSRGB(clamp01(s.R)),
		G: LinearToSRGB(clamp01(s.G)),
		B: LinearToSRGB(clamp01(s.B)),
		A: clamp01(s.A),
	}
}

// EncodeSRGB8Premul returns the color as 8-bit sRGB with premultiplied alpha,
// the layout of image.RGBA pixels.
func (p Premul) EncodeSRGB8Premul() [4]uint8 {
	s := p.Unpremultiply()
	a := clamp01(s.A)
	return [4]uint8{
		quantize(LinearToSRGB(clamp01(s.R)) * a),
		quantize(LinearToSRGB(clamp01(s.G)) * a),
		quantize(LinearToSRGB(clamp01(s.B)) * a),
		quantize(a),
	}
}

// Premultiply multiplies RGB by alpha.
func (s Straight) Premultiply() Premul {
	return Premul{R: s.R * s.A, G: s.G * s.A, B: s.B * s.A, A: s.A}
}

// Unpremultiply divides RGB by alpha. Zero alpha yields transparent black.
func (p Premul) Unpremultiply() Straight {
	if p.A <= 0 {
		return Straight{}
	}
	inv := 1 / p.A
	return Straight{R: p.R * inv, G: p.G * inv, B: p.B * inv, A: p.A}
}

// Scale multiplies every component by k.
func (p Premul) Scale(k float32) Premul {
	return Premul{R: p.R * k, G: p.G * k, B: p.B * k, A: p.A * k}
}

// Add returns the component-wise sum.
func (p Premul) Add(q Premul) Premul {
	return Premul{R: p.R + q.R, G: p.G + q.G, B: p.B + q.B, A: p.A + q.A}
}

// Array returns the components as RGBA.
func (p Premul) Array() [4]float32 {
	return [4]float32{p.R, p.G, p.B, p.A}
}

// FromArray builds a Premul from RGBA components.
func FromArray(v [4]float32) Premul {
	return Premul{R: v[0], G: v[1], B: v[2], A: v[3]}
}

func clamp01(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// EncodeTexel encodes each premultiplied linear channel with the sRGB
// transfer function. Sampling such a texel through an sRGB texture format
// yields the premultiplied linear color again.
func (p Premul) EncodeTexel() [4]uint8 {
	return [4]uint8{
		LinearToSRGB8(p.R),
		LinearToSRGB8(p.G),
		LinearToSRGB8(p.B),
		quantize(clamp01(p.A)),
	}
}

// DecodeTexel is the inverse of EncodeTexel.
func DecodeTexel(r, g, b, a uint8) Premul {
	return Premul{
		R: SRGB8ToLinear(r),
		G: SRGB8ToLinear(g),
		B: SRGB8ToLinear(b),
		A: float32(a) / 255,
	}
}
