package color

import "math"

// sRGB byte → linear lookup. 256 entries cover every 8-bit input exactly.
var srgb8ToLinear [256]float32

// linear → sRGB byte lookup at 12-bit input precision.
var linearToSRGB8 [4096]uint8

func init() {
	for i := range srgb8ToLinear {
		srgb8ToLinear[i] = SRGBToLinear(float32(i) / 255)
	}
	for i := range linearToSRGB8 {
		s := LinearToSRGB(float32(i) / 4095)
		linearToSRGB8[i] = quantize(s)
	}
}

// SRGBToLinear applies the sRGB EOTF to a single component in [0,1].
func SRGBToLinear(s float32) float32 {
	if s <= 0.04045 {
		return s / 12.92
	}
	return float32(math.Pow(float64((s+0.055)/1.055), 2.4))
}

// LinearToSRGB applies the inverse sRGB transfer function to a component in [0,1].
func LinearToSRGB(l float32) float32 {
	if l <= 0.0031308 {
		return l * 12.92
	}
	return 1.055*float32(math.Pow(float64(l), 1.0/2.4)) - 0.055
}

// SRGB8ToLinear decodes an 8-bit sRGB component via the lookup table.
func SRGB8ToLinear(s uint8) float32 {
	return srgb8ToLinear[s]
}

// LinearToSRGB8 encodes a linear component to an 8-bit sRGB value.
// Input outside [0,1] is clamped.
func LinearToSRGB8(l float32) uint8 {
	if !(l > 0) {
		return 0
	}
	if l >= 1 {
		return 255
	}
	return linearToSRGB8[int(l*4095+0.5)]
}

// quantize maps [0,1] to [0,255] with rounding and clamping.
func quantize(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	//nolint:gosec // G115: v is clamped to [0,1]
	return uint8(v*255 + 0.5)
}
