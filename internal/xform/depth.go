package xform

import "math"

// DepthStep is the depth distance between consecutive draw orders. 2^-20 is
// exactly representable next to 1.0 in float32 and stays above the 24-bit
// depth buffer resolution.
const DepthStep = 1.0 / (1 << 20)

// MaxDrawOrder is the last draw order with a distinct depth value.
const MaxDrawOrder = 1<<20 - 2

// DrawOrderDepth maps a draw order to its biased depth in (0, 1). Later orders
// are nearer. Orders past MaxDrawOrder share the last value and clamped
// reports true; depths never wrap.
func DrawOrderDepth(order uint32) (depth float32, clamped bool) {
	if order > MaxDrawOrder {
		order = MaxDrawOrder
		clamped = true
	}
	return 1 - float32(order+1)*DepthStep, clamped
}

// layerSpan is the number of halvings between the largest and smallest OIT
// weight, log2(3e3 / 1e-2) rounded down.
const layerSpan = 18

// LayerDepth maps a translucent instance to the depth its OIT weight is
// computed from. behind counts the translucent instances drawn after it in a
// frame of total. The frontmost instance gets 0 and each one behind it halves
// the cubic depth term, which composites layers of alpha 0.5 exactly. Frames
// with more layers than the weight range can separate share the range evenly.
func LayerDepth(behind, total int) float32 {
	if behind <= 0 || total <= 1 {
		return 0
	}
	steps := float64(behind)
	if total-1 > layerSpan {
		steps *= layerSpan / float64(total-1)
	}
	return float32(1 - math.Exp2(-steps/3))
}
