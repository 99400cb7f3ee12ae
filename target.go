package strata

import (
	"github.com/gogpu/strata/internal/cliptree"
	"github.com/gogpu/strata/internal/frame"
)

// InstanceID identifies a queued shape instance until ClearDrawQueue.
type InstanceID uint32

// NoInstance marks diagnostics that concern no particular instance.
const NoInstance InstanceID = ^InstanceID(0)

// ClipID identifies a clip node until ClearDrawQueue.
type ClipID int32

// NoClip is the unclipped root.
const NoClip = ClipID(cliptree.None)

// TextureID names a texture loaded with LoadTexture. Textures outlive
// frames and draw queues.
type TextureID uint64

// NoTexture is the absent texture.
const NoTexture = TextureID(frame.NoTexture)

// TextureLayer selects which of an instance's two texture layers to set.
// Layers composite as foreground over background over the instance color.
type TextureLayer uint8

const (
	Background TextureLayer = iota
	Foreground
)

func (l TextureLayer) String() string {
	switch l {
	case Background:
		return "background"
	case Foreground:
		return "foreground"
	default:
		return "unknown"
	}
}

// Target describes what a Renderer draws into.
type Target struct {
	// Width and Height are the target size in physical pixels.
	Width, Height uint32
	// ScaleFactor converts logical to physical pixels. Zero means 1.
	ScaleFactor float64
	// Device provides the GPU device and queue, typically a
	// gpucontext.DeviceProvider that also exposes HalDevice() and
	// HalQueue(). Nil selects the software backend, which renders into an
	// offscreen image.
	Device any
	// Surface is an optional hal.Surface presented after each frame. Nil
	// renders offscreen.
	Surface any
}

func (t Target) scale() float64 {
	if t.ScaleFactor > 0 {
		return t.ScaleFactor
	}
	return 1
}
