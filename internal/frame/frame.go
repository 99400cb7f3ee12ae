// Package frame defines the contract between the renderer and its backends:
// the per-frame Plan (geometry, instance data and command streams) and the
// Backend interface that executes it.
package frame

import (
	"context"
	"errors"

	"github.com/gogpu/strata/internal/tessellate"
)

// Backend errors. Backends wrap their native errors with these so the
// renderer can apply the recovery policy without knowing the backend.
var (
	// ErrSurfaceLost means the target must be reconfigured before the next
	// frame.
	ErrSurfaceLost = errors.New("strata: surface lost")

	// ErrSurfaceOutOfMemory is fatal for the renderer.
	ErrSurfaceOutOfMemory = errors.New("strata: surface out of memory")

	// ErrSurfaceTransient means the frame was skipped (timeout, outdated
	// surface); the queue is intact and the frame can be retried.
	ErrSurfaceTransient = errors.New("strata: transient surface error")

	// ErrReadbackUnsupported is returned by backends that cannot return
	// the rendered pixels.
	ErrReadbackUnsupported = errors.New("strata: readback not supported by backend")

	// ErrEffectsUnsupported is returned by backends that cannot run effect
	// shaders, for LoadEffect and for plans carrying effect commands.
	ErrEffectsUnsupported = errors.New("strata: effects not supported by backend")
)

// TextureID names a backend-resident texture. Zero is no texture.
type TextureID uint64

// NoTexture is the absent texture layer.
const NoTexture TextureID = 0

// Variant is the closed set of pipeline variants.
type Variant uint8

const (
	Solid Variant = iota
	SingleTexture
	DualTexture
	OITAccumulate
	OITComposite
)

func (v Variant) String() string {
	switch v {
	case Solid:
		return "solid"
	case SingleTexture:
		return "single-texture"
	case DualTexture:
		return "dual-texture"
	case OITAccumulate:
		return "oit-accumulate"
	case OITComposite:
		return "oit-composite"
	default:
		return "unknown"
	}
}

// Op is the kind of a Command.
type Op uint8

const (
	// OpPushClip writes a clip mask: stencil Equal Ref, IncrementClamp.
	OpPushClip Op = iota
	// OpPopClip reverts a clip mask: stencil Equal Ref, DecrementClamp.
	OpPopClip
	// OpDraw draws content where stencil equals Ref.
	OpDraw
	// OpBeginGroup redirects the following commands into a cleared
	// offscreen layer with its own stencil, until the matching OpEndGroup.
	OpBeginGroup
	// OpEndGroup runs Effect over the layer and composites the result into
	// the enclosing layer where stencil equals Ref.
	OpEndGroup
	// OpBackdrop runs Effect over what the current layer holds so far and
	// draws the result through Draws where stencil equals Ref, sampled at
	// each fragment's own position.
	OpBackdrop
)

func (o Op) String() string {
	switch o {
	case OpPushClip:
		return "push-clip"
	case OpPopClip:
		return "pop-clip"
	case OpDraw:
		return "draw"
	case OpBeginGroup:
		return "begin-group"
	case OpEndGroup:
		return "end-group"
	case OpBackdrop:
		return "backdrop"
	default:
		return "unknown"
	}
}

// Effects reports whether o runs an effect.
func (o Op) Effects() bool { return o == OpEndGroup || o == OpBackdrop }

// Instance flags.
const (
	// FlagForeground marks the single texture of a SingleTexture draw as
	// the foreground layer.
	FlagForeground uint32 = 1 << iota
)

// InstanceSize is the encoded size of an Instance in bytes.
const InstanceSize = 112

// Instance is the per-instance GPU record. Colors are premultiplied linear.
type Instance struct {
	// Transform is the local-to-logical matrix in column-major order.
	Transform [16]float32
	Color     [4]float32
	Stroke    [4]float32
	// Depth is the draw-order bias, or the OIT layer depth for instances in
	// the accumulate stream.
	Depth     float32
	Flags     uint32
	_         [2]uint32
}

// Draw is one indexed draw of a single instance.
type Draw struct {
	FirstIndex uint32
	IndexCount uint32
	BaseVertex int32
	Instance   uint32
}

// Command is a run of draws sharing one pipeline state.
type Command struct {
	Op         Op
	Ref        uint32
	Variant    Variant
	Background TextureID
	Foreground TextureID
	// Effect indexes Plan.Effects for group and backdrop commands.
	Effect int
	Draws  []Draw
}

// EffectID names a backend-resident effect.
type EffectID uint64

// EffectUse is one application of a loaded effect.
type EffectUse struct {
	Effect EffectID
	// Params is the raw uniform data bound at @group(1) @binding(0), empty
	// for effects without parameters.
	Params []byte
}

// Plan is everything a backend needs to render one frame.
type Plan struct {
	// Width and Height are the target size in physical pixels.
	Width, Height uint32
	// Scale converts logical to physical pixels.
	Scale float32
	// FringeWidth is the anti-aliasing fringe width in logical pixels.
	FringeWidth float32
	// SampleCount is 1 for inflated-geometry anti-aliasing, else the MSAA
	// sample count.
	SampleCount uint32
	// ClearColor is premultiplied linear.
	ClearColor [4]float32
	// OIT enables the accumulate and composite passes.
	OIT bool

	Vertices  []tessellate.Vertex
	Indices   []uint32
	Instances []Instance

	// Main is the stencil-masked content stream drawn into the target.
	Main []Command
	// Accumulate is the translucent stream drawn into the OIT targets, then
	// composited over Main's result. Empty unless OIT is set.
	Accumulate []Command
	// Effects lists the effect applications referenced by Main.
	Effects []EffectUse
}

// HasEffects reports whether Main runs any effect.
func (p *Plan) HasEffects() bool { return len(p.Effects) > 0 }

// Reset empties the plan, keeping its storage.
func (p *Plan) Reset() {
	p.Vertices = p.Vertices[:0]
	p.Indices = p.Indices[:0]
	p.Instances = p.Instances[:0]
	p.Main = p.Main[:0]
	p.Accumulate = p.Accumulate[:0]
	clear(p.Effects)
	p.Effects = p.Effects[:0]
}

// Backend executes frame plans.
type Backend interface {
	// Name identifies the backend ("wgpu", "software").
	Name() string

	// Resize reconfigures the target and size-dependent resources.
	Resize(width, height uint32) error

	// LoadTexture uploads premultiplied sRGB-encoded RGBA8 pixels under id,
	// replacing any previous texture with that id.
	LoadTexture(id TextureID, width, height int, pixels []byte) error
	UnloadTexture(id TextureID)
	HasTexture(id TextureID) bool

	// Execute renders plan and blocks until the frame is complete.
	Execute(ctx context.Context, plan *Plan) error

	Close() error
}

// EffectPass is one compiled-ready pass of an effect: a complete WGSL module
// with the vertex entry point vs_quad and the fragment entry point
// effect_main. The first pass reads the layer through t_input and s_input,
// each later pass the previous pass's output.
type EffectPass struct {
	Source string
	// Params is set when the pass binds the effect parameters at
	// @group(1) @binding(0).
	Params bool
}

// EffectLoader is implemented by backends that run effect shaders.
type EffectLoader interface {
	LoadEffect(id EffectID, passes []EffectPass) error
	UnloadEffect(id EffectID)
}

// Snapshotter is implemented by backends that can read back the last frame
// as premultiplied sRGB-encoded RGBA8 rows of width*4 bytes, the layout of
// image.RGBA.
type Snapshotter interface {
	Snapshot() (width, height int, pixels []byte, err error)
}
