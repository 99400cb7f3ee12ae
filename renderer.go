package strata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/strata/internal/backend"
	"github.com/gogpu/strata/internal/batch"
	"github.com/gogpu/strata/internal/cliptree"
	icolor "github.com/gogpu/strata/internal/color"
	"github.com/gogpu/strata/internal/effect"
	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/strata/internal/scene"
	"github.com/gogpu/strata/internal/tessellate"
	"github.com/gogpu/strata/internal/xform"
)

// Renderer draws queued shapes into a Target.
//
// Shapes, clips and their state are queued between frames; Render draws the
// whole queue and ClearDrawQueue starts the next one. Setter effects apply at
// the next Render. A Renderer is not safe for concurrent use; drive it from
// one render goroutine.
type Renderer struct {
	cfg  Config
	opts options

	width, height uint32
	scale         float64
	backend       frame.Backend
	closed        bool

	queue scene.Queue
	// fills holds each queued instance's shape fill color, for SetColor(nil).
	fills   []icolor.Premul
	builder batch.Builder
	plan    frame.Plan

	shapes   map[uint64]*cachedShape
	textures map[TextureID]textureInfo

	effects      map[EffectID]*effect.Effect
	groupEffects map[cliptree.ID]frame.EffectUse
	backdrops    map[scene.ID]frame.EffectUse

	stats   FrameStats
	loop    loopMetrics
	metrics *collectors
}

// New creates a renderer for target. The backend is chosen by
// Config.Backend (or WithBackend): "auto" picks the GPU when target has a
// Device and the software rasterizer otherwise.
func New(target Target, cfg Config, opts ...Option) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if target.Width == 0 || target.Height == 0 {
		return nil, fmt.Errorf("%w: target size %dx%d", ErrInvalidConfig, target.Width, target.Height)
	}
	o := cfg.options()
	for _, opt := range opts {
		opt(&o)
	}

	b, err := backend.Open(o.backend, backend.Target{
		Width:       target.Width,
		Height:      target.Height,
		Device:      target.Device,
		Surface:     target.Surface,
		PresentMode: cfg.PresentMode,
		Workers:     o.workers,
	})
	if err != nil {
		return nil, fmt.Errorf("strata: open backend: %w", err)
	}

	r := &Renderer{
		cfg:      cfg,
		opts:     o,
		width:    target.Width,
		height:   target.Height,
		scale:    target.scale(),
		backend:  b,
		shapes:   make(map[uint64]*cachedShape),
		textures: make(map[TextureID]textureInfo),
	}
	if o.registry != nil {
		r.metrics, err = newCollectors(o.registry, &r.loop)
		if err != nil {
			return nil, errors.Join(err, b.Close())
		}
	}
	Logger().Info("strata: renderer created",
		"backend", b.Name(), "width", r.width, "height", r.height,
		"scale", r.scale, "anti_aliasing", cfg.AntiAliasing.String())
	return r, nil
}

// Backend returns the name of the backend in use.
func (r *Renderer) Backend() string { return r.backend.Name() }

// Config returns the current configuration.
func (r *Renderer) Config() Config { return r.cfg }

// Size returns the target size in physical pixels.
func (r *Renderer) Size() (width, height uint32) { return r.width, r.height }

// ScaleFactor returns the logical to physical pixel ratio.
func (r *Renderer) ScaleFactor() float64 { return r.scale }

// fringeAA reports whether shapes carry an anti-aliasing fringe.
func (r *Renderer) fringeAA() bool { return !r.cfg.AntiAliasing.Multisampled() }

// AddShape queues an instance of shape under clip (NoClip for none) with
// texture as its background layer (NoTexture for none). Instances draw in
// the order they were added.
func (r *Renderer) AddShape(shape Shape, clip ClipID, texture TextureID) (InstanceID, error) {
	if r.closed {
		return NoInstance, ErrRendererClosed
	}
	g := &scene.Geometry{Input: shape.input(r.fringeAA())}
	return r.enqueue(g, shape, clip, texture)
}

func (r *Renderer) enqueue(g *scene.Geometry, shape Shape, clip ClipID, texture TextureID) (InstanceID, error) {
	fill := shape.Fill.premul()
	id, err := r.queue.Add(scene.Instance{
		Geometry:   g,
		Transform:  xform.Identity(),
		Color:      fill,
		Stroke:     shape.Stroke.Color.premul(),
		Background: frame.TextureID(texture),
		Clip:       cliptree.ID(clip),
	})
	if err != nil {
		return NoInstance, err
	}
	r.fills = append(r.fills, fill)
	return InstanceID(id), nil
}

// AddClip creates a clip node from shape's outline under parent (NoClip for
// a root). Content added under the node only draws inside the outline and
// inside every ancestor. Clip outlines are never stroked or anti-aliased.
func (r *Renderer) AddClip(shape Shape, parent ClipID) (ClipID, error) {
	if r.closed {
		return NoClip, ErrRendererClosed
	}
	in := shape.input(false)
	in.Fill = true
	in.StrokeWidth = 0
	id, err := r.queue.AddClip(cliptree.ID(parent), scene.Clip{
		Geometry:  &scene.Geometry{Input: in},
		Transform: xform.Identity(),
	})
	if err != nil {
		return NoClip, err
	}
	return ClipID(id), nil
}

func (r *Renderer) instance(id InstanceID) (*scene.Instance, error) {
	if r.closed {
		return nil, ErrRendererClosed
	}
	return r.queue.Instance(scene.ID(id))
}

// SetColor overrides an instance's fill color. Nil restores the shape's.
func (r *Renderer) SetColor(id InstanceID, c *Color) error {
	inst, err := r.instance(id)
	if err != nil {
		return err
	}
	if c == nil {
		inst.Color = r.fills[id]
	} else {
		inst.Color = c.premul()
	}
	return nil
}

// SetTransform sets an instance's local to logical pixel transform.
func (r *Renderer) SetTransform(id InstanceID, m Matrix4) error {
	inst, err := r.instance(id)
	if err != nil {
		return err
	}
	inst.Transform = xform.Mat4(m)
	return nil
}

// SetClipTransform sets a clip node's outline transform. It does not affect
// the node's content.
func (r *Renderer) SetClipTransform(id ClipID, m Matrix4) error {
	if r.closed {
		return ErrRendererClosed
	}
	c, err := r.queue.Clip(cliptree.ID(id))
	if err != nil {
		return err
	}
	c.Transform = xform.Mat4(m)
	return nil
}

// SetTexture binds texture to one of an instance's layers. NoTexture
// unbinds it. Unknown textures render transparent and are reported as
// ErrUnknownTextureReference diagnostics.
func (r *Renderer) SetTexture(id InstanceID, layer TextureLayer, texture TextureID) error {
	inst, err := r.instance(id)
	if err != nil {
		return err
	}
	switch layer {
	case Background:
		inst.Background = frame.TextureID(texture)
	case Foreground:
		inst.Foreground = frame.TextureID(texture)
	default:
		return fmt.Errorf("%w: layer %d", ErrInvalidTexture, layer)
	}
	return nil
}

// Remove drops an instance from the queue. Its ID is not reused.
func (r *Renderer) Remove(id InstanceID) error {
	if r.closed {
		return ErrRendererClosed
	}
	if err := r.queue.Remove(scene.ID(id)); err != nil {
		return err
	}
	delete(r.backdrops, scene.ID(id))
	return nil
}

// QueueLen returns the number of queued instances.
func (r *Renderer) QueueLen() int { return r.queue.Len() }

// ClearDrawQueue removes every instance and clip node along with their
// effect attachments. IDs restart from zero; GPU buffers, cached shapes,
// textures and loaded effects are kept.
func (r *Renderer) ClearDrawQueue() {
	r.queue.Reset()
	clear(r.fills)
	r.fills = r.fills[:0]
	r.clearEffectAttachments()
}

// Resize reconfigures the target. A zero width or height is accepted (a
// minimized window); frames are skipped until the next non-zero Resize.
func (r *Renderer) Resize(width, height uint32, scale float64) error {
	if r.closed {
		return ErrRendererClosed
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		return fmt.Errorf("%w: scale factor %v", ErrInvalidConfig, scale)
	}
	r.width, r.height, r.scale = width, height, scale
	if width == 0 || height == 0 {
		return nil
	}
	if err := r.backend.Resize(width, height); err != nil {
		return r.failed("resize", err)
	}
	return nil
}

// ResizeToWindow resizes to a window's client area, converting its logical
// size to physical pixels.
func (r *Renderer) ResizeToWindow(w gpucontext.WindowProvider) error {
	lw, lh := w.Size()
	scale := w.ScaleFactor()
	if !(scale > 0) {
		scale = 1
	}
	pw := uint32(math.Round(float64(max(lw, 0)) * scale)) //nolint:gosec // G115: window sizes fit uint32
	ph := uint32(math.Round(float64(max(lh, 0)) * scale)) //nolint:gosec // G115: window sizes fit uint32
	return r.Resize(pw, ph, scale)
}

// SetScaleFactor changes the logical to physical pixel ratio.
func (r *Renderer) SetScaleFactor(scale float64) error {
	return r.Resize(r.width, r.height, scale)
}

// FringeWidth returns the anti-aliasing fringe width in logical pixels.
func (r *Renderer) FringeWidth() float32 { return r.cfg.FringeWidth }

// SetFringeWidth changes the anti-aliasing fringe width in logical pixels.
func (r *Renderer) SetFringeWidth(width float32) error {
	cfg := r.cfg
	cfg.FringeWidth = width
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.cfg = cfg
	return nil
}

// SetClearColor changes the color the target is cleared to.
func (r *Renderer) SetClearColor(c Color) error {
	cfg := r.cfg
	cfg.ClearColor = c
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.cfg = cfg
	return nil
}

// SetAntiAliasing switches between fringe anti-aliasing and MSAA. Queued
// and cached shapes are tessellated again when the mode changes.
func (r *Renderer) SetAntiAliasing(a AntiAliasing) error {
	cfg := r.cfg
	cfg.AntiAliasing = a
	if err := cfg.Validate(); err != nil {
		return err
	}
	changed := a.Multisampled() != r.cfg.AntiAliasing.Multisampled()
	r.cfg = cfg
	if !changed {
		return nil
	}
	retessellate := func(g *scene.Geometry) {
		if g != nil {
			g.Input.AntiAlias = r.fringeAA()
			g.Mesh, g.Err = nil, nil
		}
	}
	instances := r.queue.Instances()
	for i := range instances {
		retessellate(instances[i].Geometry)
	}
	for _, s := range r.shapes {
		retessellate(s.geom)
	}
	return nil
}

// Render draws the queue and blocks until the frame is complete. The queue
// is kept; call ClearDrawQueue to start the next frame from scratch.
//
// Errors wrap ErrSurfaceLost (call Resize and retry), ErrSurfaceTransient
// (frame skipped, retry) or ErrSurfaceOutOfMemory (the renderer is closed).
// Degenerate shapes, clamped clips and unknown textures do not fail the frame;
// see LastFrameStats.
func (r *Renderer) Render(ctx context.Context) error {
	if r.closed {
		return ErrRendererClosed
	}
	if r.width == 0 || r.height == 0 {
		return nil
	}
	start := time.Now()
	stats := FrameStats{Backend: r.backend.Name()}

	if err := r.tessellate(ctx, &stats); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	tessellated := time.Now()

	rep := r.builder.Build(&r.queue, batch.Options{
		MaxClipDepth: r.cfg.MaxClipDepth,
		OIT:          r.cfg.OITEnabled,
		HasTexture:   r.backend.HasTexture,
		Groups:       r.groupEffects,
		Backdrops:    r.backdrops,
	}, &r.plan)
	r.plan.Width, r.plan.Height = r.width, r.height
	r.plan.Scale = float32(r.scale)
	r.plan.FringeWidth = r.cfg.FringeWidth
	r.plan.SampleCount = r.cfg.AntiAliasing.SampleCount()
	r.plan.ClearColor = r.cfg.ClearColor.linearClear()
	r.plan.OIT = r.cfg.OITEnabled
	r.report(rep, &stats)
	prepared := time.Now()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := r.backend.Execute(ctx, &r.plan); err != nil {
		return r.failed("render", err)
	}
	done := time.Now()

	stats.Timings = PhaseTimings{
		Tessellate: tessellated.Sub(start),
		Prepare:    prepared.Sub(tessellated),
		Execute:    done.Sub(prepared),
		Total:      done.Sub(start),
	}
	r.stats = stats
	r.loop.record(start, done)
	r.metrics.observe(&stats)
	return nil
}

// tessellate meshes every geometry added since the last frame.
func (r *Renderer) tessellate(ctx context.Context, stats *FrameStats) error {
	pending := r.queue.Pending()
	if len(pending) == 0 {
		return nil
	}
	inputs := make([]tessellate.Input, len(pending))
	for i, g := range pending {
		inputs[i] = g.Input
	}
	results, err := tessellate.All(ctx, inputs, r.opts.workers)
	if err != nil {
		return err
	}
	failed := make(map[*scene.Geometry]struct{})
	for i, g := range pending {
		g.Mesh, g.Err = &results[i].Mesh, results[i].Err
		if g.Err != nil {
			failed[g] = struct{}{}
		}
	}
	stats.Tessellated = len(pending)
	if len(failed) == 0 {
		return nil
	}

	instances := r.queue.Instances()
	for i := range instances {
		g := instances[i].Geometry
		if _, ok := failed[g]; ok {
			delete(failed, g)
			r.diagnose(stats, Diagnostic{Kind: ErrTessellationDegenerate, Instance: InstanceID(i), Clip: NoClip, Err: g.Err}) //nolint:gosec // G115: instance count fits uint32
		}
	}
	clips := r.queue.Clips()
	for i := range clips {
		g := clips[i].Geometry
		if _, ok := failed[g]; ok {
			delete(failed, g)
			r.diagnose(stats, Diagnostic{Kind: ErrTessellationDegenerate, Instance: NoInstance, Clip: ClipID(i), Err: g.Err}) //nolint:gosec // G115: clip count fits int32
		}
	}
	return nil
}

// report turns a batch report into frame stats and diagnostics.
func (r *Renderer) report(rep batch.Report, stats *FrameStats) {
	stats.Instances = rep.Instances
	stats.Triangles = rep.Triangles
	stats.Commands = rep.Commands
	stats.MaxClipRef = rep.MaxClipRef
	stats.Effects = rep.Effects
	stats.Switches = PipelineSwitches(rep.Switches)

	tree := r.queue.Tree()
	for _, id := range rep.Clamped {
		r.diagnose(stats, newDiagnostic(ErrClipDepthExceeded, NoInstance, ClipID(id),
			"clip %d at depth %d, max_clip_depth %d", id, tree.Depth(id), r.cfg.MaxClipDepth))
	}
	for _, m := range rep.Missing {
		r.diagnose(stats, newDiagnostic(ErrUnknownTextureReference, InstanceID(m.Instance), NoClip,
			"instance %d references texture %d", m.Instance, m.Texture))
	}
	if rep.OrderClamped > 0 {
		Logger().Warn("strata: draw order exceeds depth bias range, clamped",
			"instances", rep.OrderClamped, "max", xform.MaxDrawOrder)
	}
}

func (r *Renderer) diagnose(stats *FrameStats, d Diagnostic) {
	stats.Diagnostics = append(stats.Diagnostics, d)
	Logger().Warn("strata: frame diagnostic", "instance", int64(d.Instance), "clip", int(d.Clip), "err", d.Err)
}

// failed applies the recovery policy for a backend error.
func (r *Renderer) failed(op string, err error) error {
	r.metrics.fail(err)
	switch {
	case errors.Is(err, ErrSurfaceOutOfMemory):
		Logger().Error("strata: out of memory, closing renderer", "err", err)
		if cerr := r.Close(); cerr != nil {
			Logger().Warn("strata: close after out of memory", "err", cerr)
		}
	case errors.Is(err, ErrSurfaceLost):
		Logger().Warn("strata: surface lost", "err", err)
	case errors.Is(err, ErrSurfaceTransient):
		Logger().Warn("strata: frame skipped", "err", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// LastFrameStats returns the statistics of the last successful frame.
func (r *Renderer) LastFrameStats() FrameStats {
	s := r.stats
	s.Diagnostics = append([]Diagnostic(nil), s.Diagnostics...)
	return s
}

// AverageFPS returns presented frames divided by the time from the first
// frame's start to the last frame's end, since creation or ResetMetrics.
func (r *Renderer) AverageFPS() float64 { return r.loop.averageFPS() }

// AverageRenderDuration returns the mean Render duration of presented frames.
func (r *Renderer) AverageRenderDuration() time.Duration { return r.loop.averageDuration() }

// RollingFPS returns the number of frames presented in the last second.
func (r *Renderer) RollingFPS() float64 { return r.loop.rollingFPS() }

// RollingRenderDuration returns the mean Render duration over the last
// second.
func (r *Renderer) RollingRenderDuration() time.Duration { return r.loop.rollingDuration() }

// PresentedFrames returns the number of successful frames counted by the
// render-loop metrics.
func (r *Renderer) PresentedFrames() uint64 { return r.loop.count() }

// ResetMetrics starts a new render-loop measurement window.
func (r *Renderer) ResetMetrics() { r.loop.reset() }

// Close releases the backend and unregisters metrics. Later calls return
// ErrRendererClosed. Close is idempotent.
func (r *Renderer) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.metrics.unregister()
	clear(r.textures)
	clear(r.shapes)
	clear(r.effects)
	r.clearEffectAttachments()
	return r.backend.Close()
}
