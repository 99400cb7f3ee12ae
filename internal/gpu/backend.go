//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/strata/internal/buffers"
	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/wgpu/hal"
)

// Name is the registry name of the GPU backend.
const Name = "wgpu"

// DefaultFormat is the target format used when Options.Format is zero.
const DefaultFormat = gputypes.TextureFormatBGRA8UnormSrgb

// SupportedSampleCount reports whether the pipelines can be built with n
// samples. WebGPU guarantees 1 and 4 for every renderable format.
func SupportedSampleCount(n uint32) bool {
	return n == 1 || n == 4
}

// Options configures a Backend.
type Options struct {
	// Surface is configured on Resize and presented after each frame.
	// Nil renders into an offscreen texture.
	Surface hal.Surface
	// Format is the target format. Linear formats are replaced by their
	// sRGB variant.
	Format gputypes.TextureFormat
	// PresentMode is used when configuring Surface; zero selects Fifo.
	PresentMode gputypes.PresentMode
}

// Backend renders frame plans on a hal device. It implements
// frame.EffectLoader. It is not safe for concurrent use.
type Backend struct {
	device hal.Device
	queue  hal.Queue
	opts   Options

	width, height uint32
	configured    bool

	pipes    *pipelines
	targets  targets
	textures textureStore
	effects  effectStore

	vertices  *gpuBuffer
	indices   *gpuBuffer
	instances *gpuBuffer
	uniforms  *gpuBuffer

	uniformGroup hal.BindGroup
	// uniformBuf is the buffer uniformGroup was created for.
	uniformBuf hal.Buffer

	closed bool
}

// New returns a backend rendering width x height physical pixels on device.
func New(device hal.Device, queue hal.Queue, width, height uint32, opts Options) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, ErrNoDevice
	}
	opts.Format = srgbFormat(opts.Format)
	if opts.PresentMode == 0 {
		opts.PresentMode = gputypes.PresentModeFifo
	}
	b := &Backend{
		device:    device,
		queue:     queue,
		opts:      opts,
		textures:  newTextureStore(),
		effects:   newEffectStore(),
		vertices:  newGPUBuffer("strata_vertices", gputypes.BufferUsageVertex),
		indices:   newGPUBuffer("strata_indices", gputypes.BufferUsageIndex),
		instances: newGPUBuffer("strata_instances", gputypes.BufferUsageVertex),
		uniforms:  newGPUBuffer("strata_uniforms", gputypes.BufferUsageUniform),
	}
	if err := b.textures.init(device, queue); err != nil {
		return nil, errors.Join(err, b.Close())
	}
	if err := b.effects.init(device, b.textures.sampler, b.textures.empty.view); err != nil {
		return nil, errors.Join(err, b.Close())
	}
	if err := b.Resize(width, height); err != nil {
		return nil, errors.Join(err, b.Close())
	}
	slogger().Debug("gpu backend created", "width", width, "height", height,
		"format", opts.Format, "surface", opts.Surface != nil)
	return b, nil
}

// HalDevices extracts the hal device and queue from a provider that exposes
// HalDevice() any and HalQueue() any, as gogpu's device provider does.
func HalDevices(provider any) (hal.Device, hal.Queue, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, nil, fmt.Errorf("%w: provider does not expose HAL types", ErrNoDevice)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", ErrNoDevice)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", ErrNoDevice)
	}
	return device, queue, nil
}

// NewFromProvider is New with the device and queue of a provider. When the
// provider is a gpucontext.DeviceProvider and opts.Format is zero, its
// surface format is used.
func NewFromProvider(provider any, width, height uint32, opts Options) (*Backend, error) {
	device, queue, err := HalDevices(provider)
	if err != nil {
		return nil, err
	}
	if dp, ok := provider.(gpucontext.DeviceProvider); ok && opts.Format == gputypes.TextureFormatUndefined {
		opts.Format = dp.SurfaceFormat()
	}
	return New(device, queue, width, height, opts)
}

func srgbFormat(f gputypes.TextureFormat) gputypes.TextureFormat {
	switch f {
	case gputypes.TextureFormatUndefined, gputypes.TextureFormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8UnormSrgb
	case gputypes.TextureFormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8UnormSrgb
	default:
		return f
	}
}

// Name implements frame.Backend.
func (b *Backend) Name() string { return Name }

// Format returns the target format.
func (b *Backend) Format() gputypes.TextureFormat { return b.opts.Format }

// Resize implements frame.Backend. The surface, if any, is reconfigured
// immediately; attachments are recreated on the next frame.
func (b *Backend) Resize(width, height uint32) error {
	if b.closed {
		return ErrClosed
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("gpu: resize %dx%d: %w", width, height, hal.ErrZeroArea)
	}
	b.width, b.height = width, height
	if b.opts.Surface == nil {
		return nil
	}
	err := b.opts.Surface.Configure(b.device, &hal.SurfaceConfiguration{
		Width:       width,
		Height:      height,
		Format:      b.opts.Format,
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: b.opts.PresentMode,
		AlphaMode:   gputypes.CompositeAlphaModePremultiplied,
	})
	if err != nil {
		return mapError("configure surface", err)
	}
	b.configured = true
	return nil
}

// LoadTexture implements frame.Backend.
func (b *Backend) LoadTexture(id frame.TextureID, width, height int, pixels []byte) error {
	if b.closed {
		return ErrClosed
	}
	return b.textures.load(b.device, b.queue, id, width, height, pixels)
}

// UnloadTexture implements frame.Backend.
func (b *Backend) UnloadTexture(id frame.TextureID) {
	if b.closed {
		return
	}
	b.textures.unload(b.device, id)
}

// HasTexture implements frame.Backend.
func (b *Backend) HasTexture(id frame.TextureID) bool { return b.textures.has(id) }

// Execute implements frame.Backend. It blocks until the device is idle.
func (b *Backend) Execute(ctx context.Context, plan *frame.Plan) error {
	if b.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	samples := max(1, plan.SampleCount)
	if !SupportedSampleCount(samples) {
		return fmt.Errorf("%w: %d", ErrSampleCount, samples)
	}
	if plan.Width != b.width || plan.Height != b.height {
		if err := b.Resize(plan.Width, plan.Height); err != nil {
			return err
		}
	}
	if err := b.ensurePipelines(samples); err != nil {
		return err
	}
	if err := b.targets.ensure(b.device, b.pipes, plan.Width, plan.Height, samples, plan.OIT, b.opts.Surface == nil); err != nil {
		return err
	}
	if err := b.upload(plan); err != nil {
		return err
	}

	ft, err := b.acquire()
	if err != nil {
		return err
	}
	cmd, err := b.encode(plan, ft.view)
	if err != nil {
		_ = b.release(ft, false)
		return err
	}
	if err := ctx.Err(); err != nil {
		b.device.FreeCommandBuffer(cmd)
		_ = b.release(ft, false)
		return err
	}

	if _, err := b.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		b.device.FreeCommandBuffer(cmd)
		_ = b.release(ft, false)
		return mapError("submit", err)
	}
	err = b.device.WaitIdle()
	b.device.FreeCommandBuffer(cmd)
	if err != nil {
		_ = b.release(ft, false)
		return mapError("wait idle", err)
	}
	return b.release(ft, true)
}

func (b *Backend) ensurePipelines(samples uint32) error {
	if b.pipes != nil && b.pipes.samples == samples {
		return nil
	}
	if b.pipes != nil {
		// Everything bound against the old layouts goes with them.
		b.textures.flushGroups(b.device)
		b.effects.flush(b.device)
		b.targets.destroy(b.device)
		b.destroyUniformGroup()
		b.pipes.destroy(b.device)
		b.pipes = nil
	}
	p, err := createPipelines(b.device, b.opts.Format, samples)
	if err != nil {
		return mapError("create pipelines", err)
	}
	b.pipes = p
	return nil
}

// upload writes the frame's geometry, instances and uniforms.
func (b *Backend) upload(plan *frame.Plan) error {
	uniforms := [4]float32{float32(plan.Width), float32(plan.Height), plan.Scale, plan.FringeWidth}
	for _, u := range []struct {
		buf  *gpuBuffer
		data []byte
	}{
		{b.vertices, buffers.Bytes(plan.Vertices)},
		{b.indices, buffers.Bytes(plan.Indices)},
		{b.instances, buffers.Bytes(plan.Instances)},
		{b.uniforms, buffers.Bytes(uniforms[:])},
	} {
		if err := u.buf.upload(b.device, b.queue, u.data); err != nil {
			return err
		}
	}

	if b.uniformGroup != nil && b.uniformBuf == b.uniforms.buf {
		return nil
	}
	b.destroyUniformGroup()
	g, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "strata_uniform_group",
		Layout: b.pipes.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: b.uniforms.buf.NativeHandle(), Size: uniformSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create uniform bind group: %w", err)
	}
	b.uniformGroup, b.uniformBuf = g, b.uniforms.buf
	return nil
}

func (b *Backend) destroyUniformGroup() {
	if b.uniformGroup != nil {
		b.device.DestroyBindGroup(b.uniformGroup)
		b.uniformGroup, b.uniformBuf = nil, nil
	}
}

// frameTarget is the view a frame renders into.
type frameTarget struct {
	view    hal.TextureView
	surface hal.SurfaceTexture
}

func (b *Backend) acquire() (frameTarget, error) {
	if b.opts.Surface == nil {
		return frameTarget{view: b.targets.target.view}, nil
	}
	acquired, err := b.opts.Surface.AcquireTexture(nil)
	if err != nil {
		return frameTarget{}, mapError("acquire surface texture", err)
	}
	if acquired.Suboptimal {
		slogger().Debug("gpu surface suboptimal", "width", b.width, "height", b.height)
	}
	view, err := b.device.CreateTextureView(acquired.Texture, &hal.TextureViewDescriptor{
		Label:         "strata_surface_view",
		Format:        b.opts.Format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		b.opts.Surface.DiscardTexture(acquired.Texture)
		return frameTarget{}, mapError("create surface view", err)
	}
	return frameTarget{view: view, surface: acquired.Texture}, nil
}

// release presents or discards an acquired surface texture.
func (b *Backend) release(ft frameTarget, present bool) error {
	if ft.surface == nil {
		return nil
	}
	b.device.DestroyTextureView(ft.view)
	if !present {
		b.opts.Surface.DiscardTexture(ft.surface)
		return nil
	}
	return mapError("present", b.queue.Present(b.opts.Surface, ft.surface, nil))
}

// Close implements frame.Backend. It waits for the device to go idle and
// releases every resource; the device itself belongs to the caller.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	err := mapError("wait idle", b.device.WaitIdle())

	b.destroyUniformGroup()
	b.effects.destroy(b.device)
	b.textures.destroy(b.device)
	b.targets.destroy(b.device)
	if b.pipes != nil {
		b.pipes.destroy(b.device)
		b.pipes = nil
	}
	b.uniforms.destroy(b.device)
	b.instances.destroy(b.device)
	b.indices.destroy(b.device)
	b.vertices.destroy(b.device)
	if b.configured {
		b.opts.Surface.Unconfigure(b.device)
		b.configured = false
	}
	return err
}
