//go:build !nogpu

package gpu

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/wgpu/hal"
)

// effectFormat is the format effect passes render into.
const effectFormat = gputypes.TextureFormatRGBA16Float

// paramsAlign is the offset alignment of effect parameters in the shared
// uniform buffer.
const paramsAlign = 256

// loadedEffect holds one pipeline per pass.
type loadedEffect struct {
	shaders []hal.ShaderModule
	pipes   []hal.RenderPipeline
	params  []bool
}

func (e *loadedEffect) takesParams() bool { return slices.Contains(e.params, true) }

func (e *loadedEffect) destroy(device hal.Device) {
	for _, p := range e.pipes {
		device.DestroyRenderPipeline(p)
	}
	for _, m := range e.shaders {
		device.DestroyShaderModule(m)
	}
	e.pipes, e.shaders = nil, nil
}

// level is an offscreen layer. Level 0 holds the whole frame and borrows the
// frame's multisampled color and stencil attachments.
type level struct {
	color   renderTexture
	msaa    renderTexture
	stencil renderTexture
}

func (l *level) destroy(device hal.Device) {
	l.stencil.destroy(device)
	l.msaa.destroy(device)
	l.color.destroy(device)
}

// effectStore owns loaded effects and the layers and work textures they run
// on. Bind group keys name a texture: level i is i, work texture j is -(j+1).
type effectStore struct {
	// Borrowed from the texture store.
	sampler hal.Sampler
	empty   hal.TextureView

	inputLayout  hal.BindGroupLayout
	paramsLayout hal.BindGroupLayout
	inputPipe    hal.PipelineLayout
	paramsPipe   hal.PipelineLayout
	copyShader   hal.ShaderModule

	effects map[frame.EffectID]*loadedEffect

	width, height, samples uint32
	// compose draws a layer into its parent through the stencil; blit
	// presents level 0.
	compose   hal.RenderPipeline
	blit      hal.RenderPipeline
	levels    []level
	work      [2]renderTexture
	inputs    map[int]hal.BindGroup
	backdrops map[int]hal.BindGroup

	params      *gpuBuffer
	paramData   []byte
	paramGroups []hal.BindGroup
}

func newEffectStore() effectStore {
	return effectStore{
		effects:   make(map[frame.EffectID]*loadedEffect),
		inputs:    make(map[int]hal.BindGroup),
		backdrops: make(map[int]hal.BindGroup),
		params:    newGPUBuffer("strata_effect_params", gputypes.BufferUsageUniform),
	}
}

func (s *effectStore) init(device hal.Device, sampler hal.Sampler, empty hal.TextureView) error {
	s.sampler, s.empty = sampler, empty

	var err error
	s.inputLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "strata_effect_input_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create effect input layout: %w", err)
	}
	s.paramsLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "strata_effect_params_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create effect params layout: %w", err)
	}
	s.inputPipe, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "strata_effect_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{s.inputLayout},
	})
	if err != nil {
		return fmt.Errorf("create effect pipeline layout: %w", err)
	}
	s.paramsPipe, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "strata_effect_params_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{s.inputLayout, s.paramsLayout},
	})
	if err != nil {
		return fmt.Errorf("create effect params pipeline layout: %w", err)
	}
	s.copyShader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "copy_shader",
		Source: hal.ShaderSource{WGSL: copyShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile copy shader: %w", err)
	}
	return nil
}

// quadPipeline creates a fullscreen pipeline drawing vs_quad.
func quadPipeline(device hal.Device, label string, layout hal.PipelineLayout, module hal.ShaderModule, entry string,
	target gputypes.ColorTargetState, ds *hal.DepthStencilState, samples uint32,
) (hal.RenderPipeline, error) {
	pipe, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_quad",
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: entry,
			Targets:    []gputypes.ColorTargetState{target},
		},
		DepthStencil: ds,
		Multisample:  gputypes.MultisampleState{Count: samples, Mask: 0xFFFFFFFF},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return pipe, nil
}

// load compiles passes under id, replacing any effect loaded before.
func (s *effectStore) load(device hal.Device, id frame.EffectID, passes []frame.EffectPass) error {
	if len(passes) == 0 {
		return fmt.Errorf("%w: effect %d has no passes", ErrInvalidEffect, id)
	}
	e := &loadedEffect{}
	for i, p := range passes {
		label := fmt.Sprintf("strata_effect_%d_%d", id, i)
		module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  label,
			Source: hal.ShaderSource{WGSL: p.Source},
		})
		if err != nil {
			e.destroy(device)
			return fmt.Errorf("compile %s: %w", label, err)
		}
		e.shaders = append(e.shaders, module)

		layout := s.inputPipe
		if p.Params {
			layout = s.paramsPipe
		}
		target := gputypes.ColorTargetState{Format: effectFormat, WriteMask: gputypes.ColorWriteMaskAll}
		pipe, err := quadPipeline(device, label, layout, module, "effect_main", target, nil, 1)
		if err != nil {
			e.destroy(device)
			return err
		}
		e.pipes = append(e.pipes, pipe)
		e.params = append(e.params, p.Params)
	}
	s.unload(device, id)
	s.effects[id] = e
	slogger().Debug("gpu effect loaded", "id", id, "passes", len(passes), "params", e.takesParams())
	return nil
}

func (s *effectStore) unload(device hal.Device, id frame.EffectID) {
	if e, ok := s.effects[id]; ok {
		e.destroy(device)
		delete(s.effects, id)
	}
}

// ensure sizes the layers and work textures for a frame nesting depth
// groups deep. Everything is rebuilt when the size or p changed.
func (s *effectStore) ensure(device hal.Device, p *pipelines, width, height uint32, depth int) error {
	if s.width != width || s.height != height || s.samples != p.samples {
		s.flush(device)
	}
	s.width, s.height, s.samples = width, height, p.samples

	var err error
	if s.compose == nil {
		premul := gputypes.BlendStatePremultiplied()
		target := gputypes.ColorTargetState{Format: p.format, Blend: &premul, WriteMask: gputypes.ColorWriteMaskAll}
		s.compose, err = quadPipeline(device, "strata_layer_compose", s.inputPipe, s.copyShader, "fs_copy",
			target, stencilState(hal.StencilOperationKeep), p.samples)
		if err != nil {
			return err
		}
	}
	if s.blit == nil {
		target := gputypes.ColorTargetState{Format: p.format, WriteMask: gputypes.ColorWriteMaskAll}
		if s.blit, err = quadPipeline(device, "strata_layer_blit", s.inputPipe, s.copyShader, "fs_copy", target, nil, 1); err != nil {
			return err
		}
	}

	sampled := gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding
	for j := range s.work {
		if s.work[j].tex != nil {
			continue
		}
		if s.work[j], err = createRenderTexture(device, fmt.Sprintf("strata_effect_work_%d", j), width, height, 1, effectFormat, sampled); err != nil {
			return err
		}
	}
	for d := len(s.levels); d <= depth; d++ {
		var l level
		label := fmt.Sprintf("strata_layer_%d", d)
		if l.color, err = createRenderTexture(device, label, width, height, 1, p.format, sampled); err != nil {
			return err
		}
		if d > 0 {
			attach := gputypes.TextureUsageRenderAttachment
			if p.samples > 1 {
				if l.msaa, err = createRenderTexture(device, label+"_msaa", width, height, p.samples, p.format, attach); err != nil {
					l.destroy(device)
					return err
				}
			}
			if l.stencil, err = createRenderTexture(device, label+"_stencil", width, height, p.samples, depthStencilFormat, attach); err != nil {
				l.destroy(device)
				return err
			}
		}
		s.levels = append(s.levels, l)
		slogger().Debug("gpu layer created", "level", d, "width", width, "height", height, "samples", p.samples)
	}
	return nil
}

// attachments returns the render attachments of level d. msaa is nil with
// one sample.
func (s *effectStore) attachments(t *targets, d int) (color, msaa, stencil hal.TextureView) {
	l := &s.levels[d]
	if d == 0 {
		return l.color.view, t.color.view, t.stencil.view
	}
	return l.color.view, l.msaa.view, l.stencil.view
}

// view returns the texture named by key.
func (s *effectStore) view(key int) hal.TextureView {
	if key < 0 {
		return s.work[-key-1].view
	}
	return s.levels[key].color.view
}

// input returns the effect input bind group sampling key.
func (s *effectStore) input(device hal.Device, key int) (hal.BindGroup, error) {
	if g, ok := s.inputs[key]; ok {
		return g, nil
	}
	g, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "strata_effect_input_group",
		Layout: s.inputLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: s.view(key).NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: s.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create effect input bind group: %w", err)
	}
	s.inputs[key] = g
	return g, nil
}

// backdrop returns a layer bind group with key as the background.
func (s *effectStore) backdrop(device hal.Device, layout hal.BindGroupLayout, key int) (hal.BindGroup, error) {
	if g, ok := s.backdrops[key]; ok {
		return g, nil
	}
	g, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "strata_backdrop_group",
		Layout: layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.SamplerBinding{Sampler: s.sampler.NativeHandle()}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: s.view(key).NativeHandle()}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{TextureView: s.empty.NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create backdrop bind group: %w", err)
	}
	s.backdrops[key] = g
	return g, nil
}

// bindParams uploads the parameters of uses into one uniform buffer and
// creates a bind group per use that has any. Groups of the previous frame
// are released first.
func (s *effectStore) bindParams(device hal.Device, queue hal.Queue, uses []frame.EffectUse) error {
	s.releaseFrame(device)
	s.paramGroups = resize(s.paramGroups, len(uses))
	clear(s.paramGroups)

	s.paramData = s.paramData[:0]
	offsets := make([]uint64, len(uses))
	for i, u := range uses {
		if len(u.Params) == 0 {
			continue
		}
		offsets[i] = uint64(len(s.paramData))
		s.paramData = append(s.paramData, u.Params...)
		s.paramData = append(s.paramData, make([]byte, roundUp(len(s.paramData), paramsAlign)-len(s.paramData))...)
	}
	if len(s.paramData) == 0 {
		return nil
	}
	if err := s.params.upload(device, queue, s.paramData); err != nil {
		return err
	}
	for i, u := range uses {
		if len(u.Params) == 0 {
			continue
		}
		g, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "strata_effect_params_group",
			Layout: s.paramsLayout,
			Entries: []gputypes.BindGroupEntry{{
				Binding: 0,
				Resource: gputypes.BufferBinding{
					Buffer: s.params.buf.NativeHandle(),
					Offset: offsets[i],
					Size:   uint64(roundUp(len(u.Params), 16)), //nolint:gosec // G115: non-negative
				},
			}},
		})
		if err != nil {
			return fmt.Errorf("create effect params bind group: %w", err)
		}
		s.paramGroups[i] = g
	}
	return nil
}

func roundUp(n, align int) int { return (n + align - 1) / align * align }

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}

// releaseFrame destroys the per-frame parameter bind groups.
func (s *effectStore) releaseFrame(device hal.Device) {
	for i, g := range s.paramGroups {
		if g != nil {
			device.DestroyBindGroup(g)
			s.paramGroups[i] = nil
		}
	}
}

// flush destroys everything that depends on the frame size, the sample
// count or the content pipelines' layouts.
func (s *effectStore) flush(device hal.Device) {
	for k, g := range s.backdrops {
		device.DestroyBindGroup(g)
		delete(s.backdrops, k)
	}
	for k, g := range s.inputs {
		device.DestroyBindGroup(g)
		delete(s.inputs, k)
	}
	for i := range s.levels {
		s.levels[i].destroy(device)
	}
	s.levels = s.levels[:0]
	for j := range s.work {
		s.work[j].destroy(device)
	}
	for _, pipe := range []*hal.RenderPipeline{&s.blit, &s.compose} {
		if *pipe != nil {
			device.DestroyRenderPipeline(*pipe)
			*pipe = nil
		}
	}
	s.width, s.height, s.samples = 0, 0, 0
}

func (s *effectStore) destroy(device hal.Device) {
	s.releaseFrame(device)
	s.flush(device)
	for id := range s.effects {
		s.unload(device, id)
	}
	s.params.destroy(device)
	if s.copyShader != nil {
		device.DestroyShaderModule(s.copyShader)
		s.copyShader = nil
	}
	for _, pipe := range []*hal.PipelineLayout{&s.paramsPipe, &s.inputPipe} {
		if *pipe != nil {
			device.DestroyPipelineLayout(*pipe)
			*pipe = nil
		}
	}
	for _, layout := range []*hal.BindGroupLayout{&s.paramsLayout, &s.inputLayout} {
		if *layout != nil {
			device.DestroyBindGroupLayout(*layout)
			*layout = nil
		}
	}
}

// LoadEffect implements frame.EffectLoader.
func (b *Backend) LoadEffect(id frame.EffectID, passes []frame.EffectPass) error {
	if b.closed {
		return ErrClosed
	}
	return b.effects.load(b.device, id, passes)
}

// UnloadEffect implements frame.EffectLoader.
func (b *Backend) UnloadEffect(id frame.EffectID) {
	if b.closed {
		return
	}
	b.effects.unload(b.device, id)
}

// layerDepth returns the deepest group nesting in cmds.
func layerDepth(cmds []frame.Command) int {
	depth, deepest := 0, 0
	for i := range cmds {
		switch cmds[i].Op {
		case frame.OpBeginGroup:
			depth++
			deepest = max(deepest, depth)
		case frame.OpEndGroup:
			depth--
		}
	}
	return deepest
}

// layerEncoder records a main stream with groups and backdrops. Render
// passes are split at every effect and resumed with their contents loaded.
type layerEncoder struct {
	b     *Backend
	enc   hal.CommandEncoder
	plan  *frame.Plan
	depth int
	// fresh marks levels not yet cleared since their group began.
	fresh []bool
	pass  hal.RenderPassEncoder
	st    drawState
}

// encodeLayers draws the main stream into level 0 through any group layers,
// composites the OIT results over it and copies it to target.
func (b *Backend) encodeLayers(encoder hal.CommandEncoder, plan *frame.Plan, target hal.TextureView) error {
	depth := layerDepth(plan.Main)
	if err := b.effects.ensure(b.device, b.pipes, plan.Width, plan.Height, depth); err != nil {
		return err
	}
	if err := b.effects.bindParams(b.device, b.queue, plan.Effects); err != nil {
		return err
	}

	l := &layerEncoder{b: b, enc: encoder, plan: plan, fresh: make([]bool, depth+1)}
	l.fresh[0] = true
	if err := l.run(); err != nil {
		l.close()
		return err
	}

	if plan.OIT && len(plan.Accumulate) > 0 {
		if err := b.accumulatePass(encoder, plan); err != nil {
			return err
		}
		b.compositePass(encoder, b.effects.levels[0].color.view)
	}

	g, err := b.effects.input(b.device, 0)
	if err != nil {
		return err
	}
	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "strata_layer_blit_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	pass.SetPipeline(b.effects.blit)
	pass.SetBindGroup(0, g, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	return nil
}

func (l *layerEncoder) run() error {
	for i := range l.plan.Main {
		cmd := &l.plan.Main[i]
		switch cmd.Op {
		case frame.OpBeginGroup:
			l.close()
			l.depth++
			l.fresh[l.depth] = true
		case frame.OpEndGroup:
			l.flush()
			out, _, err := l.apply(cmd.Effect, l.depth)
			if err != nil {
				return err
			}
			l.depth--
			if err := l.compose(out, cmd.Ref); err != nil {
				return err
			}
		case frame.OpBackdrop:
			l.flush()
			out, ok, err := l.apply(cmd.Effect, l.depth)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := l.backdrop(cmd, out); err != nil {
				return err
			}
		default:
			l.open()
			if err := l.b.command(l.pass, &l.st, cmd, false); err != nil {
				return err
			}
		}
	}
	l.flush()
	return nil
}

// open begins a render pass on the current level, clearing it if it is
// fresh and loading it otherwise.
func (l *layerEncoder) open() {
	if l.pass != nil {
		return
	}
	color, msaa, stencil := l.b.effects.attachments(&l.b.targets, l.depth)
	load := gputypes.LoadOpLoad
	var clearValue gputypes.Color
	if l.fresh[l.depth] {
		load = gputypes.LoadOpClear
		if l.depth == 0 {
			clearValue = clearColor(l.plan)
		}
		l.fresh[l.depth] = false
	}
	a := hal.RenderPassColorAttachment{View: color, LoadOp: load, StoreOp: gputypes.StoreOpStore, ClearValue: clearValue}
	if msaa != nil {
		a.View, a.ResolveTarget = msaa, color
	}
	l.pass = l.enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:            "strata_layer_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{a},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:            stencil,
			DepthLoadOp:     load,
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: 1,
			StencilLoadOp:   load,
			StencilStoreOp:  gputypes.StoreOpStore,
		},
	})
	l.st = drawState{}
}

func (l *layerEncoder) close() {
	if l.pass != nil {
		l.pass.End()
		l.pass = nil
	}
}

// flush ends the current pass, clearing the level first if nothing was
// drawn into it.
func (l *layerEncoder) flush() {
	l.open()
	l.close()
}

// apply runs effect use idx over level d and returns the key of the result.
// It reports false, with d as the result, when the effect is not loaded.
func (l *layerEncoder) apply(idx, d int) (int, bool, error) {
	s := &l.b.effects
	use := l.plan.Effects[idx]
	e := s.effects[use.Effect]
	if e == nil || (e.takesParams() && s.paramGroups[idx] == nil) {
		slogger().Debug("gpu effect skipped", "id", use.Effect, "loaded", e != nil)
		return d, false, nil
	}
	in := d
	for j, pipe := range e.pipes {
		g, err := s.input(l.b.device, in)
		if err != nil {
			return 0, false, err
		}
		out := j % 2
		pass := l.enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "strata_effect_pass",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:    s.work[out].view,
				LoadOp:  gputypes.LoadOpClear,
				StoreOp: gputypes.StoreOpStore,
			}},
		})
		pass.SetPipeline(pipe)
		pass.SetBindGroup(0, g, nil)
		if e.params[j] {
			pass.SetBindGroup(1, s.paramGroups[idx], nil)
		}
		pass.Draw(3, 1, 0, 0)
		pass.End()
		in = -(out + 1)
	}
	return in, true, nil
}

// compose draws the texture named by key into the current level where the
// stencil equals ref.
func (l *layerEncoder) compose(key int, ref uint32) error {
	g, err := l.b.effects.input(l.b.device, key)
	if err != nil {
		return err
	}
	l.open()
	l.pass.SetPipeline(l.b.effects.compose)
	l.pass.SetBindGroup(0, g, nil)
	l.pass.SetStencilReference(ref)
	l.pass.Draw(3, 1, 0, 0)
	l.st = drawState{}
	return nil
}

// backdrop draws cmd's shapes filled with the texture named by key.
func (l *layerEncoder) backdrop(cmd *frame.Command, key int) error {
	g, err := l.b.effects.backdrop(l.b.device, l.b.pipes.layerLayout, key)
	if err != nil {
		return err
	}
	l.open()
	if !l.st.framed {
		l.b.bindFrame(l.pass)
		l.st.framed = true
	}
	l.pass.SetPipeline(l.b.pipes.backdrop)
	l.pass.SetBindGroup(1, g, nil)
	l.pass.SetStencilReference(cmd.Ref)
	for _, d := range cmd.Draws {
		l.pass.DrawIndexed(d.IndexCount, 1, d.FirstIndex, d.BaseVertex, d.Instance)
	}
	l.st.current, l.st.hasGroup = l.b.pipes.backdrop, false
	return nil
}
