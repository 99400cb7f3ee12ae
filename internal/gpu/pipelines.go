//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Intermediate formats.
const (
	depthStencilFormat = gputypes.TextureFormatDepth24PlusStencil8
	accumFormat        = gputypes.TextureFormatRGBA16Float
	revealFormat       = gputypes.TextureFormatR16Float
)

// pipelines holds the shader modules, layouts and render pipelines for one
// target format and sample count.
type pipelines struct {
	format  gputypes.TextureFormat
	samples uint32

	strataShader    hal.ShaderModule
	compositeShader hal.ShaderModule

	uniformLayout   hal.BindGroupLayout
	layerLayout     hal.BindGroupLayout
	compositeLayout hal.BindGroupLayout
	contentPipe     hal.PipelineLayout
	compositePipe   hal.PipelineLayout

	// Main pass.
	push     hal.RenderPipeline
	pop      hal.RenderPipeline
	solid    hal.RenderPipeline
	textured hal.RenderPipeline
	// backdrop draws a shape filled with an effect result.
	backdrop hal.RenderPipeline

	// Accumulation pass.
	pushAccum  hal.RenderPipeline
	popAccum   hal.RenderPipeline
	accumulate hal.RenderPipeline

	composite hal.RenderPipeline
}

// stencilState tests stencil Equal to the reference and applies pass on
// success. Depth is never tested or written.
func stencilState(pass hal.StencilOperation) *hal.DepthStencilState {
	face := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionEqual,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      pass,
	}
	return &hal.DepthStencilState{
		Format:            depthStencilFormat,
		DepthWriteEnabled: false,
		DepthCompare:      gputypes.CompareFunctionAlways,
		StencilFront:      face,
		StencilBack:       face,
		StencilReadMask:   0xFF,
		StencilWriteMask:  0xFF,
	}
}

// createPipelines compiles both shaders and creates every pipeline variant.
// On error the partially created set is destroyed.
func createPipelines(device hal.Device, format gputypes.TextureFormat, samples uint32) (*pipelines, error) { //nolint:funlen // GPU pipeline descriptors are inherently verbose
	p := &pipelines{format: format, samples: samples}
	fail := func(err error) (*pipelines, error) {
		p.destroy(device)
		return nil, err
	}

	var err error
	p.strataShader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "strata_shader",
		Source: hal.ShaderSource{WGSL: strataShaderSource},
	})
	if err != nil {
		return fail(fmt.Errorf("compile strata shader: %w", err))
	}
	p.compositeShader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "composite_shader",
		Source: hal.ShaderSource{WGSL: compositeShaderSource},
	})
	if err != nil {
		return fail(fmt.Errorf("compile composite shader: %w", err))
	}

	// group(0): frame uniforms.
	p.uniformLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "strata_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fail(fmt.Errorf("create uniform bind group layout: %w", err))
	}

	// group(1): sampler, background and foreground layers.
	layerTexture := &gputypes.TextureBindingLayout{
		SampleType:    gputypes.TextureSampleTypeFloat,
		ViewDimension: gputypes.TextureViewDimension2D,
	}
	p.layerLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "strata_layer_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
			{Binding: 1, Visibility: gputypes.ShaderStageFragment, Texture: layerTexture},
			{Binding: 2, Visibility: gputypes.ShaderStageFragment, Texture: layerTexture},
		},
	})
	if err != nil {
		return fail(fmt.Errorf("create layer bind group layout: %w", err))
	}

	resolved := &gputypes.TextureBindingLayout{
		SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
		ViewDimension: gputypes.TextureViewDimension2D,
	}
	p.compositeLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "strata_composite_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageFragment, Texture: resolved},
			{Binding: 1, Visibility: gputypes.ShaderStageFragment, Texture: resolved},
		},
	})
	if err != nil {
		return fail(fmt.Errorf("create composite bind group layout: %w", err))
	}

	p.contentPipe, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "strata_content_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.uniformLayout, p.layerLayout},
	})
	if err != nil {
		return fail(fmt.Errorf("create content pipeline layout: %w", err))
	}
	p.compositePipe, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "strata_composite_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.compositeLayout},
	})
	if err != nil {
		return fail(fmt.Errorf("create composite pipeline layout: %w", err))
	}

	premul := gputypes.BlendStatePremultiplied()
	additive := gputypes.BlendState{
		Color: gputypes.BlendComponent{SrcFactor: gputypes.BlendFactorOne, DstFactor: gputypes.BlendFactorOne, Operation: gputypes.BlendOperationAdd},
		Alpha: gputypes.BlendComponent{SrcFactor: gputypes.BlendFactorOne, DstFactor: gputypes.BlendFactorOne, Operation: gputypes.BlendOperationAdd},
	}
	// dst *= 1 - src
	reveal := gputypes.BlendState{
		Color: gputypes.BlendComponent{SrcFactor: gputypes.BlendFactorZero, DstFactor: gputypes.BlendFactorOneMinusSrc, Operation: gputypes.BlendOperationAdd},
		Alpha: gputypes.BlendComponent{SrcFactor: gputypes.BlendFactorZero, DstFactor: gputypes.BlendFactorOneMinusSrc, Operation: gputypes.BlendOperationAdd},
	}

	mainTargets := func(blend *gputypes.BlendState, mask gputypes.ColorWriteMask) []gputypes.ColorTargetState {
		return []gputypes.ColorTargetState{{Format: format, Blend: blend, WriteMask: mask}}
	}
	accumTargets := func(mask gputypes.ColorWriteMask) []gputypes.ColorTargetState {
		return []gputypes.ColorTargetState{
			{Format: accumFormat, Blend: &additive, WriteMask: mask},
			{Format: revealFormat, Blend: &reveal, WriteMask: mask},
		}
	}

	content := func(label, entry string, targets []gputypes.ColorTargetState, ds *hal.DepthStencilState) (hal.RenderPipeline, error) {
		pipe, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
			Label:  label,
			Layout: p.contentPipe,
			Vertex: hal.VertexState{
				Module:     p.strataShader,
				EntryPoint: "vs_main",
				Buffers:    vertexLayouts(),
			},
			Fragment: &hal.FragmentState{
				Module:     p.strataShader,
				EntryPoint: entry,
				Targets:    targets,
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
		slogger().Debug("gpu pipeline created", "label", label, "samples", samples)
		return pipe, nil
	}

	// Mask pipelines only touch the stencil buffer.
	if p.push, err = content("strata_push_clip", "fs_mask", mainTargets(nil, gputypes.ColorWriteMaskNone), stencilState(hal.StencilOperationIncrementClamp)); err != nil {
		return fail(err)
	}
	if p.pop, err = content("strata_pop_clip", "fs_mask", mainTargets(nil, gputypes.ColorWriteMaskNone), stencilState(hal.StencilOperationDecrementClamp)); err != nil {
		return fail(err)
	}
	if p.solid, err = content("strata_solid", "fs_solid", mainTargets(&premul, gputypes.ColorWriteMaskAll), stencilState(hal.StencilOperationKeep)); err != nil {
		return fail(err)
	}
	if p.textured, err = content("strata_textured", "fs_textured", mainTargets(&premul, gputypes.ColorWriteMaskAll), stencilState(hal.StencilOperationKeep)); err != nil {
		return fail(err)
	}
	if p.backdrop, err = content("strata_backdrop", "fs_backdrop", mainTargets(&premul, gputypes.ColorWriteMaskAll), stencilState(hal.StencilOperationKeep)); err != nil {
		return fail(err)
	}
	if p.pushAccum, err = content("strata_push_clip_accum", "fs_mask_accum", accumTargets(gputypes.ColorWriteMaskNone), stencilState(hal.StencilOperationIncrementClamp)); err != nil {
		return fail(err)
	}
	if p.popAccum, err = content("strata_pop_clip_accum", "fs_mask_accum", accumTargets(gputypes.ColorWriteMaskNone), stencilState(hal.StencilOperationDecrementClamp)); err != nil {
		return fail(err)
	}
	if p.accumulate, err = content("strata_accumulate", "fs_accumulate", accumTargets(gputypes.ColorWriteMaskAll), stencilState(hal.StencilOperationKeep)); err != nil {
		return fail(err)
	}

	p.composite, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "strata_composite",
		Layout: p.compositePipe,
		Vertex: hal.VertexState{
			Module:     p.compositeShader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     p.compositeShader,
			EntryPoint: "fs_composite",
			Targets:    mainTargets(&premul, gputypes.ColorWriteMaskAll),
		},
		Multisample: gputypes.MultisampleState{Count: samples, Mask: 0xFFFFFFFF},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
	})
	if err != nil {
		return fail(fmt.Errorf("create composite pipeline: %w", err))
	}
	return p, nil
}

// masks returns the clip push and pop pipelines of a pass.
func (p *pipelines) masks(accum bool) (push, pop hal.RenderPipeline) {
	if accum {
		return p.pushAccum, p.popAccum
	}
	return p.push, p.pop
}

// destroy releases pipelines in reverse creation order.
func (p *pipelines) destroy(device hal.Device) {
	for _, pipe := range []*hal.RenderPipeline{
		&p.composite, &p.accumulate, &p.popAccum, &p.pushAccum,
		&p.backdrop, &p.textured, &p.solid, &p.pop, &p.push,
	} {
		if *pipe != nil {
			device.DestroyRenderPipeline(*pipe)
			*pipe = nil
		}
	}
	if p.compositePipe != nil {
		device.DestroyPipelineLayout(p.compositePipe)
		p.compositePipe = nil
	}
	if p.contentPipe != nil {
		device.DestroyPipelineLayout(p.contentPipe)
		p.contentPipe = nil
	}
	for _, layout := range []*hal.BindGroupLayout{&p.compositeLayout, &p.layerLayout, &p.uniformLayout} {
		if *layout != nil {
			device.DestroyBindGroupLayout(*layout)
			*layout = nil
		}
	}
	if p.compositeShader != nil {
		device.DestroyShaderModule(p.compositeShader)
		p.compositeShader = nil
	}
	if p.strataShader != nil {
		device.DestroyShaderModule(p.strataShader)
		p.strataShader = nil
	}
}
