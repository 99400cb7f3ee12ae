//go:build !nogpu

package gpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/wgpu/hal"
)

// encode records all passes of a frame into one command buffer.
func (b *Backend) encode(plan *frame.Plan, target hal.TextureView) (hal.CommandBuffer, error) {
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "strata_frame"})
	if err != nil {
		return nil, mapError("create command encoder", err)
	}
	if err := encoder.BeginEncoding("strata_frame"); err != nil {
		return nil, mapError("begin encoding", err)
	}

	if plan.HasEffects() {
		if err := b.encodeLayers(encoder, plan, target); err != nil {
			encoder.DiscardEncoding()
			return nil, err
		}
		return b.endEncoding(encoder)
	}

	oit := plan.OIT && len(plan.Accumulate) > 0
	if err := b.mainPass(encoder, plan, target, !oit); err != nil {
		encoder.DiscardEncoding()
		return nil, err
	}
	if oit {
		if err := b.accumulatePass(encoder, plan); err != nil {
			encoder.DiscardEncoding()
			return nil, err
		}
		b.compositePass(encoder, target)
	}
	return b.endEncoding(encoder)
}

func (b *Backend) endEncoding(encoder hal.CommandEncoder) (hal.CommandBuffer, error) {
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, mapError("end encoding", err)
	}
	return cmd, nil
}

func (b *Backend) depthStencilAttachment() *hal.RenderPassDepthStencilAttachment {
	return &hal.RenderPassDepthStencilAttachment{
		View:              b.targets.stencil.view,
		DepthLoadOp:       gputypes.LoadOpClear,
		DepthStoreOp:      gputypes.StoreOpDiscard,
		DepthClearValue:   1,
		StencilLoadOp:     gputypes.LoadOpClear,
		StencilStoreOp:    gputypes.StoreOpDiscard,
		StencilClearValue: 0,
	}
}

// colorAttachment targets the multisampled color buffer when there is one,
// resolving into target only on the frame's last pass.
func (b *Backend) colorAttachment(target hal.TextureView, load gputypes.LoadOp, clearValue gputypes.Color, last bool) hal.RenderPassColorAttachment {
	a := hal.RenderPassColorAttachment{
		View:       target,
		LoadOp:     load,
		StoreOp:    gputypes.StoreOpStore,
		ClearValue: clearValue,
	}
	if b.targets.samples > 1 {
		a.View = b.targets.color.view
		if last {
			a.ResolveTarget = target
			a.StoreOp = gputypes.StoreOpDiscard
		}
	}
	return a
}

func clearColor(plan *frame.Plan) gputypes.Color {
	c := plan.ClearColor
	return gputypes.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}
}

func (b *Backend) mainPass(encoder hal.CommandEncoder, plan *frame.Plan, target hal.TextureView, last bool) error {
	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:                  "strata_main_pass",
		ColorAttachments:       []hal.RenderPassColorAttachment{b.colorAttachment(target, gputypes.LoadOpClear, clearColor(plan), last)},
		DepthStencilAttachment: b.depthStencilAttachment(),
	})
	err := b.draw(pass, plan.Main, false)
	pass.End()
	return err
}

func (b *Backend) accumulatePass(encoder hal.CommandEncoder, plan *frame.Plan) error {
	accum := hal.RenderPassColorAttachment{
		View:    b.targets.accum.view,
		LoadOp:  gputypes.LoadOpClear,
		StoreOp: gputypes.StoreOpStore,
	}
	reveal := hal.RenderPassColorAttachment{
		View:       b.targets.reveal.view,
		LoadOp:     gputypes.LoadOpClear,
		StoreOp:    gputypes.StoreOpStore,
		ClearValue: gputypes.Color{R: 1, G: 1, B: 1, A: 1},
	}
	if b.targets.samples > 1 {
		accum.ResolveTarget, accum.StoreOp = b.targets.accumResolve.view, gputypes.StoreOpDiscard
		reveal.ResolveTarget, reveal.StoreOp = b.targets.revealResolve.view, gputypes.StoreOpDiscard
	}
	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:                  "strata_oit_accumulate_pass",
		ColorAttachments:       []hal.RenderPassColorAttachment{accum, reveal},
		DepthStencilAttachment: b.depthStencilAttachment(),
	})
	err := b.draw(pass, plan.Accumulate, true)
	pass.End()
	return err
}

func (b *Backend) compositePass(encoder hal.CommandEncoder, target hal.TextureView) {
	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:            "strata_oit_composite_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{b.colorAttachment(target, gputypes.LoadOpLoad, gputypes.Color{}, true)},
	})
	pass.SetPipeline(b.pipes.composite)
	pass.SetBindGroup(0, b.targets.compositeGroup, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
}

// drawState tracks what is bound in a render pass so commands only issue
// the changes.
type drawState struct {
	framed   bool
	current  hal.RenderPipeline
	layers   layerKey
	hasGroup bool
}

// bindFrame binds the frame uniforms and geometry buffers.
func (b *Backend) bindFrame(pass hal.RenderPassEncoder) {
	pass.SetBindGroup(0, b.uniformGroup, nil)
	pass.SetVertexBuffer(0, b.vertices.buf, 0)
	pass.SetVertexBuffer(1, b.instances.buf, 0)
	pass.SetIndexBuffer(b.indices.buf, gputypes.IndexFormatUint32, 0)
}

// draw records a command stream.
func (b *Backend) draw(pass hal.RenderPassEncoder, cmds []frame.Command, accum bool) error {
	var st drawState
	for i := range cmds {
		if err := b.command(pass, &st, &cmds[i], accum); err != nil {
			return err
		}
	}
	return nil
}

// command records one clip or draw command. Pipeline and layer bind group
// changes are only issued when they differ from st.
func (b *Backend) command(pass hal.RenderPassEncoder, st *drawState, cmd *frame.Command, accum bool) error {
	if !st.framed {
		b.bindFrame(pass)
		st.framed = true
	}
	push, pop := b.pipes.masks(accum)
	var pipe hal.RenderPipeline
	switch {
	case cmd.Op == frame.OpPushClip:
		pipe = push
	case cmd.Op == frame.OpPopClip:
		pipe = pop
	case accum:
		pipe = b.pipes.accumulate
	case cmd.Variant == frame.Solid:
		pipe = b.pipes.solid
	default:
		pipe = b.pipes.textured
	}
	if pipe != st.current {
		pass.SetPipeline(pipe)
		st.current = pipe
	}

	key := layerKey{background: cmd.Background, foreground: cmd.Foreground}
	if !st.hasGroup || key != st.layers {
		g, err := b.textures.group(b.device, b.pipes.layerLayout, key)
		if err != nil {
			return err
		}
		pass.SetBindGroup(1, g, nil)
		st.layers, st.hasGroup = key, true
	}

	pass.SetStencilReference(cmd.Ref)
	for _, d := range cmd.Draws {
		pass.DrawIndexed(d.IndexCount, 1, d.FirstIndex, d.BaseVertex, d.Instance)
	}
	return nil
}
