//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// renderTexture is a texture with its default view.
type renderTexture struct {
	tex  hal.Texture
	view hal.TextureView
}

func createRenderTexture(device hal.Device, label string, width, height, samples uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) (renderTexture, error) {
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return renderTexture{}, mapError("create "+label, err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return renderTexture{}, mapError("create "+label+" view", err)
	}
	return renderTexture{tex: tex, view: view}, nil
}

func (t *renderTexture) destroy(device hal.Device) {
	if t.view != nil {
		device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// targets holds the size-dependent attachments of a frame.
type targets struct {
	width, height uint32
	samples       uint32
	oit           bool
	offscreen     bool

	// color is the multisampled color attachment, unused when samples is 1.
	color   renderTexture
	stencil renderTexture
	// target is the render target when there is no surface.
	target renderTexture

	accum         renderTexture
	reveal        renderTexture
	accumResolve  renderTexture
	revealResolve renderTexture

	// compositeGroup binds the single-sample OIT results.
	compositeGroup hal.BindGroup
}

// matches reports whether the attachments fit the requested configuration.
func (t *targets) matches(width, height, samples uint32, oit, offscreen bool) bool {
	return t.stencil.tex != nil && t.width == width && t.height == height &&
		t.samples == samples && t.oit == oit && t.offscreen == offscreen
}

// ensure (re)creates the attachments when the size, sample count or pass
// set changed. The composite bind group depends on p's layout.
func (t *targets) ensure(device hal.Device, p *pipelines, width, height, samples uint32, oit, offscreen bool) error { //nolint:funlen // one block per attachment
	if t.matches(width, height, samples, oit, offscreen) {
		return nil
	}
	t.destroy(device)

	attach := gputypes.TextureUsageRenderAttachment
	var err error
	if samples > 1 {
		if t.color, err = createRenderTexture(device, "strata_msaa_color", width, height, samples, p.format, attach); err != nil {
			return err
		}
	}
	if t.stencil, err = createRenderTexture(device, "strata_depth_stencil", width, height, samples, depthStencilFormat, attach); err != nil {
		t.destroy(device)
		return err
	}
	if offscreen {
		if t.target, err = createRenderTexture(device, "strata_offscreen", width, height, 1, p.format, attach|gputypes.TextureUsageCopySrc); err != nil {
			t.destroy(device)
			return err
		}
	}

	if oit {
		usage := attach
		if samples == 1 {
			usage |= gputypes.TextureUsageTextureBinding
		}
		if t.accum, err = createRenderTexture(device, "strata_oit_accum", width, height, samples, accumFormat, usage); err != nil {
			t.destroy(device)
			return err
		}
		if t.reveal, err = createRenderTexture(device, "strata_oit_reveal", width, height, samples, revealFormat, usage); err != nil {
			t.destroy(device)
			return err
		}
		accumView, revealView := t.accum.view, t.reveal.view
		if samples > 1 {
			resolve := attach | gputypes.TextureUsageTextureBinding
			if t.accumResolve, err = createRenderTexture(device, "strata_oit_accum_resolve", width, height, 1, accumFormat, resolve); err != nil {
				t.destroy(device)
				return err
			}
			if t.revealResolve, err = createRenderTexture(device, "strata_oit_reveal_resolve", width, height, 1, revealFormat, resolve); err != nil {
				t.destroy(device)
				return err
			}
			accumView, revealView = t.accumResolve.view, t.revealResolve.view
		}
		t.compositeGroup, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  "strata_composite_group",
			Layout: p.compositeLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: accumView.NativeHandle()}},
				{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: revealView.NativeHandle()}},
			},
		})
		if err != nil {
			t.destroy(device)
			return fmt.Errorf("create composite bind group: %w", err)
		}
	}

	t.width, t.height, t.samples, t.oit, t.offscreen = width, height, samples, oit, offscreen
	slogger().Debug("gpu targets created", "width", width, "height", height, "samples", samples, "oit", oit)
	return nil
}

// destroy releases all attachments in reverse creation order.
func (t *targets) destroy(device hal.Device) {
	if t.compositeGroup != nil {
		device.DestroyBindGroup(t.compositeGroup)
		t.compositeGroup = nil
	}
	t.revealResolve.destroy(device)
	t.accumResolve.destroy(device)
	t.reveal.destroy(device)
	t.accum.destroy(device)
	t.target.destroy(device)
	t.stencil.destroy(device)
	t.color.destroy(device)
	t.width, t.height, t.samples = 0, 0, 0
}
