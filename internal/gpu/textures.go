//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/strata/internal/frame"
	"github.com/gogpu/wgpu/hal"
)

// textureFormat stores premultiplied texels sRGB-encoded per channel, so
// sampling returns premultiplied linear values.
const textureFormat = gputypes.TextureFormatRGBA8UnormSrgb

type layerKey struct {
	background, foreground frame.TextureID
}

// textureStore owns uploaded textures, the shared sampler and the layer bind
// groups built from them.
type textureStore struct {
	textures map[frame.TextureID]renderTexture
	// empty is the 1x1 transparent texture bound for absent layers.
	empty   renderTexture
	sampler hal.Sampler
	groups  map[layerKey]hal.BindGroup
}

func newTextureStore() textureStore {
	return textureStore{
		textures: make(map[frame.TextureID]renderTexture),
		groups:   make(map[layerKey]hal.BindGroup),
	}
}

func (s *textureStore) init(device hal.Device, queue hal.Queue) error {
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "strata_layer_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		LodMaxClamp:  32,
	})
	if err != nil {
		return mapError("create sampler", err)
	}
	s.sampler = sampler

	empty, err := s.upload(device, queue, "strata_empty_texture", 1, 1, make([]byte, 4))
	if err != nil {
		return err
	}
	s.empty = empty
	return nil
}

func (s *textureStore) upload(device hal.Device, queue hal.Queue, label string, width, height int, pixels []byte) (renderTexture, error) {
	w, h := uint32(width), uint32(height) //nolint:gosec // G115: validated positive
	rt, err := createRenderTexture(device, label, w, h, 1, textureFormat,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst)
	if err != nil {
		return renderTexture{}, err
	}
	err = queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: rt.tex, Aspect: gputypes.TextureAspectAll},
		pixels,
		&hal.ImageDataLayout{BytesPerRow: w * 4, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		rt.destroy(device)
		return renderTexture{}, mapError("write "+label, err)
	}
	return rt, nil
}

// load uploads a texture under id, replacing any previous one.
func (s *textureStore) load(device hal.Device, queue hal.Queue, id frame.TextureID, width, height int, pixels []byte) error {
	if id == frame.NoTexture || width <= 0 || height <= 0 || len(pixels) != width*height*4 {
		return fmt.Errorf("%w: id %d, %dx%d, %d bytes", ErrInvalidTexture, id, width, height, len(pixels))
	}
	rt, err := s.upload(device, queue, fmt.Sprintf("strata_texture_%d", id), width, height, pixels)
	if err != nil {
		return err
	}
	// Cached groups may bind the empty texture in place of id.
	s.flushGroups(device)
	s.unload(device, id)
	s.textures[id] = rt
	return nil
}

func (s *textureStore) unload(device hal.Device, id frame.TextureID) {
	rt, ok := s.textures[id]
	if !ok {
		return
	}
	s.flushGroups(device)
	rt.destroy(device)
	delete(s.textures, id)
}

func (s *textureStore) has(id frame.TextureID) bool {
	_, ok := s.textures[id]
	return ok
}

func (s *textureStore) view(id frame.TextureID) hal.TextureView {
	if rt, ok := s.textures[id]; ok {
		return rt.view
	}
	return s.empty.view
}

// group returns the layer bind group for a background/foreground pair,
// creating and caching it on first use.
func (s *textureStore) group(device hal.Device, layout hal.BindGroupLayout, key layerKey) (hal.BindGroup, error) {
	if g, ok := s.groups[key]; ok {
		return g, nil
	}
	g, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "strata_layer_group",
		Layout: layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.SamplerBinding{Sampler: s.sampler.NativeHandle()}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: s.view(key.background).NativeHandle()}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{TextureView: s.view(key.foreground).NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create layer bind group: %w", err)
	}
	s.groups[key] = g
	return g, nil
}

// flushGroups drops all cached bind groups. Required whenever a texture
// view or the layer layout they reference is destroyed.
func (s *textureStore) flushGroups(device hal.Device) {
	for k, g := range s.groups {
		device.DestroyBindGroup(g)
		delete(s.groups, k)
	}
}

func (s *textureStore) destroy(device hal.Device) {
	s.flushGroups(device)
	for id, rt := range s.textures {
		rt.destroy(device)
		delete(s.textures, id)
	}
	s.empty.destroy(device)
	if s.sampler != nil {
		device.DestroySampler(s.sampler)
		s.sampler = nil
	}
}
