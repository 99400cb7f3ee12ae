package strata

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	icolor "github.com/gogpu/strata/internal/color"
	"github.com/gogpu/strata/internal/frame"
)

type textureInfo struct {
	width, height int
}

// LoadTexture uploads img under id, replacing any texture with that id.
// Any image.Image works; pixels are converted to premultiplied linear light
// on the way in.
func (r *Renderer) LoadTexture(id TextureID, img image.Image) error {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return r.LoadTextureRGBA(id, b.Dx(), b.Dy(), rgba.Pix)
}

// LoadTextureScaled uploads img resampled to width×height.
func (r *Renderer) LoadTextureScaled(id TextureID, img image.Image, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidTexture, width, height)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(rgba, rgba.Bounds(), img, img.Bounds(), draw.Src, nil)
	return r.LoadTextureRGBA(id, width, height, rgba.Pix)
}

// LoadTextureRGBA uploads width×height pixels in the layout of image.RGBA:
// 8-bit sRGB, alpha-premultiplied, rows of width*4 bytes. Use PremultiplyRGBA
// first for straight-alpha data.
func (r *Renderer) LoadTextureRGBA(id TextureID, width, height int, pixels []byte) error {
	if r.closed {
		return ErrRendererClosed
	}
	if id == NoTexture || width <= 0 || height <= 0 || len(pixels) != width*height*4 {
		return fmt.Errorf("%w: id %d, %dx%d, %d bytes", ErrInvalidTexture, id, width, height, len(pixels))
	}
	if err := r.backend.LoadTexture(frame.TextureID(id), width, height, texels(pixels)); err != nil {
		return r.failed("load texture", err)
	}
	r.textures[id] = textureInfo{width: width, height: height}
	Logger().Debug("strata: texture loaded", "id", id, "width", width, "height", height)
	return nil
}

// UnloadTexture releases a texture. Instances still referencing it render
// that layer transparent.
func (r *Renderer) UnloadTexture(id TextureID) {
	if r.closed {
		return
	}
	r.backend.UnloadTexture(frame.TextureID(id))
	delete(r.textures, id)
}

// IsTextureLoaded reports whether id names a loaded texture.
func (r *Renderer) IsTextureLoaded(id TextureID) bool {
	return !r.closed && r.backend.HasTexture(frame.TextureID(id))
}

// TextureSize returns the size of a loaded texture.
func (r *Renderer) TextureSize(id TextureID) (width, height int, ok bool) {
	t, ok := r.textures[id]
	return t.width, t.height, ok
}

// PremultiplyRGBA converts straight-alpha RGBA8 pixels to premultiplied
// alpha in place.
func PremultiplyRGBA(pixels []byte) {
	for i := 0; i+3 < len(pixels); i += 4 {
		a := uint32(pixels[i+3])
		if a == 255 {
			continue
		}
		for c := i; c < i+3; c++ {
			pixels[c] = uint8((uint32(pixels[c])*a + 127) / 255) //nolint:gosec // G115: result <= 255
		}
	}
}

// texels converts image.RGBA pixels to backend texels: premultiplied linear
// light, each channel sRGB-encoded.
func texels(pixels []byte) []byte {
	out := make([]byte, len(pixels))
	for i := 0; i+3 < len(pixels); i += 4 {
		a := pixels[i+3]
		if a == 0 {
			continue
		}
		t := icolor.DecodeSRGB8(unpremultiply(pixels[i], a), unpremultiply(pixels[i+1], a), unpremultiply(pixels[i+2], a), a).EncodeTexel()
		copy(out[i:i+4], t[:])
	}
	return out
}

func unpremultiply(c, a uint8) uint8 {
	if a == 255 {
		return c
	}
	v := (uint32(c)*255 + uint32(a)/2) / uint32(a)
	return uint8(min(v, 255)) //nolint:gosec // G115: clamped
}
