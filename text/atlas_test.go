package text

import (
	"context"
	"errors"
	"image"
	"testing"

	"golang.org/x/image/font/basicfont"

	"github.com/gogpu/strata"
)

func newRenderer(t *testing.T, w, h uint32) *strata.Renderer {
	t.Helper()
	r, err := strata.New(strata.Target{Width: w, Height: h}, strata.DefaultConfig(), strata.WithBackend(strata.BackendSoftware))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestNewAtlasRejectsNoTexture(t *testing.T) {
	if _, err := NewAtlas(basicfont.Face7x13, strata.NoTexture); !errors.Is(err, strata.ErrInvalidTexture) {
		t.Errorf("err = %v, want ErrInvalidTexture", err)
	}
}

func TestAtlasReusesGlyphs(t *testing.T) {
	a, err := NewAtlas(basicfont.Face7x13, 10)
	if err != nil {
		t.Fatal(err)
	}
	red, blue := strata.RGB(1, 0, 0), strata.RGB(0, 0, 1)

	tex, uv, err := a.Glyph('A', red)
	if err != nil {
		t.Fatalf("Glyph: %v", err)
	}
	again, uv2, _ := a.Glyph('A', red)
	if again != tex || uv2 != uv || a.Len() != 1 {
		t.Errorf("second lookup baked again: len %d", a.Len())
	}
	if uv.MinX <= 0 || uv.MinY <= 0 || uv.MaxX <= uv.MinX || uv.MaxY <= uv.MinY {
		t.Errorf("uv = %+v, want a padded non-empty rect", uv)
	}

	other, _, _ := a.Glyph('A', blue)
	if other == tex {
		t.Error("different colors share a page")
	}
	if got := a.Textures(); len(got) != 2 || got[0] != 10 || got[1] != 11 {
		t.Errorf("Textures = %v, want [10 11]", got)
	}
}

func TestAtlasBakesInColor(t *testing.T) {
	a, _ := NewAtlas(basicfont.Face7x13, 1)
	if _, _, err := a.Glyph('H', strata.RGB(0, 1, 0)); err != nil {
		t.Fatal(err)
	}
	img := a.Page(0)
	opaque := 0
	for i := 0; i < len(img.Pix); i += 4 {
		px := img.Pix[i : i+4]
		if px[3] == 0 {
			continue
		}
		if px[0] != 0 || px[2] != 0 || px[1] != px[3] {
			t.Fatalf("texel %v is not premultiplied green", px)
		}
		if px[3] == 255 {
			opaque++
		}
	}
	if opaque == 0 {
		t.Error("glyph left no opaque texels")
	}
}

func TestAtlasNewPageWhenFull(t *testing.T) {
	face := basicfont.Face7x13
	a, _ := NewAtlas(face, 1)
	box, _, _ := glyphBox(face, 'A')
	perPage := ((PageSize - glyphPadding) / (box.Dx() + glyphPadding)) * ((PageSize - glyphPadding) / (box.Dy() + glyphPadding))
	c := strata.Black
	for i := range perPage + 1 {
		if _, _, err := a.Glyph(rune(0x100+i), c); err != nil {
			t.Fatalf("Glyph %d: %v", i, err)
		}
	}
	if got := len(a.Textures()); got != 2 {
		t.Errorf("pages = %d, want 2", got)
	}
	if a.Len() != perPage+1 {
		t.Errorf("Len = %d", a.Len())
	}
}

func TestAtlasGlyphTooLarge(t *testing.T) {
	huge := *basicfont.Face7x13
	huge.Ascent = PageSize
	a, _ := NewAtlas(&huge, 1)
	if _, _, err := a.Glyph('A', strata.Black); !errors.Is(err, ErrGlyphTooLarge) {
		t.Errorf("err = %v, want ErrGlyphTooLarge", err)
	}
}

func TestDrawRendersGlyphs(t *testing.T) {
	r := newRenderer(t, 32, 32)
	face := basicfont.Face7x13
	a, _ := NewAtlas(face, 5)
	run := Layout(face, "H", strata.Pt(4, 20), strata.RGB(1, 0, 0))

	ids, err := a.Draw(r, run, strata.NoClip)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if len(ids) != 1 || r.QueueLen() != 1 {
		t.Fatalf("ids = %v, queue %d", ids, r.QueueLen())
	}
	if !r.IsTextureLoaded(5) {
		t.Fatal("page not uploaded")
	}

	img, err := r.RenderToImage(context.Background())
	if err != nil {
		t.Fatalf("RenderToImage: %v", err)
	}
	if d := r.LastFrameStats().Diagnostics; len(d) != 0 {
		t.Errorf("diagnostics = %v", d)
	}

	b := run.Glyphs[0].Bounds
	box := image.Rect(int(b.MinX), int(b.MinY), int(b.MaxX), int(b.MaxY))
	solid := false
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			px := img.RGBAAt(x, y)
			if px.G != 0 || px.B != 0 {
				t.Fatalf("pixel (%d,%d) = %v, want red only", x, y, px)
			}
			if px.A >= 250 && px.R >= 250 {
				solid = true
			}
		}
	}
	if !solid {
		t.Error("no solid glyph pixel")
	}
	for _, p := range []image.Point{{0, 0}, {30, 30}, {box.Max.X + 2, box.Min.Y}} {
		if px := img.RGBAAt(p.X, p.Y); px.A != 0 {
			t.Errorf("pixel %v = %v outside the glyph", p, px)
		}
	}
}

func TestUploadReloadsForNewRenderer(t *testing.T) {
	a, _ := NewAtlas(basicfont.Face7x13, 3)
	if _, _, err := a.Glyph('x', strata.Black); err != nil {
		t.Fatal(err)
	}
	for range 2 {
		r := newRenderer(t, 8, 8)
		if err := a.Upload(r); err != nil {
			t.Fatalf("Upload: %v", err)
		}
		if !r.IsTextureLoaded(3) {
			t.Error("page not loaded into renderer")
		}
	}
}
