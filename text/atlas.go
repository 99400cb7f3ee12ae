package text

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/strata"
)

// PageSize is the width and height of an atlas page in pixels.
const PageSize = 256

// glyphPadding keeps a transparent border around every glyph so bilinear
// sampling and the anti-aliasing fringe never pick up a neighbor.
const glyphPadding = 1

type page struct {
	texture strata.TextureID
	color   strata.Color
	img     *image.RGBA
	shelves *shelfAllocator
	glyphs  map[rune]image.Rectangle
	dirty   bool
}

// Atlas bakes the glyphs of one face into page textures. Glyphs are baked
// in their run's color; each color gets its own pages. Pages use
// consecutive texture IDs starting at the one given to NewAtlas.
//
// An Atlas is not safe for concurrent use.
type Atlas struct {
	face  font.Face
	first strata.TextureID
	pages []*page
}

// NewAtlas returns an empty atlas for face whose pages are uploaded as
// textures first, first+1, and so on.
func NewAtlas(face font.Face, first strata.TextureID) (*Atlas, error) {
	if first == strata.NoTexture {
		return nil, fmt.Errorf("%w: atlas needs a first texture id", strata.ErrInvalidTexture)
	}
	return &Atlas{face: face, first: first}, nil
}

// Textures returns the texture IDs of the pages created so far.
func (a *Atlas) Textures() []strata.TextureID {
	ids := make([]strata.TextureID, len(a.pages))
	for i, p := range a.pages {
		ids[i] = p.texture
	}
	return ids
}

// Page returns the image of page i.
func (a *Atlas) Page(i int) *image.RGBA { return a.pages[i].img }

// Len returns the number of baked glyphs over all pages.
func (a *Atlas) Len() int {
	n := 0
	for _, p := range a.pages {
		n += len(p.glyphs)
	}
	return n
}

// Glyph bakes r in color c if needed and returns its page texture and UV
// rectangle.
func (a *Atlas) Glyph(r rune, c strata.Color) (strata.TextureID, strata.Rect, error) {
	p, rect, err := a.glyph(r, c)
	if err != nil {
		return strata.NoTexture, strata.Rect{}, err
	}
	return p.texture, uvRect(rect), nil
}

func (a *Atlas) glyph(r rune, c strata.Color) (*page, image.Rectangle, error) {
	for _, p := range a.pages {
		if p.color != c {
			continue
		}
		if rect, ok := p.glyphs[r]; ok {
			return p, rect, nil
		}
	}

	box, _, ok := glyphBox(a.face, r)
	if !ok {
		return nil, image.Rectangle{}, fmt.Errorf("text: no glyph for %q", r)
	}
	w, h := box.Dx(), box.Dy()
	if w+2*glyphPadding > PageSize || h+2*glyphPadding > PageSize {
		return nil, image.Rectangle{}, fmt.Errorf("%w: %q is %dx%d", ErrGlyphTooLarge, r, w, h)
	}
	for _, p := range a.pages {
		if p.color != c {
			continue
		}
		if x, y, ok := p.shelves.allocate(w, h); ok {
			return p, a.bake(p, r, box, x, y), nil
		}
	}
	p := a.newPage(c)
	x, y, _ := p.shelves.allocate(w, h)
	return p, a.bake(p, r, box, x, y), nil
}

func (a *Atlas) newPage(c strata.Color) *page {
	p := &page{
		texture: a.first + strata.TextureID(len(a.pages)),
		color:   c,
		img:     image.NewRGBA(image.Rect(0, 0, PageSize, PageSize)),
		// The allocator works inside the top-left padding border.
		shelves: newShelfAllocator(PageSize-glyphPadding, PageSize-glyphPadding, glyphPadding),
		glyphs:  make(map[rune]image.Rectangle),
	}
	a.pages = append(a.pages, p)
	return p
}

// bake draws r with its box's top-left at (x, y) inside the padding border.
func (a *Atlas) bake(p *page, r rune, box image.Rectangle, x, y int) image.Rectangle {
	rect := image.Rect(x, y, x+box.Dx(), y+box.Dy()).Add(image.Pt(glyphPadding, glyphPadding))
	d := font.Drawer{
		Dst:  p.img.SubImage(rect).(*image.RGBA),
		Src:  image.NewUniform(p.color.NRGBA()),
		Face: a.face,
		Dot:  fixed.P(rect.Min.X-box.Min.X, rect.Min.Y-box.Min.Y),
	}
	d.DrawString(string(r))
	p.glyphs[r] = rect
	p.dirty = true
	return rect
}

func uvRect(r image.Rectangle) strata.Rect {
	return strata.Rect{
		MinX: float32(r.Min.X) / PageSize,
		MinY: float32(r.Min.Y) / PageSize,
		MaxX: float32(r.Max.X) / PageSize,
		MaxY: float32(r.Max.Y) / PageSize,
	}
}

// Upload loads every page that changed since its last upload, or that r
// does not hold yet.
func (a *Atlas) Upload(r *strata.Renderer) error {
	for _, p := range a.pages {
		if !p.dirty && r.IsTextureLoaded(p.texture) {
			continue
		}
		if err := r.LoadTextureRGBA(p.texture, PageSize, PageSize, p.img.Pix); err != nil {
			return fmt.Errorf("text: upload page %d: %w", p.texture, err)
		}
		p.dirty = false
	}
	return nil
}

// Draw bakes run's glyphs, uploads changed pages and queues one quad per
// glyph under clip. It returns the quads' instance IDs in glyph order.
func (a *Atlas) Draw(r *strata.Renderer, run Run, clip strata.ClipID) ([]strata.InstanceID, error) {
	type quad struct {
		texture strata.TextureID
		uv      strata.Rect
	}
	quads := make([]quad, len(run.Glyphs))
	for i, g := range run.Glyphs {
		tex, uv, err := a.Glyph(g.Rune, run.Color)
		if err != nil {
			return nil, err
		}
		quads[i] = quad{tex, uv}
	}
	if err := a.Upload(r); err != nil {
		return nil, err
	}

	ids := make([]strata.InstanceID, 0, len(quads))
	for i, g := range run.Glyphs {
		shape := strata.NewRect(g.Bounds).WithFill(strata.Transparent).WithUV(quads[i].uv)
		id, err := r.AddShape(shape, clip, quads[i].texture)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
