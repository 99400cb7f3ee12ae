package text

import (
	"image"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/strata"
)

// Glyph is one positioned glyph quad.
type Glyph struct {
	Rune rune
	// Bounds is the quad in logical pixels. Every quad of a face spans the
	// face's full ascent and descent.
	Bounds strata.Rect
}

// Run is a laid out line of text.
type Run struct {
	Glyphs []Glyph
	Color  strata.Color
	// Advance is the pen movement of the whole line.
	Advance float32
	// Missing lists runes the face has no glyph for. They take no space.
	Missing []rune
}

// Layout lays s out as a single line with its baseline starting at origin.
// s is NFC-normalized first so that combining sequences map to precomposed
// glyphs. Whitespace advances the pen without producing a quad.
func Layout(face font.Face, s string, origin strata.Point, c strata.Color) Run {
	run := Run{Color: c}
	var dot fixed.Int26_6
	prev := rune(-1)
	for _, r := range norm.NFC.String(s) {
		box, advance, ok := glyphBox(face, r)
		if !ok {
			run.Missing = append(run.Missing, r)
			continue
		}
		if prev >= 0 {
			dot += face.Kern(prev, r)
		}
		prev = r
		if !unicode.IsSpace(r) && !box.Empty() {
			x := origin.X + float26_6(dot)
			run.Glyphs = append(run.Glyphs, Glyph{
				Rune: r,
				Bounds: strata.Rect{
					MinX: x + float32(box.Min.X),
					MinY: origin.Y + float32(box.Min.Y),
					MaxX: x + float32(box.Max.X),
					MaxY: origin.Y + float32(box.Max.Y),
				},
			})
		}
		dot += advance
	}
	run.Advance = float26_6(dot)
	return run
}

// glyphBox returns the pixel box of r relative to the pen on the baseline.
// Boxes are widened to whole pixels and span the face's ascent and descent,
// so every glyph of a face has the same height.
func glyphBox(face font.Face, r rune) (image.Rectangle, fixed.Int26_6, bool) {
	bounds, advance, ok := face.GlyphBounds(r)
	if !ok {
		return image.Rectangle{}, 0, false
	}
	m := face.Metrics()
	return image.Rect(bounds.Min.X.Floor(), -m.Ascent.Ceil(), bounds.Max.X.Ceil(), m.Descent.Ceil()), advance, true
}

func float26_6(v fixed.Int26_6) float32 {
	return float32(v) / 64
}
