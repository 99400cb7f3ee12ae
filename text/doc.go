// Package text turns strings into glyph quads for a strata.Renderer.
//
// Layout positions the glyphs of a single line using a font.Face. An Atlas
// bakes the glyphs it is asked to draw into page textures, one set of pages
// per text color, and queues each glyph as a single-texture instance whose
// UV rectangle selects the glyph:
//
//	face := basicfont.Face7x13
//	atlas, _ := text.NewAtlas(face, 1000)
//	run := text.Layout(face, "Hello", strata.Pt(10, 30), strata.Black)
//	ids, err := atlas.Draw(r, run, strata.NoClip)
//
// Quads are ordinary instances: SetTransform, SetClipTransform and Remove
// apply to them like to any other shape.
package text
