package text

import "errors"

// Sentinel errors for text package.
var (
	// ErrGlyphTooLarge is returned when a glyph does not fit an atlas page.
	ErrGlyphTooLarge = errors.New("text: glyph larger than atlas page")
)
