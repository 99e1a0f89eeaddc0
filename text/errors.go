package text

import "errors"

// Sentinel errors for text package.
var (
	// ErrEmptyFontData is returned when font data is empty.
	ErrEmptyFontData = errors.New("text: empty font data")

	// ErrInvalidSize is returned when a face is requested with a non-positive size.
	ErrInvalidSize = errors.New("text: invalid face size")

	// ErrStaleHandle is returned when a face handle no longer refers to a live face.
	ErrStaleHandle = errors.New("text: stale face handle")

	// ErrColorGlyph is returned for glyphs that have no monochrome outline
	// (bitmap or layered emoji). The rasterizer does not produce them.
	ErrColorGlyph = errors.New("text: colored glyphs are not supported")
)
