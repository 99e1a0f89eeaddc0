package cellgrid

import (
	"fmt"

	"github.com/gogpu/cellgrid/text"
)

// Generations are version stamps of the payload's inputs. A counter that
// is unchanged since the previous frame means the resources built from it
// are still valid.
type Generations struct {
	// Settings changes whenever any field of Settings changes.
	Settings uint64
	// Font changes when cached glyph bitmaps become invalid: a new face,
	// size, DPI or antialiasing mode.
	Font uint64
	// Misc changes when the per-frame content outside the rows, such as
	// the background bitmap, changes.
	Misc uint64
}

// Payload is one frame of the terminal grid. It is read-only while Render
// runs; the producer must not modify it until Render returns.
type Payload struct {
	Generations Generations

	// Settings must be set on the first frame and whenever
	// Generations.Settings changes. It may be nil otherwise.
	Settings *Settings

	// Background holds one color per cell. A nil background fills the
	// target with Settings.BackgroundColor. It is uploaded only when
	// Generations.Misc changes; a new bitmap under the same generation is
	// ignored.
	Background *BackgroundBitmap

	Rows []Row
}

// BackgroundBitmap is a per-cell color bitmap. It is stretched over the
// target so that each texel covers one cell; cells beyond the bitmap repeat
// its edge cells.
type BackgroundBitmap struct {
	Width, Height int
	// Pix holds Height rows of Width straight-alpha colors.
	Pix []Color
}

// Row is one line of the grid, top to bottom in Payload.Rows order.
type Row struct {
	GlyphRuns []GlyphRun
	Gridlines []GridlineRange
	// Cursor is the cursor if it is on this row.
	Cursor *Cursor
	// Selection is the selected column range.
	Selection Span
}

// GlyphRun is a sequence of shaped glyphs of one face.
type GlyphRun struct {
	Face   text.FaceHandle
	Glyphs []uint16
	// Advances are the pen advances of each glyph in device pixels.
	Advances []float32
	// Offsets move each glyph from its pen position, in device pixels.
	// Nil means no offsets.
	Offsets [][2]float32
	// Colors holds one straight foreground color per glyph, or a single
	// color for the whole run.
	Colors []Color
	// Column is the cell the pen starts at.
	Column int
}

func (g *GlyphRun) color(i int) Color {
	if len(g.Colors) == 1 {
		return g.Colors[0]
	}
	return g.Colors[i]
}

func (g *GlyphRun) offset(i int) [2]float32 {
	if g.Offsets == nil {
		return [2]float32{}
	}
	return g.Offsets[i]
}

// Span is a half-open column range.
type Span struct {
	From, To int
}

// Empty reports whether the span covers no columns.
func (s Span) Empty() bool { return s.To <= s.From }

// GridLines is a set of line kinds drawn over a range of cells.
type GridLines uint16

const (
	// LineLeft draws the left edge of every cell in the range.
	LineLeft GridLines = 1 << iota
	// LineTop draws the top edge of the range.
	LineTop
	// LineRight draws the right edge of every cell in the range.
	LineRight
	// LineBottom draws the bottom edge of the range.
	LineBottom
	// LineUnderline draws a single underline.
	LineUnderline
	// LineHyperlinkUnderline draws a dashed underline.
	LineHyperlinkUnderline
	// LineDoubleUnderline draws two thin underlines.
	LineDoubleUnderline
	// LineStrikethrough draws a line through the glyphs.
	LineStrikethrough
)

// Has reports whether l contains every kind in k.
func (l GridLines) Has(k GridLines) bool { return l&k == k }

// GridlineRange decorates the cells [From, To) of a row.
type GridlineRange struct {
	From, To int
	Lines    GridLines
	// Color is used for box edges and strikethrough.
	Color Color
	// UnderlineColor is used for the underline kinds. Zero means Color.
	UnderlineColor Color
}

func (r *GridlineRange) underlineColor() Color {
	if r.UnderlineColor == 0 {
		return r.Color
	}
	return r.UnderlineColor
}

// mustLines returns the range's line kinds. A range without any kind is a
// producer bug: it would draw nothing and the renderer does not accept it.
func (r *GridlineRange) mustLines() GridLines {
	if r.Lines == 0 {
		panic(fmt.Sprintf("cellgrid: gridline range [%d, %d) has no line kinds", r.From, r.To))
	}
	return r.Lines
}

// CursorStyle selects the part of the cell the cursor covers.
type CursorStyle uint8

const (
	// CursorLegacy fills the bottom HeightPercentage of the cell.
	CursorLegacy CursorStyle = iota
	// CursorVerticalBar draws a thin bar at the left edge.
	CursorVerticalBar
	// CursorUnderscore draws an underline-sized bar.
	CursorUnderscore
	// CursorEmptyBox outlines the cell.
	CursorEmptyBox
	// CursorFullBox fills the cell.
	CursorFullBox
	// CursorDoubleUnderscore draws two thin lines at the double underline positions.
	CursorDoubleUnderscore
)

// String returns the string representation of the cursor style.
func (s CursorStyle) String() string {
	switch s {
	case CursorLegacy:
		return "Legacy"
	case CursorVerticalBar:
		return "VerticalBar"
	case CursorUnderscore:
		return "Underscore"
	case CursorEmptyBox:
		return "EmptyBox"
	case CursorFullBox:
		return "FullBox"
	case CursorDoubleUnderscore:
		return "DoubleUnderscore"
	default:
		return fmt.Sprintf("CursorStyle(%d)", s)
	}
}

// Cursor is the text cursor on a row.
type Cursor struct {
	// Columns is the covered column range, two columns wide on a wide glyph.
	Columns Span
	Style   CursorStyle
	// HeightPercentage is the filled share of a CursorLegacy cursor, 1 to 100.
	HeightPercentage int
	// Color overrides Settings.CursorColor when not zero.
	Color Color
}

// Validate checks the structural consistency of the payload: slice lengths
// of glyph runs and the size of the background bitmap.
func (p *Payload) Validate() error {
	if bg := p.Background; bg != nil {
		if bg.Width <= 0 || bg.Height <= 0 || len(bg.Pix) < bg.Width*bg.Height {
			return fmt.Errorf("cellgrid: invalid background bitmap %dx%d with %d cells", bg.Width, bg.Height, len(bg.Pix))
		}
	}
	for i := range p.Rows {
		row := &p.Rows[i]
		for j := range row.GlyphRuns {
			g := &row.GlyphRuns[j]
			n := len(g.Glyphs)
			switch {
			case len(g.Advances) != n:
				return &PayloadError{Row: i, Reason: fmt.Sprintf("run %d has %d glyphs and %d advances", j, n, len(g.Advances))}
			case g.Offsets != nil && len(g.Offsets) != n:
				return &PayloadError{Row: i, Reason: fmt.Sprintf("run %d has %d glyphs and %d offsets", j, n, len(g.Offsets))}
			case n > 0 && len(g.Colors) != 1 && len(g.Colors) != n:
				return &PayloadError{Row: i, Reason: fmt.Sprintf("run %d has %d glyphs and %d colors", j, n, len(g.Colors))}
			}
		}
	}
	return nil
}
