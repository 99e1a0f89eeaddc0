package text

import (
	"fmt"
	"sync"

	"github.com/chewxy/math32"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Face is a parsed font at a fixed pixel size.
//
// Face is safe for concurrent use. The sfnt scratch buffer is guarded by a
// mutex, so rasterization from a background goroutine and metric queries from
// the render loop can share one Face.
type Face struct {
	data []byte
	font *sfnt.Font
	size float32

	mu  sync.Mutex
	buf sfnt.Buffer
}

// FaceMetrics are the vertical metrics of a face in pixels.
// Positions are measured from the top of the line box, whose height is
// Ascent + Descent.
type FaceMetrics struct {
	Ascent    float32
	Descent   float32
	LineGap   float32
	XHeight   float32
	CapHeight float32

	UnderlinePos       float32
	UnderlineWidth     float32
	StrikethroughPos   float32
	StrikethroughWidth float32
	DoubleUnderlinePos [2]float32
	ThinLineWidth      float32

	// Advance is the advance width of the digit zero, the usual terminal
	// cell width for monospace fonts.
	Advance float32
}

// ParseFace parses TrueType or OpenType data at the given size in pixels
// per em. The data slice is retained and must not be modified.
func ParseFace(data []byte, sizePx float32) (*Face, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFontData
	}
	if !(sizePx > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSize, sizePx)
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("text: parse font: %w", err)
	}
	return &Face{data: data, font: f, size: sizePx}, nil
}

// Size returns the face size in pixels per em.
func (f *Face) Size() float32 { return f.size }

// Data returns the raw font file the face was parsed from.
func (f *Face) Data() []byte { return f.data }

func (f *Face) ppem() fixed.Int26_6 {
	return fixed.Int26_6(math32.Round(f.size * 64))
}

// GlyphIndex maps a rune to a glyph index. Zero means the font has no glyph.
func (f *Face) GlyphIndex(r rune) (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gid, err := f.font.GlyphIndex(&f.buf, r)
	if err != nil {
		return 0, err
	}
	return uint16(gid), nil
}

// Advance returns the unhinted advance width of a glyph in pixels.
func (f *Face) Advance(glyph uint16) (float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	adv, err := f.font.GlyphAdvance(&f.buf, sfnt.GlyphIndex(glyph), f.ppem(), font.HintingNone)
	if err != nil {
		return 0, err
	}
	return fixedToFloat32(adv), nil
}

// Metrics derives line decoration metrics from the font's vertical metrics.
// sfnt does not expose the post table, so underline and strikethrough are
// placed from descent and x-height the way most terminal fonts draw them.
func (f *Face) Metrics() (FaceMetrics, error) {
	f.mu.Lock()
	m, err := f.font.Metrics(&f.buf, f.ppem(), font.HintingNone)
	f.mu.Unlock()
	if err != nil {
		return FaceMetrics{}, err
	}

	zero, err := f.GlyphIndex('0')
	if err != nil {
		return FaceMetrics{}, err
	}
	adv, err := f.Advance(zero)
	if err != nil {
		return FaceMetrics{}, err
	}

	fm := FaceMetrics{
		Ascent:    fixedToFloat32(m.Ascent),
		Descent:   fixedToFloat32(m.Descent),
		LineGap:   fixedToFloat32(m.Height - m.Ascent - m.Descent),
		XHeight:   fixedToFloat32(m.XHeight),
		CapHeight: fixedToFloat32(m.CapHeight),
		Advance:   adv,
	}
	if fm.LineGap < 0 {
		fm.LineGap = 0
	}
	if fm.XHeight <= 0 {
		fm.XHeight = fm.Ascent / 2
	}

	thin := math32.Max(1, math32.Round(f.size/16))
	fm.ThinLineWidth = thin
	fm.UnderlineWidth = thin
	fm.StrikethroughWidth = thin

	baseline := fm.Ascent
	fm.UnderlinePos = math32.Round(baseline + (fm.Descent-thin)/3)
	fm.StrikethroughPos = math32.Round(baseline - fm.XHeight/2 - thin/2)

	// The second line sits at the bottom of the line box and the first one
	// above it, separated by at least one thin line.
	lineBottom := math32.Round(fm.Ascent + fm.Descent)
	second := lineBottom - thin
	first := math32.Min(fm.UnderlinePos, second-2*thin)
	fm.DoubleUnderlinePos = [2]float32{math32.Max(baseline, first), second}

	return fm, nil
}

// segments loads the glyph outline scaled to the face size, y pointing down.
func (f *Face) segments(glyph uint16) (sfnt.Segments, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	segs, err := f.font.LoadGlyph(&f.buf, sfnt.GlyphIndex(glyph), f.ppem(), nil)
	if err != nil {
		return nil, err
	}
	// The buffer is reused by the next call.
	out := make(sfnt.Segments, len(segs))
	copy(out, segs)
	return out, nil
}

func fixedToFloat32(v fixed.Int26_6) float32 {
	return float32(v) / 64
}
