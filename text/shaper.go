package text

import (
	"bytes"
	"fmt"
	"sync"
	"unicode"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/width"
)

// ShapedRun is one line of text shaped for a fixed cell grid.
//
// Advances are snapped to whole cells so that glyphs stay aligned to their
// columns even when the font is not strictly monospace.
type ShapedRun struct {
	Face     FaceHandle
	Glyphs   []uint16
	Advances []float32
	Offsets  [][2]float32
	// Columns is the first column covered by each glyph.
	Columns []int
	// Cells is the number of columns the whole line covers.
	Cells int
}

// Shaper shapes lines of text with HarfBuzz via go-text/typesetting.
//
// Shaper is safe for concurrent use. The HarfBuzz shaper keeps internal
// buffers, so calls are serialized.
type Shaper struct {
	registry *Registry

	mu     sync.Mutex
	shaper shaping.HarfbuzzShaper
	faces  map[FaceHandle]*font.Face
}

// NewShaper creates a shaper resolving handles through r.
func NewShaper(r *Registry) *Shaper {
	return &Shaper{
		registry: r,
		faces:    make(map[FaceHandle]*font.Face),
	}
}

// ShapeLine shapes a single line left to right and places the result on a
// grid of cellWidth pixel wide columns. East Asian wide and fullwidth runes
// take two columns, combining marks take none.
func (s *Shaper) ShapeLine(h FaceHandle, line string, cellWidth float32) (ShapedRun, error) {
	run := ShapedRun{Face: h}
	if line == "" {
		return run, nil
	}

	face, ok := s.registry.Lookup(h)
	if !ok {
		return run, fmt.Errorf("%w: %v", ErrStaleHandle, h)
	}

	runes := []rune(line)
	cols := make([]int, len(runes)+1)
	for i, r := range runes {
		cols[i+1] = cols[i] + CellWidth(r)
	}
	run.Cells = cols[len(runes)]

	s.mu.Lock()
	defer s.mu.Unlock()

	gf, err := s.goTextFace(h, face)
	if err != nil {
		return run, err
	}

	out := s.shaper.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      gf,
		Size:      fixed.Int26_6(face.Size() * 64),
		Script:    language.LookupScript(runes[0]),
		Language:  language.NewLanguage("en"),
	})

	n := len(out.Glyphs)
	run.Glyphs = make([]uint16, n)
	run.Advances = make([]float32, n)
	run.Offsets = make([][2]float32, n)
	run.Columns = make([]int, n)
	for i, g := range out.Glyphs {
		run.Glyphs[i] = uint16(g.GlyphID)
		run.Columns[i] = cols[min(g.ClusterIndex, len(runes))]
		run.Offsets[i] = [2]float32{
			float32(g.XOffset) / 64,
			-float32(g.YOffset) / 64,
		}
	}
	for i := range run.Advances {
		next := run.Cells
		if i+1 < n {
			next = run.Columns[i+1]
		}
		run.Advances[i] = float32(next-run.Columns[i]) * cellWidth
	}
	return run, nil
}

// Forget drops the cached shaping face for h. Call it after releasing the
// last reference to a face.
func (s *Shaper) Forget(h FaceHandle) {
	s.mu.Lock()
	delete(s.faces, h)
	s.mu.Unlock()
}

func (s *Shaper) goTextFace(h FaceHandle, f *Face) (*font.Face, error) {
	if gf, ok := s.faces[h]; ok {
		return gf, nil
	}
	gf, err := font.ParseTTF(bytes.NewReader(f.Data()))
	if err != nil {
		return nil, fmt.Errorf("text: parse font for shaping: %w", err)
	}
	s.faces[h] = gf
	return gf, nil
}

// CellWidth returns the number of terminal columns a rune occupies.
func CellWidth(r rune) int {
	if r == 0 || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Me, r) {
		return 0
	}
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}
