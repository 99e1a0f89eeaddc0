package cellgrid

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/cellgrid/text"
)

// BaseDPI is the DPI at which one device-independent pixel (DIP) equals
// one device pixel.
const BaseDPI = 96

// FontMetrics are the line decoration metrics of the grid font, in DIPs
// measured from the top of a cell.
type FontMetrics struct {
	Baseline           float32
	UnderlinePos       float32
	UnderlineWidth     float32
	StrikethroughPos   float32
	StrikethroughWidth float32
	// DoubleUnderlinePos holds the tops of the two lines of a double underline.
	DoubleUnderlinePos [2]float32
	// ThinLineWidth is the width of box edges, double underlines and the bar cursor.
	ThinLineWidth float32
}

// MetricsFromFace converts face metrics, measured in device pixels at the
// given DPI, to FontMetrics.
func MetricsFromFace(m text.FaceMetrics, dpi float32) FontMetrics {
	s := BaseDPI / dpi
	return FontMetrics{
		Baseline:           m.Ascent * s,
		UnderlinePos:       m.UnderlinePos * s,
		UnderlineWidth:     m.UnderlineWidth * s,
		StrikethroughPos:   m.StrikethroughPos * s,
		StrikethroughWidth: m.StrikethroughWidth * s,
		DoubleUnderlinePos: [2]float32{m.DoubleUnderlinePos[0] * s, m.DoubleUnderlinePos[1] * s},
		ThinLineWidth:      m.ThinLineWidth * s,
	}
}

// Settings is the global state of a frame. A change must be announced by
// bumping Generations.Settings; changes to the font or the glyph
// rasterization must also bump Generations.Font.
type Settings struct {
	// TargetWidth and TargetHeight are the presentation target size in pixels.
	TargetWidth, TargetHeight int

	DPI float32

	// CellWidth and CellHeight are the cell size in DIPs.
	CellWidth, CellHeight float32

	Font FontMetrics

	Antialiasing text.AntialiasMode

	// Gamma selects the text alpha correction curve, 1.0 to 2.2.
	Gamma float32
	// EnhancedContrast boosts the coverage of light-on-dark text.
	EnhancedContrast float32
	// DashedLineLength is the dash length of hyperlink underlines in DIPs.
	DashedLineLength float32

	BackgroundColor Color
	CursorColor     Color
	SelectionColor  Color

	// CustomShader is an optional WGSL post-processing fragment shader.
	// See internal/gpu/shaders/post.wgsl for the declarations it can use.
	CustomShader string
}

// DefaultSettings returns 80x24 cells of 8x16 DIPs at 96 DPI.
func DefaultSettings() Settings {
	return Settings{
		TargetWidth:  640,
		TargetHeight: 384,
		DPI:          BaseDPI,
		CellWidth:    8,
		CellHeight:   16,
		Font: FontMetrics{
			Baseline:           12,
			UnderlinePos:       13,
			UnderlineWidth:     1,
			StrikethroughPos:   8,
			StrikethroughWidth: 1,
			DoubleUnderlinePos: [2]float32{13, 15},
			ThinLineWidth:      1,
		},
		Antialiasing:     text.AntialiasGrayscale,
		Gamma:            1.8,
		EnhancedContrast: 1,
		DashedLineLength: 2,
		BackgroundColor:  RGB8(0x0C, 0x0C, 0x0C),
		CursorColor:      White,
		SelectionColor:   RGBA8(0xFF, 0xFF, 0xFF, 0x40),
	}
}

// Scale returns the number of device pixels per DIP.
func (s *Settings) Scale() float32 {
	return s.DPI / BaseDPI
}

// CellSize returns the cell size in device pixels.
func (s *Settings) CellSize() (w, h float32) {
	k := s.Scale()
	return s.CellWidth * k, s.CellHeight * k
}

// Columns returns the number of whole cells that fit horizontally.
func (s *Settings) Columns() int {
	w, _ := s.CellSize()
	return int(float32(s.TargetWidth) / w)
}

// Rows returns the number of whole cells that fit vertically.
func (s *Settings) Rows() int {
	_, h := s.CellSize()
	return int(float32(s.TargetHeight) / h)
}

func finitePositive(v float32) bool {
	return v > 0 && !math32.IsInf(v, 1)
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	switch {
	case s.TargetWidth <= 0:
		return &SettingsError{Field: "TargetWidth", Reason: "must be positive"}
	case s.TargetHeight <= 0:
		return &SettingsError{Field: "TargetHeight", Reason: "must be positive"}
	case !finitePositive(s.DPI):
		return &SettingsError{Field: "DPI", Reason: "must be positive"}
	case !finitePositive(s.CellWidth):
		return &SettingsError{Field: "CellWidth", Reason: "must be positive"}
	case !finitePositive(s.CellHeight):
		return &SettingsError{Field: "CellHeight", Reason: "must be positive"}
	case s.Antialiasing > text.AntialiasAliased:
		return &SettingsError{Field: "Antialiasing", Reason: "unknown mode"}
	case math32.IsNaN(s.Gamma) || s.Gamma < 0:
		return &SettingsError{Field: "Gamma", Reason: "must be non-negative"}
	case math32.IsNaN(s.EnhancedContrast) || s.EnhancedContrast < 0:
		return &SettingsError{Field: "EnhancedContrast", Reason: "must be non-negative"}
	case math32.IsNaN(s.DashedLineLength) || s.DashedLineLength < 0:
		return &SettingsError{Field: "DashedLineLength", Reason: "must be non-negative"}
	}
	return nil
}
