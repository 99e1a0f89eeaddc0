package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/cellgrid"
	"github.com/gogpu/cellgrid/text"
)

// ErrUnsupportedFormat is returned for files that are neither TOML nor YAML.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// ParseError reports a file that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FieldError reports a decoded value that is not acceptable.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: field %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// File is the on-disk form of the renderer settings. Zero values keep the
// value of cellgrid.DefaultSettings.
type File struct {
	Width  int     `toml:"width" yaml:"width"`
	Height int     `toml:"height" yaml:"height"`
	DPI    float32 `toml:"dpi" yaml:"dpi"`

	Cell   Cell   `toml:"cell" yaml:"cell"`
	Font   *Font  `toml:"font" yaml:"font"`
	Text   Text   `toml:"text" yaml:"text"`
	Colors Colors `toml:"colors" yaml:"colors"`

	// Shader is the path of a WGSL post-processing shader, relative to the
	// settings file.
	Shader string `toml:"shader" yaml:"shader"`

	shaderSource string
}

// Cell is the cell size in DIPs.
type Cell struct {
	Width  float32 `toml:"width" yaml:"width"`
	Height float32 `toml:"height" yaml:"height"`
}

// Font holds the decoration metrics in DIPs. When the section is present
// it replaces the default metrics as a whole.
type Font struct {
	Baseline           float32    `toml:"baseline" yaml:"baseline"`
	UnderlinePos       float32    `toml:"underline_pos" yaml:"underline_pos"`
	UnderlineWidth     float32    `toml:"underline_width" yaml:"underline_width"`
	StrikethroughPos   float32    `toml:"strikethrough_pos" yaml:"strikethrough_pos"`
	StrikethroughWidth float32    `toml:"strikethrough_width" yaml:"strikethrough_width"`
	DoubleUnderlinePos [2]float32 `toml:"double_underline_pos" yaml:"double_underline_pos"`
	ThinLineWidth      float32    `toml:"thin_line_width" yaml:"thin_line_width"`
}

// Text holds the glyph rendering parameters.
type Text struct {
	// Antialiasing is "grayscale", "cleartype" or "aliased".
	Antialiasing     string  `toml:"antialiasing" yaml:"antialiasing"`
	Gamma            float32 `toml:"gamma" yaml:"gamma"`
	EnhancedContrast float32 `toml:"enhanced_contrast" yaml:"enhanced_contrast"`
	DashedLineLength float32 `toml:"dashed_line_length" yaml:"dashed_line_length"`
}

// Colors are "#rgb", "#rrggbb" or "#rrggbbaa" strings.
type Colors struct {
	Background string `toml:"background" yaml:"background"`
	Cursor     string `toml:"cursor" yaml:"cursor"`
	Selection  string `toml:"selection" yaml:"selection"`
}

// Load reads a settings file. The format is chosen by extension: .toml,
// .yaml or .yml. Unknown keys are rejected.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	f, err := Decode(data, filepath.Ext(path))
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	if f.Shader != "" {
		sp := f.Shader
		if !filepath.IsAbs(sp) {
			sp = filepath.Join(filepath.Dir(path), sp)
		}
		src, err := os.ReadFile(sp)
		if err != nil {
			return nil, &FieldError{Field: "shader", Err: err}
		}
		f.shaderSource = string(src)
	}
	return f, nil
}

// Decode parses data in the format named by ext, with or without the dot.
func Decode(data []byte, ext string) (*File, error) {
	f := &File{}
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(f); err != nil {
			return nil, &ParseError{Path: "<toml>", Err: err}
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
			return nil, &ParseError{Path: "<yaml>", Err: err}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return f, nil
}

// Settings converts the file to renderer settings on top of
// cellgrid.DefaultSettings. The result is validated.
func (f *File) Settings() (cellgrid.Settings, error) {
	s := cellgrid.DefaultSettings()
	if f.Width != 0 {
		s.TargetWidth = f.Width
	}
	if f.Height != 0 {
		s.TargetHeight = f.Height
	}
	if f.DPI != 0 {
		s.DPI = f.DPI
	}
	if f.Cell.Width != 0 {
		s.CellWidth = f.Cell.Width
	}
	if f.Cell.Height != 0 {
		s.CellHeight = f.Cell.Height
	}
	if f.Font != nil {
		s.Font = cellgrid.FontMetrics(*f.Font)
	}

	if f.Text.Antialiasing != "" {
		mode, ok := text.ParseAntialiasMode(f.Text.Antialiasing)
		if !ok {
			return s, &FieldError{Field: "text.antialiasing", Err: fmt.Errorf("unknown mode %q", f.Text.Antialiasing)}
		}
		s.Antialiasing = mode
	}
	if f.Text.Gamma != 0 {
		s.Gamma = f.Text.Gamma
	}
	if f.Text.EnhancedContrast != 0 {
		s.EnhancedContrast = f.Text.EnhancedContrast
	}
	if f.Text.DashedLineLength != 0 {
		s.DashedLineLength = f.Text.DashedLineLength
	}

	for _, c := range []struct {
		field string
		value string
		dst   *cellgrid.Color
	}{
		{"colors.background", f.Colors.Background, &s.BackgroundColor},
		{"colors.cursor", f.Colors.Cursor, &s.CursorColor},
		{"colors.selection", f.Colors.Selection, &s.SelectionColor},
	} {
		if c.value == "" {
			continue
		}
		v, err := cellgrid.ParseColor(c.value)
		if err != nil {
			return s, &FieldError{Field: c.field, Err: err}
		}
		*c.dst = v
	}

	s.CustomShader = f.shaderSource
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}
