package text

// AntialiasMode selects how glyph coverage is computed.
type AntialiasMode uint8

const (
	// AntialiasGrayscale computes a single coverage value per pixel.
	AntialiasGrayscale AntialiasMode = iota

	// AntialiasClearType computes one coverage value per color channel
	// using horizontal subpixel oversampling.
	AntialiasClearType

	// AntialiasAliased thresholds coverage to fully on or off.
	AntialiasAliased
)

// String returns the string representation of the mode.
func (m AntialiasMode) String() string {
	switch m {
	case AntialiasGrayscale:
		return "Grayscale"
	case AntialiasClearType:
		return "ClearType"
	case AntialiasAliased:
		return "Aliased"
	default:
		return "Unknown"
	}
}

// ParseAntialiasMode parses the names accepted in settings files.
func ParseAntialiasMode(s string) (AntialiasMode, bool) {
	switch s {
	case "", "grayscale", "Grayscale":
		return AntialiasGrayscale, true
	case "cleartype", "ClearType":
		return AntialiasClearType, true
	case "aliased", "Aliased":
		return AntialiasAliased, true
	}
	return AntialiasGrayscale, false
}

// BitmapKind describes the channel layout of a rasterized glyph.
type BitmapKind uint8

const (
	// BitmapGrayscale stores the same coverage in all four channels.
	BitmapGrayscale BitmapKind = iota

	// BitmapSubpixel stores per-channel coverage in RGB and the maximum in A.
	BitmapSubpixel

	// BitmapColor stores premultiplied color texels.
	BitmapColor
)

// GlyphBitmap is a rasterized glyph ready to be copied into the atlas.
type GlyphBitmap struct {
	// Width and Height are the bitmap size in pixels. A zero size means the
	// glyph has no visible ink (space and friends).
	Width, Height int

	// Left and Top locate the top-left texel relative to the pen position on
	// the baseline. Y grows downwards, so Top is usually negative.
	Left, Top int

	Kind BitmapKind

	// Pix holds Height rows of Width RGBA8 premultiplied texels.
	Pix []byte
}

// Empty reports whether the bitmap has no texels.
func (b *GlyphBitmap) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}
