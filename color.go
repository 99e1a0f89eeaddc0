package cellgrid

import (
	"fmt"
	"image/color"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/gogpu/cellgrid/internal/quad"
)

// Color is a straight (non-premultiplied) RGBA8 color packed as 0xAABBGGRR,
// the byte order of an RGBA8 texel in memory.
//
// Color implements [color.Color].
type Color uint32

// Common colors.
const (
	Transparent Color = 0x00000000
	Black       Color = 0xFF000000
	White       Color = 0xFFFFFFFF
)

// RGBA8 creates a color from straight 8-bit channels.
func RGBA8(r, g, b, a uint8) Color {
	return Color(quad.Pack(r, g, b, a))
}

// RGB8 creates an opaque color.
func RGB8(r, g, b uint8) Color {
	return RGBA8(r, g, b, 0xFF)
}

// Channels returns the straight 8-bit channels.
func (c Color) Channels() (r, g, b, a uint8) {
	return quad.Unpack(uint32(c))
}

// Alpha returns the alpha channel.
func (c Color) Alpha() uint8 { return uint8(c >> 24) }

// WithAlpha returns c with its alpha channel replaced.
func (c Color) WithAlpha(a uint8) Color {
	return c&0x00FFFFFF | Color(a)<<24
}

// Premultiplied returns c premultiplied by its alpha, packed the way the
// shader expects instance colors.
func (c Color) Premultiplied() uint32 {
	return quad.Premultiply(uint32(c))
}

// Float returns the premultiplied channels in [0, 1].
func (c Color) Float() [4]float32 {
	r, g, b, a := quad.Unpack(c.Premultiplied())
	return [4]float32{float32(r) / 255, float32(g) / 255, float32(b) / 255, float32(a) / 255}
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	pr, pg, pb, pa := quad.Unpack(c.Premultiplied())
	return uint32(pr) * 0x101, uint32(pg) * 0x101, uint32(pb) * 0x101, uint32(pa) * 0x101
}

// Hex returns the color as "#rrggbb", or "#rrggbbaa" when not opaque.
func (c Color) Hex() string {
	r, g, b, a := c.Channels()
	if a == 0xFF {
		return fmt.Sprintf("#%02x%02x%02x", r, g, b)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", r, g, b, a)
}

// String returns the hex form of the color.
func (c Color) String() string { return c.Hex() }

// FromColor converts any color.Color.
func FromColor(c color.Color) Color {
	if v, ok := c.(Color); ok {
		return v
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGBA8(n.R, n.G, n.B, n.A)
}

// ParseColor parses "#rgb", "#rrggbb" and "#rrggbbaa".
func ParseColor(s string) (Color, error) {
	a := uint8(0xFF)
	if len(s) == 9 {
		v, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("cellgrid: invalid color alpha %q: %w", s, err)
		}
		a = uint8(v)
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return 0, fmt.Errorf("cellgrid: invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return RGBA8(r, g, b, a), nil
}
