// Package quad builds the per-frame instance stream drawn by the grid
// pipeline. Every primitive the renderer emits is one Instance; the order of
// instances in a Batch is the order they are painted in.
package quad

import (
	"encoding/binary"
	"math"
)

// ShadingType selects the per-pixel rule the fragment shader applies to a quad.
// The numeric values are shared with the WGSL shader.
type ShadingType uint32

const (
	// ShadingBackground samples the per-cell background bitmap.
	ShadingBackground ShadingType = iota
	// ShadingTextGrayscale multiplies the color by single-channel glyph coverage.
	ShadingTextGrayscale
	// ShadingTextClearType blends per channel using subpixel glyph coverage.
	ShadingTextClearType
	// ShadingPassthrough copies premultiplied texels from the atlas unchanged.
	ShadingPassthrough
	// ShadingDashedLine draws a horizontally dashed solid color.
	ShadingDashedLine
	// ShadingSolidFill fills the quad with its color.
	ShadingSolidFill

	shadingCount
)

// String returns the string representation of the shading type.
func (s ShadingType) String() string {
	switch s {
	case ShadingBackground:
		return "Background"
	case ShadingTextGrayscale:
		return "TextGrayscale"
	case ShadingTextClearType:
		return "TextClearType"
	case ShadingPassthrough:
		return "Passthrough"
	case ShadingDashedLine:
		return "DashedLine"
	case ShadingSolidFill:
		return "SolidFill"
	default:
		return "Unknown"
	}
}

// Valid reports whether s is one of the defined shading types.
func (s ShadingType) Valid() bool { return s < shadingCount }

// InstanceSize is the size of one encoded instance in bytes:
// position (4 x f32) + texcoord (4 x f32) + color (u32) + shading (u32) + 8 bytes padding.
const InstanceSize = 48

// Instance is one quad.
type Instance struct {
	// Position is left, top, right, bottom in target pixels.
	Position [4]float32
	// TexCoord is u0, v0, u1, v1. For glyphs it is the normalized atlas
	// rectangle; for the background quad it is the covered area in cells.
	TexCoord [4]float32
	// Color is premultiplied RGBA8 packed as 0xAABBGGRR.
	Color   uint32
	Shading ShadingType
}

// Encode writes the instance into dst, which must hold InstanceSize bytes.
func (q *Instance) Encode(dst []byte) {
	_ = dst[InstanceSize-1]
	for i, v := range q.Position {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
	for i, v := range q.TexCoord {
		binary.LittleEndian.PutUint32(dst[16+i*4:], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint32(dst[32:], q.Color)
	binary.LittleEndian.PutUint32(dst[36:], uint32(q.Shading))
	clear(dst[40:48])
}

// Decode reads an instance previously written by Encode.
func Decode(src []byte) Instance {
	_ = src[InstanceSize-1]
	var q Instance
	for i := range q.Position {
		q.Position[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	for i := range q.TexCoord {
		q.TexCoord[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[16+i*4:]))
	}
	q.Color = binary.LittleEndian.Uint32(src[32:])
	q.Shading = ShadingType(binary.LittleEndian.Uint32(src[36:]))
	return q
}
