package gpu

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
)

// ConstantsSize is the byte size of the GridConstants uniform block:
// position_scale (vec2) + pad (vec2) + gamma_ratios (vec4) +
// enhanced_contrast (f32) + dashed_line_length (f32) + pad (vec2).
const ConstantsSize = 48

// Constants mirrors the GridConstants uniform block of grid.wgsl.
type Constants struct {
	Width, Height    float32
	GammaRatios      [4]float32
	EnhancedContrast float32
	DashedLineLength float32
}

// Encode writes the uniform block into dst, which must hold ConstantsSize bytes.
func (c *Constants) Encode(dst []byte) {
	_ = dst[ConstantsSize-1]
	clear(dst[:ConstantsSize])
	put := func(off int, v float32) {
		binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(v))
	}
	if c.Width > 0 {
		put(0, 2/c.Width)
	}
	if c.Height > 0 {
		put(4, -2/c.Height)
	}
	for i, g := range c.GammaRatios {
		put(16+i*4, g)
	}
	put(32, c.EnhancedContrast)
	put(36, c.DashedLineLength)
}

// gammaIncorrectTargetRatios holds the DirectWrite alpha correction
// coefficients for gamma 1.0 through 2.2 in steps of 0.1.
var gammaIncorrectTargetRatios = [13][4]float32{
	{0.0000 / 4, 0.0000 / 4, 0.0000 / 4, 0.0000 / 4}, // gamma = 1.0
	{0.0166 / 4, -0.0807 / 4, 0.2227 / 4, -0.0751 / 4},
	{0.0350 / 4, -0.1760 / 4, 0.4325 / 4, -0.1370 / 4},
	{0.0543 / 4, -0.2821 / 4, 0.6302 / 4, -0.1876 / 4},
	{0.0739 / 4, -0.3963 / 4, 0.8167 / 4, -0.2287 / 4},
	{0.0933 / 4, -0.5161 / 4, 0.9926 / 4, -0.2616 / 4}, // gamma = 1.5
	{0.1121 / 4, -0.6395 / 4, 1.1588 / 4, -0.2877 / 4},
	{0.1300 / 4, -0.7649 / 4, 1.3159 / 4, -0.3080 / 4},
	{0.1469 / 4, -0.8911 / 4, 1.4644 / 4, -0.3234 / 4},
	{0.1627 / 4, -1.0170 / 4, 1.6051 / 4, -0.3347 / 4},
	{0.1773 / 4, -1.1420 / 4, 1.7385 / 4, -0.3426 / 4}, // gamma = 2.0
	{0.1908 / 4, -1.2652 / 4, 1.8650 / 4, -0.3476 / 4},
	{0.2031 / 4, -1.3864 / 4, 1.9851 / 4, -0.3501 / 4}, // gamma = 2.2
}

// GammaRatios returns the alpha correction coefficients for gamma, which is
// clamped to [1.0, 2.2] and rounded to the nearest tenth.
func GammaRatios(gamma float32) [4]float32 {
	if math32.IsNaN(gamma) {
		return gammaIncorrectTargetRatios[0]
	}
	i := int(math32.Round(math32.Max(0, math32.Min(12, gamma*10-10))))
	return gammaIncorrectTargetRatios[i]
}
