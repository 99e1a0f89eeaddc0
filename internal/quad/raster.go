package quad

import "math"

// Texture is an RGBA8 premultiplied image addressed in texels.
type Texture struct {
	Width, Height int
	Pix           []byte
}

func (t *Texture) texel(x, y int) uint32 {
	if x < 0 || y < 0 || x >= t.Width || y >= t.Height {
		return 0
	}
	o := (y*t.Width + x) * 4
	return Pack(t.Pix[o], t.Pix[o+1], t.Pix[o+2], t.Pix[o+3])
}

// Raster is a CPU rendition of the grid pipeline. It evaluates the same
// shading rules as the WGSL shader, minus gamma and contrast correction, and
// is used for frame captures and for checking geometry without a GPU.
//
// Pixels are covered when their center lies inside the quad.
type Raster struct {
	Width, Height int
	// Pix is Width*Height premultiplied 0xAABBGGRR pixels.
	Pix []uint32

	Atlas      *Texture
	Background *Texture
	// DashLength is the length of one dash and one gap, in pixels.
	DashLength float32
}

// NewRaster allocates a transparent w x h target.
func NewRaster(w, h int) *Raster {
	return &Raster{Width: w, Height: h, Pix: make([]uint32, w*h)}
}

// At returns the pixel at (x, y).
func (r *Raster) At(x, y int) uint32 { return r.Pix[y*r.Width+x] }

// DrawBatch draws every instance of b in order, the copy prefix with the
// copy blend and the rest with source-over.
func (r *Raster) DrawBatch(b *Batch) {
	for i, q := range b.Instances() {
		r.Draw(q, i < b.CopyPrefix())
	}
}

// Draw rasterizes a single quad.
func (r *Raster) Draw(q Instance, copyBlend bool) {
	x0 := max(0, int(math.Ceil(float64(q.Position[0])-0.5)))
	y0 := max(0, int(math.Ceil(float64(q.Position[1])-0.5)))
	x1 := min(r.Width, int(math.Ceil(float64(q.Position[2])-0.5)))
	y1 := min(r.Height, int(math.Ceil(float64(q.Position[3])-0.5)))
	if x0 >= x1 || y0 >= y1 {
		return
	}
	w := q.Position[2] - q.Position[0]
	h := q.Position[3] - q.Position[1]

	for y := y0; y < y1; y++ {
		fy := (float32(y) + 0.5 - q.Position[1]) / h
		for x := x0; x < x1; x++ {
			fx := (float32(x) + 0.5 - q.Position[0]) / w
			src := r.shade(q, float32(x)+0.5, fx, fy)
			i := y*r.Width + x
			if copyBlend {
				r.Pix[i] = src
			} else {
				r.Pix[i] = Over(r.Pix[i], src)
			}
		}
	}
}

func (r *Raster) shade(q Instance, px, fx, fy float32) uint32 {
	u := q.TexCoord[0] + (q.TexCoord[2]-q.TexCoord[0])*fx
	v := q.TexCoord[1] + (q.TexCoord[3]-q.TexCoord[1])*fy

	switch q.Shading {
	case ShadingBackground:
		if r.Background == nil {
			return 0
		}
		cx := MirrorIndex(int(math.Floor(float64(u))), r.Background.Width)
		cy := MirrorIndex(int(math.Floor(float64(v))), r.Background.Height)
		return r.Background.texel(cx, cy)
	case ShadingTextGrayscale, ShadingTextClearType, ShadingPassthrough:
		if r.Atlas == nil {
			return 0
		}
		t := r.Atlas.texel(int(u*float32(r.Atlas.Width)), int(v*float32(r.Atlas.Height)))
		if q.Shading == ShadingPassthrough {
			return t
		}
		return modulate(q.Color, t, q.Shading == ShadingTextClearType)
	case ShadingDashedLine:
		if r.DashLength > 0 {
			n := int(math.Floor(float64((px - q.Position[0]) / r.DashLength)))
			if n%2 != 0 {
				return 0
			}
		}
		return q.Color
	case ShadingSolidFill:
		return q.Color
	}
	return 0
}

// modulate scales color by glyph coverage, per channel for subpixel text.
func modulate(color, coverage uint32, perChannel bool) uint32 {
	cr, cg, cb, ca := Unpack(color)
	tr, tg, tb, ta := Unpack(coverage)
	if !perChannel {
		tr, tg, tb = ta, ta, ta
	}
	mul := func(a, b uint8) uint8 { return uint8((uint32(a)*uint32(b) + 127) / 255) }
	return Pack(mul(cr, tr), mul(cg, tg), mul(cb, tb), mul(ca, ta))
}

// MirrorIndex maps an unbounded texel index onto [0, n) the way a
// mirror-repeat sampler does: 0 1 .. n-1 n-1 .. 1 0 0 1 ..
func MirrorIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	period := 2 * n
	m := i % period
	if m < 0 {
		m += period
	}
	if m >= n {
		m = period - 1 - m
	}
	return m
}
