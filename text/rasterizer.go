package text

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// lcdFilter is the FreeType default five-tap LCD filter, in 1/256 units.
var lcdFilter = [5]int{8, 77, 86, 77, 8}

// OutlineRasterizer rasterizes glyph outlines of faces held in a Registry.
//
// OutlineRasterizer is safe for concurrent use as long as the registry is.
type OutlineRasterizer struct {
	registry *Registry
}

// NewOutlineRasterizer creates a rasterizer resolving handles through r.
func NewOutlineRasterizer(r *Registry) *OutlineRasterizer {
	return &OutlineRasterizer{registry: r}
}

// RasterizeGlyph renders one glyph of the face behind h.
//
// Glyphs without ink return a zero-size bitmap and no error.
func (z *OutlineRasterizer) RasterizeGlyph(h FaceHandle, glyph uint16, mode AntialiasMode) (GlyphBitmap, error) {
	face, ok := z.registry.Lookup(h)
	if !ok {
		return GlyphBitmap{}, fmt.Errorf("%w: %v", ErrStaleHandle, h)
	}

	segs, err := face.segments(glyph)
	if err != nil {
		if errors.Is(err, sfnt.ErrColoredGlyph) {
			return GlyphBitmap{}, fmt.Errorf("%w: glyph %d", ErrColorGlyph, glyph)
		}
		return GlyphBitmap{}, fmt.Errorf("text: load glyph %d: %w", glyph, err)
	}

	b := segs.Bounds()
	minX, minY := b.Min.X.Floor(), b.Min.Y.Floor()
	maxX, maxY := b.Max.X.Ceil(), b.Max.Y.Ceil()
	if len(segs) == 0 || maxX <= minX || maxY <= minY {
		return GlyphBitmap{}, nil
	}

	switch mode {
	case AntialiasClearType:
		return rasterizeSubpixel(segs, minX, minY, maxX-minX, maxY-minY), nil
	default:
		bm := rasterizeGray(segs, minX, minY, maxX-minX, maxY-minY)
		if mode == AntialiasAliased {
			for i, v := range bm.Pix {
				if v >= 0x80 {
					bm.Pix[i] = 0xFF
				} else {
					bm.Pix[i] = 0
				}
			}
		}
		return bm, nil
	}
}

func rasterizeGray(segs sfnt.Segments, minX, minY, w, h int) GlyphBitmap {
	mask := coverage(segs, float32(-minX), float32(-minY), 1, w, h)

	pix := make([]byte, w*h*4)
	for i, a := range mask.Pix {
		pix[i*4+0] = a
		pix[i*4+1] = a
		pix[i*4+2] = a
		pix[i*4+3] = a
	}
	return GlyphBitmap{
		Width:  w,
		Height: h,
		Left:   minX,
		Top:    minY,
		Kind:   BitmapGrayscale,
		Pix:    pix,
	}
}

// rasterizeSubpixel oversamples horizontally by three and filters the
// result so that each output channel receives its own coverage. The filter
// spreads ink by one pixel on each side, so the bitmap is two pixels wider
// than the outline.
func rasterizeSubpixel(segs sfnt.Segments, minX, minY, w, h int) GlyphBitmap {
	outW := w + 2
	subW := outW * 3
	mask := coverage(segs, float32(-minX+1)*3, float32(-minY), 3, subW, h)

	pix := make([]byte, outW*h*4)
	for y := 0; y < h; y++ {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+subW]
		for x := 0; x < outW; x++ {
			var rgb [3]byte
			for c := 0; c < 3; c++ {
				center := x*3 + c
				sum := 0
				for k := -2; k <= 2; k++ {
					if s := center + k; s >= 0 && s < subW {
						sum += int(row[s]) * lcdFilter[k+2]
					}
				}
				if sum > 255*256 {
					sum = 255 * 256
				}
				rgb[c] = byte(sum >> 8)
			}
			o := (y*outW + x) * 4
			pix[o+0] = rgb[0]
			pix[o+1] = rgb[1]
			pix[o+2] = rgb[2]
			pix[o+3] = max(rgb[0], rgb[1], rgb[2])
		}
	}
	return GlyphBitmap{
		Width:  outW,
		Height: h,
		Left:   minX - 1,
		Top:    minY,
		Kind:   BitmapSubpixel,
		Pix:    pix,
	}
}

// coverage fills the outline into a w x h alpha mask. Outline x coordinates
// are scaled by sx and then translated by dx; y is translated by dy.
func coverage(segs sfnt.Segments, dx, dy, sx float32, w, h int) *image.Alpha {
	r := vector.NewRasterizer(w, h)
	r.DrawOp = draw.Src

	pt := func(p fixed.Point26_6) (float32, float32) {
		return float32(p.X)/64*sx + dx, float32(p.Y)/64 + dy
	}
	open := false
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			if open {
				r.ClosePath()
			}
			x, y := pt(s.Args[0])
			r.MoveTo(x, y)
			open = true
		case sfnt.SegmentOpLineTo:
			x, y := pt(s.Args[0])
			r.LineTo(x, y)
		case sfnt.SegmentOpQuadTo:
			bx, by := pt(s.Args[0])
			cx, cy := pt(s.Args[1])
			r.QuadTo(bx, by, cx, cy)
		case sfnt.SegmentOpCubeTo:
			bx, by := pt(s.Args[0])
			cx, cy := pt(s.Args[1])
			ex, ey := pt(s.Args[2])
			r.CubeTo(bx, by, cx, cy, ex, ey)
		}
	}
	if open {
		r.ClosePath()
	}

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	r.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask
}
