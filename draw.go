package cellgrid

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/cellgrid/internal/gpu"
	"github.com/gogpu/cellgrid/internal/quad"
)

// uploadBackground converts the per-cell bitmap to premultiplied texels
// and uploads it. Without a bitmap the background is one texel of the
// default background color.
func (r *Renderer) uploadBackground(res *gpu.Resources, bg *BackgroundBitmap) error {
	w, h := 1, 1
	if bg != nil {
		w, h = bg.Width, bg.Height
	}
	n := w * h * 4
	if cap(r.bgPix) < n {
		r.bgPix = make([]byte, n)
	}
	pix := r.bgPix[:n]
	put := func(i int, c Color) {
		pr, pg, pb, pa := quad.Unpack(c.Premultiplied())
		pix[i*4+0], pix[i*4+1], pix[i*4+2], pix[i*4+3] = pr, pg, pb, pa
	}
	if bg == nil {
		put(0, r.settings.BackgroundColor)
	} else {
		for i, c := range bg.Pix[:w*h] {
			put(i, c)
		}
	}

	if err := res.UploadBackground(pix, w, h); err != nil {
		return dev(err)
	}
	if r.capture != nil {
		r.capture.setBackground(pix, w, h)
	}
	return nil
}

// drawBackground covers the target with one opaque quad. Its texture
// coordinates count cells, so each background texel spans exactly one cell
// and the mirror-repeat sampler extends the edge cells past the bitmap.
func (r *Renderer) drawBackground() {
	g := &r.geo
	w, h := float32(g.width), float32(g.height)
	r.batch.AppendOpaque(quad.Instance{
		Position: [4]float32{0, 0, w, h},
		TexCoord: [4]float32{0, 0, w / g.cellW, h / g.cellH},
		Shading:  quad.ShadingBackground,
	})
}

// drawText appends one quad per visible glyph. Each run is split into
// sub-runs of one foreground color; fully transparent sub-runs only move
// the pen.
func (r *Renderer) drawText(res *gpu.Resources, rows []Row) error {
	g := &r.geo
	baseline := r.settings.Font.Baseline * g.scale

	for y := range rows {
		baseY := float32(y)*g.cellH + baseline
		for ri := range rows[y].GlyphRuns {
			run := &rows[y].GlyphRuns[ri]
			x := float32(run.Column) * g.cellW
			n := len(run.Glyphs)

			for i := 0; i < n; {
				fg := run.color(i)
				j := i + 1
				for j < n && run.color(j) == fg {
					j++
				}
				r.frameSubRuns++

				if fg.Alpha() == 0 {
					for ; i < j; i++ {
						x += run.Advances[i]
					}
					continue
				}
				color := fg.Premultiplied()
				for ; i < j; i++ {
					e, err := r.glyph(res, run.Face, run.Glyphs[i])
					if err != nil {
						return err
					}
					if !e.Empty() {
						off := run.offset(i)
						left := math32.Round(x+off[0]) + float32(e.Offset[0])
						top := math32.Round(baseY+off[1]) + float32(e.Offset[1])
						r.batch.Append(quad.Instance{
							Position: [4]float32{left, top, left + float32(e.Size[0]), top + float32(e.Size[1])},
							TexCoord: e.TexCoord,
							Color:    color,
							Shading:  e.Shading,
						})
					}
					x += run.Advances[i]
				}
			}
		}
	}
	return nil
}

// fill appends a solid rectangle given in pixels.
func (r *Renderer) fill(left, top, right, bottom float32, c Color, shading quad.ShadingType) {
	if right <= left || bottom <= top || c.Alpha() == 0 {
		return
	}
	r.batch.Append(quad.Instance{
		Position: [4]float32{left, top, right, bottom},
		Color:    c.Premultiplied(),
		Shading:  shading,
	})
}

// line returns the pixel span of a horizontal line whose top lies pos DIPs
// below cellTop and whose height is width DIPs. Lines are snapped to whole
// pixels and are at least one pixel thick.
func (r *Renderer) line(cellTop, pos, width float32) (top, bottom float32) {
	s := r.geo.scale
	top = cellTop + math32.Round(pos*s)
	return top, top + r.thickness(width)
}

// thickness converts a line width in DIPs to whole pixels, at least one.
func (r *Renderer) thickness(width float32) float32 {
	return math32.Max(1, math32.Round(width*r.geo.scale))
}

// drawGridlines draws the decorations of every gridline range. Vertical
// box edges are drawn once per cell, everything else spans the range.
func (r *Renderer) drawGridlines(rows []Row) {
	g := &r.geo
	fm := &r.settings.Font
	thin := r.thickness(fm.ThinLineWidth)

	for y := range rows {
		top := float32(y) * g.cellH
		bottom := top + g.cellH
		for i := range rows[y].Gridlines {
			gl := &rows[y].Gridlines[i]
			lines := gl.mustLines()
			left := float32(gl.From) * g.cellW
			right := float32(gl.To) * g.cellW

			if lines.Has(LineLeft) {
				for c := gl.From; c < gl.To; c++ {
					x := float32(c) * g.cellW
					r.fill(x, top, x+thin, bottom, gl.Color, quad.ShadingSolidFill)
				}
			}
			if lines.Has(LineTop) {
				r.fill(left, top, right, top+thin, gl.Color, quad.ShadingSolidFill)
			}
			if lines.Has(LineRight) {
				for c := gl.To; c > gl.From; c-- {
					x := float32(c) * g.cellW
					r.fill(x-thin, top, x, bottom, gl.Color, quad.ShadingSolidFill)
				}
			}
			if lines.Has(LineBottom) {
				r.fill(left, bottom-thin, right, bottom, gl.Color, quad.ShadingSolidFill)
			}

			uc := gl.underlineColor()
			if lines.Has(LineUnderline) {
				t, b := r.line(top, fm.UnderlinePos, fm.UnderlineWidth)
				r.fill(left, t, right, b, uc, quad.ShadingSolidFill)
			}
			if lines.Has(LineHyperlinkUnderline) {
				t, b := r.line(top, fm.UnderlinePos, fm.UnderlineWidth)
				r.fill(left, t, right, b, uc, quad.ShadingDashedLine)
			}
			if lines.Has(LineDoubleUnderline) {
				for _, pos := range fm.DoubleUnderlinePos {
					t, b := r.line(top, pos, fm.ThinLineWidth)
					r.fill(left, t, right, b, uc, quad.ShadingSolidFill)
				}
			}
			if lines.Has(LineStrikethrough) {
				t, b := r.line(top, fm.StrikethroughPos, fm.StrikethroughWidth)
				r.fill(left, t, right, b, gl.Color, quad.ShadingSolidFill)
			}
		}
	}
}

// drawCursor draws the cursor of every row that has one. Unknown styles
// draw nothing.
func (r *Renderer) drawCursor(rows []Row) {
	g := &r.geo
	fm := &r.settings.Font
	thin := r.thickness(fm.ThinLineWidth)

	for y := range rows {
		c := rows[y].Cursor
		if c == nil || c.Columns.Empty() {
			continue
		}
		color := c.Color
		if color == 0 {
			color = r.settings.CursorColor
		}
		left := float32(c.Columns.From) * g.cellW
		right := float32(c.Columns.To) * g.cellW
		top := float32(y) * g.cellH
		bottom := top + g.cellH

		switch c.Style {
		case CursorLegacy:
			pct := min(max(c.HeightPercentage, 1), 100)
			h := math32.Max(1, math32.Round(g.cellH*float32(pct)/100))
			r.fill(left, bottom-h, right, bottom, color, quad.ShadingSolidFill)
		case CursorVerticalBar:
			r.fill(left, top, left+thin, bottom, color, quad.ShadingSolidFill)
		case CursorUnderscore:
			t, b := r.line(top, fm.UnderlinePos, fm.UnderlineWidth)
			r.fill(left, t, right, b, color, quad.ShadingSolidFill)
		case CursorEmptyBox:
			r.fill(left, top, right, top+thin, color, quad.ShadingSolidFill)
			r.fill(left, bottom-thin, right, bottom, color, quad.ShadingSolidFill)
			r.fill(left, top+thin, left+thin, bottom-thin, color, quad.ShadingSolidFill)
			r.fill(right-thin, top+thin, right, bottom-thin, color, quad.ShadingSolidFill)
		case CursorFullBox:
			r.fill(left, top, right, bottom, color, quad.ShadingSolidFill)
		case CursorDoubleUnderscore:
			for _, pos := range fm.DoubleUnderlinePos {
				t, b := r.line(top, pos, fm.ThinLineWidth)
				r.fill(left, t, right, b, color, quad.ShadingSolidFill)
			}
		}
	}
}

// drawSelection fills the selected columns of every row.
func (r *Renderer) drawSelection(rows []Row) {
	g := &r.geo
	for y := range rows {
		sel := rows[y].Selection
		if sel.Empty() {
			continue
		}
		top := float32(y) * g.cellH
		r.fill(float32(sel.From)*g.cellW, top, float32(sel.To)*g.cellW, top+g.cellH,
			r.settings.SelectionColor, quad.ShadingSolidFill)
	}
}
