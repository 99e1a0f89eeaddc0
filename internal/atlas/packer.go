package atlas

import (
	"errors"
	"fmt"
)

// Packer errors.
var (
	// ErrExhausted is returned when no shelf can hold the requested size and
	// there is no vertical room left for a new shelf.
	ErrExhausted = errors.New("atlas: texture atlas is exhausted")

	// ErrInvalidSize is returned for non-positive allocation sizes.
	ErrInvalidSize = errors.New("atlas: invalid allocation size")
)

// Default packer settings.
const (
	// DefaultSize is the default atlas dimension (1024x1024).
	DefaultSize = 1024

	// MinSize is the smallest atlas dimension accepted by NewPacker.
	MinSize = 1

	// DefaultPadding is the gap kept between neighbouring regions so that
	// linear sampling never bleeds into an adjacent glyph.
	DefaultPadding = 1
)

// Rect is an allocated region inside the atlas, in texels.
type Rect struct {
	X, Y int
	W, H int
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Overlaps reports whether r and o share at least one texel.
func (r Rect) Overlaps(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// String returns a string representation of the rectangle.
func (r Rect) String() string {
	return fmt.Sprintf("Rect(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

// shelf is one horizontal strip of the atlas.
type shelf struct {
	y      int // top edge
	height int // padded height of the tallest item placed so far
	x      int // next free x
}

// Packer is a first-fit shelf packer over a fixed texture area.
//
// Allocate scans the existing shelves top to bottom and takes the first one
// with enough horizontal room and height; only then does it open a new
// shelf below the last one. The last shelf may grow taller while there is
// room beneath it, which keeps the skyline tight for mixed glyph heights.
//
// Packer is not safe for concurrent use. The renderer owns it exclusively.
type Packer struct {
	width   int
	height  int
	padding int

	shelves []shelf

	count    int
	usedArea int
	epoch    uint64
}

// NewPacker creates a packer for a width x height texture. Padding is the
// number of texels kept free to the right of and below every region.
func NewPacker(width, height, padding int) *Packer {
	if width < MinSize {
		width = MinSize
	}
	if height < MinSize {
		height = MinSize
	}
	if padding < 0 {
		padding = 0
	}
	return &Packer{
		width:   width,
		height:  height,
		padding: padding,
		shelves: make([]shelf, 0, 16),
	}
}

// Allocate reserves a w x h region. It returns ErrExhausted when the region
// cannot be placed in the current epoch.
func (p *Packer) Allocate(w, h int) (Rect, error) {
	if w <= 0 || h <= 0 {
		return Rect{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}

	pw := w + p.padding
	ph := h + p.padding
	// The trailing padding may hang off the texture edge.
	if w > p.width || h > p.height {
		return Rect{}, ErrExhausted
	}

	for i := range p.shelves {
		if p.fits(i, pw, ph) {
			return p.place(i, w, h, pw, ph), nil
		}
	}

	y := 0
	if n := len(p.shelves); n > 0 {
		last := p.shelves[n-1]
		y = last.y + last.height
	}
	if y+h > p.height {
		return Rect{}, ErrExhausted
	}
	p.shelves = append(p.shelves, shelf{y: y})
	return p.place(len(p.shelves)-1, w, h, pw, ph), nil
}

// fits reports whether a padded pw x ph item can go on shelf i.
func (p *Packer) fits(i, pw, ph int) bool {
	s := &p.shelves[i]
	if s.x+pw-p.padding > p.width {
		return false
	}
	if ph <= s.height {
		return true
	}
	// Only the last shelf can grow, and only into free space below it.
	if i != len(p.shelves)-1 {
		return false
	}
	return s.y+ph-p.padding <= p.height
}

func (p *Packer) place(i, w, h, pw, ph int) Rect {
	s := &p.shelves[i]
	r := Rect{X: s.x, Y: s.y, W: w, H: h}
	s.x += pw
	if ph > s.height {
		s.height = ph
	}
	p.count++
	p.usedArea += w * h
	return r
}

// Reset ends the current epoch. Every region handed out so far becomes
// invalid and the whole texture is available again.
func (p *Packer) Reset() {
	p.shelves = p.shelves[:0]
	p.count = 0
	p.usedArea = 0
	p.epoch++
}

// Epoch returns the number of resets performed since creation.
func (p *Packer) Epoch() uint64 { return p.epoch }

// Len returns the number of live regions.
func (p *Packer) Len() int { return p.count }

// Size returns the texture dimensions the packer covers.
func (p *Packer) Size() (width, height int) { return p.width, p.height }

// Utilization returns the fraction of the texture covered by live regions.
func (p *Packer) Utilization() float64 {
	total := p.width * p.height
	if total == 0 {
		return 0
	}
	return float64(p.usedArea) / float64(total)
}
