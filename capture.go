package cellgrid

import (
	"image"

	"github.com/gogpu/cellgrid/internal/quad"
)

// Capture mirrors rendered frames on the CPU.
//
// Every flushed batch is replayed by a CPU rasterizer that applies the same
// shading rules as the GPU pipeline, without gamma and contrast correction
// and without the custom post-processing pass. Captures are meant for
// screenshots, golden images and tests on devices that cannot read back.
type Capture struct {
	raster     *quad.Raster
	background quad.Texture
	atlas      quad.Texture
	frames     uint64
}

// NewCapture creates an empty capture.
func NewCapture() *Capture {
	return &Capture{raster: quad.NewRaster(0, 0)}
}

func (c *Capture) begin(width, height int, clear uint32, dash float32) {
	if c.raster.Width != width || c.raster.Height != height {
		c.raster = quad.NewRaster(width, height)
	}
	for i := range c.raster.Pix {
		c.raster.Pix[i] = clear
	}
	c.raster.DashLength = dash
	c.raster.Background = &c.background
	c.raster.Atlas = &c.atlas
}

func (c *Capture) setBackground(pix []byte, width, height int) {
	c.background.Width, c.background.Height = width, height
	c.background.Pix = append(c.background.Pix[:0], pix[:width*height*4]...)
}

// draw replays b. atlas is shared with the glyph cache and only read.
func (c *Capture) draw(b *quad.Batch, atlas []byte, width, height int) {
	c.atlas = quad.Texture{Width: width, Height: height, Pix: atlas}
	c.raster.DrawBatch(b)
}

func (c *Capture) end() { c.frames++ }

// Frames returns the number of captured frames.
func (c *Capture) Frames() uint64 { return c.frames }

// Size returns the size of the last frame.
func (c *Capture) Size() (width, height int) { return c.raster.Width, c.raster.Height }

// Image returns a copy of the last frame. image.RGBA is premultiplied like
// the frame itself.
func (c *Capture) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.raster.Width, c.raster.Height))
	for i, p := range c.raster.Pix {
		r, g, b, a := quad.Unpack(p)
		img.Pix[i*4+0] = r
		img.Pix[i*4+1] = g
		img.Pix[i*4+2] = b
		img.Pix[i*4+3] = a
	}
	return img
}

// Pixel returns the premultiplied pixel at (x, y) packed as 0xAABBGGRR.
func (c *Capture) Pixel(x, y int) uint32 { return c.raster.At(x, y) }
