package cellgrid

import (
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/cellgrid/internal/atlas"
	"github.com/gogpu/cellgrid/text"
)

// Rasterizer turns glyphs into atlas-ready bitmaps.
// *text.OutlineRasterizer implements it.
type Rasterizer interface {
	RasterizeGlyph(face text.FaceHandle, glyph uint16, mode text.AntialiasMode) (text.GlyphBitmap, error)
}

// Option configures a Renderer during creation.
//
// Example:
//
//	r, err := cellgrid.NewRenderer(device, queue, presenter,
//	    cellgrid.WithRegistry(registry),
//	    cellgrid.WithAtlasSize(2048, 2048))
type Option func(*options)

type options struct {
	atlasWidth, atlasHeight int
	registry                *text.Registry
	rasterizer              Rasterizer
	format                  gputypes.TextureFormat
	capture                 *Capture
	now                     func() time.Time
}

func defaultOptions() options {
	return options{
		atlasWidth:  atlas.DefaultSize,
		atlasHeight: atlas.DefaultSize,
		format:      gputypes.TextureFormatBGRA8Unorm,
		now:         time.Now,
	}
}

// WithAtlasSize sets the glyph atlas size in texels. The default is
// 1024x1024.
func WithAtlasSize(width, height int) Option {
	return func(o *options) {
		o.atlasWidth, o.atlasHeight = width, height
	}
}

// WithRegistry sets the face registry that issues the handles used in
// glyph runs. Without it the renderer creates its own; see Renderer.Registry.
func WithRegistry(r *text.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithRasterizer replaces the outline rasterizer.
func WithRasterizer(r Rasterizer) Option {
	return func(o *options) {
		o.rasterizer = r
	}
}

// WithFormat sets the color format of the presentation target. The default
// is BGRA8Unorm.
func WithFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		o.format = f
	}
}

// WithCapture mirrors every frame into c on the CPU.
func WithCapture(c *Capture) Option {
	return func(o *options) {
		o.capture = c
	}
}

// WithClock sets the time source of the custom shader's time constant.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
