package present

import (
	"context"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Offscreen presents into a texture owned by the presenter. Present only
// counts frames; the texture keeps the last frame until the next one is
// drawn.
type Offscreen struct {
	device hal.Device
	format gputypes.TextureFormat
	pacer  *Pacer

	width, height int
	tex           hal.Texture
	view          hal.TextureView

	frames    uint64
	destroyed bool
}

// NewOffscreen creates an unconfigured offscreen presenter. The texture is
// created by the first UpdateSettings. An undefined format selects BGRA8.
func NewOffscreen(device hal.Device, queue hal.Queue, format gputypes.TextureFormat) *Offscreen {
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	return &Offscreen{
		device: device,
		format: format,
		pacer:  NewPacer(queue, DefaultMaxFrameLatency),
	}
}

// UpdateSettings resizes the target. The texture is only recreated when the
// size changes.
func (o *Offscreen) UpdateSettings(width, height int) error {
	if o.destroyed {
		return ErrDestroyed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if o.tex != nil && width == o.width && height == o.height {
		return nil
	}
	o.release()

	tex, err := o.device.CreateTexture(&hal.TextureDescriptor{
		Label: "cellgrid_offscreen",
		Size: hal.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        o.format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("present: create offscreen texture %dx%d: %w", width, height, err)
	}
	view, err := o.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "cellgrid_offscreen_view",
		Format:        o.format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		o.device.DestroyTexture(tex)
		return fmt.Errorf("present: create offscreen view: %w", err)
	}
	o.tex, o.view = tex, view
	o.width, o.height = width, height
	return nil
}

// Target returns the view of the offscreen texture.
func (o *Offscreen) Target() (hal.TextureView, error) {
	if o.destroyed {
		return nil, ErrDestroyed
	}
	if o.view == nil {
		return nil, ErrNotConfigured
	}
	return o.view, nil
}

// Present finishes the frame.
func (o *Offscreen) Present(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.view == nil {
		return ErrNotConfigured
	}
	o.frames++
	return nil
}

// Ready reports whether another frame may be started without waiting.
func (o *Offscreen) Ready() bool { return o.pacer.Ready() }

// WaitUntilReady blocks until Ready or until ctx is done.
func (o *Offscreen) WaitUntilReady(ctx context.Context) error { return o.pacer.Wait(ctx) }

// TrackSubmission records the last queue submission of a frame.
func (o *Offscreen) TrackSubmission(index uint64) { o.pacer.Track(index) }

// Texture returns the offscreen texture, or nil before UpdateSettings.
func (o *Offscreen) Texture() hal.Texture { return o.tex }

// Size returns the target size in pixels.
func (o *Offscreen) Size() (width, height int) { return o.width, o.height }

// Format returns the texture format.
func (o *Offscreen) Format() gputypes.TextureFormat { return o.format }

// Frames returns the number of presented frames.
func (o *Offscreen) Frames() uint64 { return o.frames }

func (o *Offscreen) release() {
	if o.view != nil {
		o.device.DestroyTextureView(o.view)
		o.view = nil
	}
	if o.tex != nil {
		o.device.DestroyTexture(o.tex)
		o.tex = nil
	}
}

// Destroy releases the texture. The presenter cannot be used afterwards.
func (o *Offscreen) Destroy() {
	o.release()
	o.destroyed = true
}
