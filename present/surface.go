package present

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// SurfaceOption configures a Surface.
type SurfaceOption func(*surfaceOptions)

type surfaceOptions struct {
	presentMode gputypes.PresentMode
	alphaMode   gputypes.CompositeAlphaMode
	latency     int
	logger      *slog.Logger
}

// WithPresentMode selects the present mode. The default is FIFO (vsync).
func WithPresentMode(m gputypes.PresentMode) SurfaceOption {
	return func(o *surfaceOptions) { o.presentMode = m }
}

// WithAlphaMode selects how the compositor treats the alpha channel.
func WithAlphaMode(m gputypes.CompositeAlphaMode) SurfaceOption {
	return func(o *surfaceOptions) { o.alphaMode = m }
}

// WithMaxFrameLatency sets the number of frames that may be queued.
func WithMaxFrameLatency(n int) SurfaceOption {
	return func(o *surfaceOptions) { o.latency = n }
}

// WithLogger sets the logger used for reconfiguration events.
func WithLogger(l *slog.Logger) SurfaceOption {
	return func(o *surfaceOptions) { o.logger = l }
}

// Surface presents frames to a window surface.
//
// The surface texture is acquired lazily by Target and released by Present.
// An outdated or lost surface is reconfigured once with the last size before
// the error is reported.
type Surface struct {
	device  hal.Device
	queue   hal.Queue
	surface hal.Surface
	format  gputypes.TextureFormat
	opts    surfaceOptions
	pacer   *Pacer

	width, height int
	configured    bool

	acquired *hal.AcquiredSurfaceTexture
	view     hal.TextureView

	reconfigures int
	destroyed    bool
}

// NewSurface wraps s. The surface is configured by the first UpdateSettings.
func NewSurface(device hal.Device, queue hal.Queue, s hal.Surface, format gputypes.TextureFormat, opts ...SurfaceOption) *Surface {
	o := surfaceOptions{
		presentMode: gputypes.PresentModeFifo,
		alphaMode:   gputypes.CompositeAlphaModeOpaque,
		latency:     DefaultMaxFrameLatency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	return &Surface{
		device:  device,
		queue:   queue,
		surface: s,
		format:  format,
		opts:    o,
		pacer:   NewPacer(queue, o.latency),
	}
}

// UpdateSettings configures the surface for a new size. Reconfiguration is
// skipped when the size is unchanged.
func (s *Surface) UpdateSettings(width, height int) error {
	if s.destroyed {
		return ErrDestroyed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if s.configured && width == s.width && height == s.height {
		return nil
	}
	s.width, s.height = width, height
	return s.configure()
}

func (s *Surface) configure() error {
	s.discard()
	err := s.surface.Configure(s.device, &hal.SurfaceConfiguration{
		Width:       uint32(s.width),
		Height:      uint32(s.height),
		Format:      s.format,
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: s.opts.presentMode,
		AlphaMode:   s.opts.alphaMode,
	})
	if err != nil {
		s.configured = false
		return fmt.Errorf("present: configure surface %dx%d: %w", s.width, s.height, err)
	}
	s.configured = true
	s.reconfigures++
	s.opts.logger.Debug("surface configured", "width", s.width, "height", s.height, "format", s.format)
	return nil
}

// Target acquires the next surface texture and returns a view of it. Calling
// Target again before Present returns the same view.
func (s *Surface) Target() (hal.TextureView, error) {
	if s.destroyed {
		return nil, ErrDestroyed
	}
	if !s.configured {
		return nil, ErrNotConfigured
	}
	if s.view != nil {
		return s.view, nil
	}

	acq, err := s.surface.AcquireTexture(nil)
	if errors.Is(err, hal.ErrSurfaceOutdated) || errors.Is(err, hal.ErrSurfaceLost) {
		s.opts.logger.Warn("surface outdated, reconfiguring", "err", err)
		if cerr := s.configure(); cerr != nil {
			return nil, cerr
		}
		acq, err = s.surface.AcquireTexture(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("present: acquire surface texture: %w", err)
	}

	view, err := s.device.CreateTextureView(acq.Texture, &hal.TextureViewDescriptor{
		Label:         "cellgrid_surface_view",
		Format:        s.format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		s.surface.DiscardTexture(acq.Texture)
		return nil, fmt.Errorf("present: create surface view: %w", err)
	}
	s.acquired, s.view = acq, view
	return view, nil
}

// Present queues the acquired texture for display. A suboptimal surface is
// reconfigured after presenting.
func (s *Surface) Present(ctx context.Context) error {
	if s.acquired == nil {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		s.discard()
		return err
	}
	acq := s.acquired
	s.device.DestroyTextureView(s.view)
	s.acquired, s.view = nil, nil

	if err := s.queue.Present(s.surface, acq.Texture, nil); err != nil {
		if errors.Is(err, hal.ErrSurfaceOutdated) {
			s.opts.logger.Warn("present: surface outdated", "err", err)
			return s.configure()
		}
		return fmt.Errorf("present: %w", err)
	}
	if acq.Suboptimal {
		return s.configure()
	}
	return nil
}

// discard gives back an acquired texture that was never presented.
func (s *Surface) discard() {
	if s.acquired == nil {
		return
	}
	s.device.DestroyTextureView(s.view)
	s.surface.DiscardTexture(s.acquired.Texture)
	s.acquired, s.view = nil, nil
}

// Ready reports whether another frame may be started without waiting.
func (s *Surface) Ready() bool { return s.pacer.Ready() }

// WaitUntilReady blocks until Ready or until ctx is done.
func (s *Surface) WaitUntilReady(ctx context.Context) error { return s.pacer.Wait(ctx) }

// TrackSubmission records the last queue submission of a frame.
func (s *Surface) TrackSubmission(index uint64) { s.pacer.Track(index) }

// Format returns the surface texture format.
func (s *Surface) Format() gputypes.TextureFormat { return s.format }

// Reconfigures returns how many times the surface has been configured.
func (s *Surface) Reconfigures() int { return s.reconfigures }

// Destroy unconfigures the surface. The hal.Surface itself is owned by the
// caller.
func (s *Surface) Destroy() {
	if s.destroyed {
		return
	}
	s.discard()
	if s.configured {
		s.surface.Unconfigure(s.device)
		s.configured = false
	}
	s.destroyed = true
}
