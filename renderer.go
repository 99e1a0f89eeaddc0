package cellgrid

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cellgrid/internal/atlas"
	"github.com/gogpu/cellgrid/internal/glyphcache"
	"github.com/gogpu/cellgrid/internal/gpu"
	"github.com/gogpu/cellgrid/internal/quad"
	"github.com/gogpu/cellgrid/text"
)

// State is the position of a Renderer in its frame cycle.
type State uint8

const (
	// StateUninitialized means no frame has been rendered yet, or the
	// device resources were released after a failure.
	StateUninitialized State = iota
	// StateReady means the resources match the last payload's generations.
	StateReady
	// StateSettingsStale means new settings are being applied.
	StateSettingsStale
	// StatePresented means the last frame was presented.
	StatePresented
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateReady:
		return "Ready"
	case StateSettingsStale:
		return "SettingsStale"
	case StatePresented:
		return "Presented"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// FrameStats describes the last frame and the renderer's history.
type FrameStats struct {
	// Frames is the number of presented frames.
	Frames uint64

	// Instances, Flushes and SubRuns describe the last frame. SubRuns
	// counts runs of consecutive glyphs sharing one color.
	Instances int
	Flushes   int
	SubRuns   int

	// AtlasResets counts atlas clears caused by a full atlas.
	AtlasResets uint64

	GlyphsCached int
	CacheHits    uint64
	CacheMisses  uint64

	// ResourceCreates counts how many times the device resources were built.
	ResourceCreates int
	Submissions     uint64
	UploadedBytes   uint64
}

// deviceError marks a failed GPU call. Such failures release the device
// resources so that the next frame starts from scratch.
type deviceError struct{ err error }

func (e *deviceError) Error() string { return e.err.Error() }
func (e *deviceError) Unwrap() error { return e.err }

func dev(err error) error {
	if err == nil {
		return nil
	}
	return &deviceError{err: err}
}

// geometry is the pixel layout derived from the applied settings.
type geometry struct {
	width, height int
	scale         float32
	cellW, cellH  float32
}

// Renderer draws payloads with one instanced draw call per frame.
//
// Render, SetDevice and Close must be called from one goroutine. Ready,
// WaitUntilReady and DeviceLost may be called from any goroutine.
type Renderer struct {
	opts      options
	presenter Presenter
	registry  *text.Registry
	cache     *glyphcache.Cache
	life      lifecycle
	batch     *quad.Batch
	capture   *Capture

	state        State
	settings     Settings
	haveSettings bool
	geo          geometry

	shaderSource string
	post         *gpu.PostShader
	animated     atomic.Bool

	bgPix []byte

	// Per-frame counters.
	frameResets  int
	frameFlushes int
	frameQuads   int
	frameSubRuns int

	deviceLost atomic.Bool
	start      time.Time
	stats      FrameStats
	closed     bool
}

// NewRenderer creates a renderer drawing with device and queue into the
// targets of presenter. Device resources are created by the first Render.
func NewRenderer(device hal.Device, queue hal.Queue, presenter Presenter, opts ...Option) (*Renderer, error) {
	if device == nil || queue == nil {
		return nil, errors.New("cellgrid: nil device or queue")
	}
	if presenter == nil {
		return nil, errors.New("cellgrid: nil presenter")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = text.NewRegistry()
	}
	if o.rasterizer == nil {
		o.rasterizer = text.NewOutlineRasterizer(o.registry)
	}
	if o.format == gputypes.TextureFormatUndefined {
		o.format = gputypes.TextureFormatBGRA8Unorm
	}

	cache, err := glyphcache.New(glyphcache.Config{
		AtlasWidth:   o.atlasWidth,
		AtlasHeight:  o.atlasHeight,
		Padding:      atlas.DefaultPadding,
		Antialiasing: text.AntialiasGrayscale,
	}, o.rasterizer)
	if err != nil {
		return nil, fmt.Errorf("cellgrid: %w", err)
	}

	return &Renderer{
		opts:      o,
		presenter: presenter,
		registry:  o.registry,
		cache:     cache,
		life: lifecycle{
			device: device,
			queue:  queue,
			cfg: gpu.Config{
				Format:      o.format,
				AtlasWidth:  o.atlasWidth,
				AtlasHeight: o.atlasHeight,
			},
		},
		batch:   quad.NewBatch(0),
		capture: o.capture,
		start:   o.now(),
	}, nil
}

// Render draws and presents one frame.
//
// A canceled ctx skips the frame before any work is done; a ctx canceled
// while presenting drops the frame but keeps the device resources. A glyph atlas
// that fills up is cleared and the frame continues once; a second overflow
// returns ErrAtlasExhausted. GPU failures release the device resources and
// are returned; a lost device is reported as ErrDeviceLost.
//
// When the custom shader fails to compile the frame is still drawn and
// presented without it, and Render returns an error wrapping
// ErrInvalidShader.
func (r *Renderer) Render(ctx context.Context, p *Payload) error {
	if r.closed {
		return ErrClosed
	}
	if p == nil {
		return ErrNilPayload
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if r.deviceLost.Swap(false) {
		Logger().Warn("cellgrid: device lost, releasing resources")
		r.life.onDeviceLost()
		r.state = StateUninitialized
	}

	res, err := r.life.ensure()
	if err != nil {
		return r.fail(dev(err))
	}
	if r.state == StateUninitialized {
		r.state = StateReady
	}

	var shaderErr error
	if r.life.stale(resSettings, p.Generations.Settings) {
		r.state = StateSettingsStale
		if shaderErr, err = r.applySettings(res, p); err != nil {
			return r.fail(err)
		}
		r.life.apply(resSettings, p.Generations.Settings)
	}
	if !r.haveSettings {
		return ErrNotReady
	}
	if r.life.stale(resGlyphs, p.Generations.Font) {
		r.cache.Clear()
		r.life.apply(resGlyphs, p.Generations.Font)
		Logger().Info("cellgrid: glyph cache cleared", "font_generation", p.Generations.Font)
	}
	if r.life.stale(resBackground, p.Generations.Misc) {
		if err := r.uploadBackground(res, p.Background); err != nil {
			return r.fail(err)
		}
		r.life.apply(resBackground, p.Generations.Misc)
	}
	r.state = StateReady

	if err := r.drawFrame(res, p); err != nil {
		return r.fail(err)
	}
	if err := r.presenter.Present(ctx); err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			// The frame is skipped; the device resources stay valid.
			return err
		}
		return r.fail(dev(err))
	}
	r.state = StatePresented
	r.stats.Frames++
	if r.capture != nil {
		r.capture.end()
	}
	return shaderErr
}

// drawFrame records and submits the whole frame.
func (r *Renderer) drawFrame(res *gpu.Resources, p *Payload) (err error) {
	target, err := r.presenter.Target()
	if err != nil {
		return dev(err)
	}
	bg := r.settings.BackgroundColor.Float()
	clear := gputypes.Color{R: float64(bg[0]), G: float64(bg[1]), B: float64(bg[2]), A: float64(bg[3])}
	if err := res.BeginFrame(target, r.geo.width, r.geo.height, clear); err != nil {
		return dev(err)
	}
	defer func() {
		if err != nil {
			res.AbortFrame()
		}
	}()

	r.frameResets, r.frameFlushes, r.frameQuads, r.frameSubRuns = 0, 0, 0, 0
	r.batch.Reset()
	if r.capture != nil {
		r.capture.begin(r.geo.width, r.geo.height, r.settings.BackgroundColor.Premultiplied(),
			r.settings.DashedLineLength*r.geo.scale)
	}

	r.drawBackground()
	if err := r.drawText(res, p.Rows); err != nil {
		return err
	}
	r.drawGridlines(p.Rows)
	r.drawCursor(p.Rows)
	r.drawSelection(p.Rows)
	if err := r.flush(res); err != nil {
		return err
	}

	if res.PostShaderActive() {
		err := res.WritePostConstants(gpu.PostConstants{
			Time:       float32(r.opts.now().Sub(r.start).Seconds()),
			Scale:      r.geo.scale,
			Width:      float32(r.geo.width),
			Height:     float32(r.geo.height),
			Background: bg,
		})
		if err != nil {
			return dev(err)
		}
	}
	if err := res.EndFrame(); err != nil {
		return dev(err)
	}
	if t, ok := r.presenter.(submissionTracker); ok {
		t.TrackSubmission(res.LastSubmission())
	}

	r.stats.Instances = r.frameQuads
	r.stats.Flushes = r.frameFlushes
	r.stats.SubRuns = r.frameSubRuns
	return nil
}

// flush uploads new atlas texels and draws everything batched so far.
func (r *Renderer) flush(res *gpu.Resources) error {
	if dirty, ok := r.cache.Dirty(); ok {
		if err := res.UploadAtlas(r.cache.Pixels(), dirty); err != nil {
			return dev(err)
		}
		Logger().Debug("cellgrid: atlas upload", "rect", dirty)
		r.cache.MarkClean()
	}
	if r.capture != nil {
		cfg := r.cache.Config()
		r.capture.draw(r.batch, r.cache.Pixels(), cfg.AtlasWidth, cfg.AtlasHeight)
	}
	if err := res.Flush(r.batch); err != nil {
		return dev(err)
	}
	r.frameFlushes++
	r.frameQuads += r.batch.Len()
	r.batch.Reset()
	return nil
}

// glyph resolves the atlas entry of a glyph. A full atlas is handled once
// per frame: quads batched so far are drawn while their texels are still
// valid, the cache is cleared and the lookup retried.
func (r *Renderer) glyph(res *gpu.Resources, face text.FaceHandle, id uint16) (glyphcache.Entry, error) {
	e, _, err := r.cache.FindOrInsert(face, id)
	if err == nil || !errors.Is(err, atlas.ErrExhausted) {
		return e, err
	}
	if r.frameResets > 0 {
		return e, fmt.Errorf("%w: %w", ErrAtlasExhausted, err)
	}
	if err := r.flush(res); err != nil {
		return e, err
	}
	r.cache.Clear()
	r.frameResets++
	r.stats.AtlasResets++
	Logger().Warn("cellgrid: glyph atlas full, cleared", "resets", r.stats.AtlasResets)

	e, _, err = r.cache.FindOrInsert(face, id)
	if errors.Is(err, atlas.ErrExhausted) {
		return e, fmt.Errorf("%w: %w", ErrAtlasExhausted, err)
	}
	return e, err
}

// applySettings applies p.Settings, or re-applies the previous settings to
// fresh device resources when the payload carries none. The first return
// value reports a custom shader that failed to compile.
func (r *Renderer) applySettings(res *gpu.Resources, p *Payload) (shaderErr, err error) {
	s := p.Settings
	if s == nil {
		if !r.haveSettings {
			return nil, ErrNotReady
		}
		s = &r.settings
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	prev, had := r.settings, r.haveSettings

	if err := r.presenter.UpdateSettings(s.TargetWidth, s.TargetHeight); err != nil {
		return nil, dev(err)
	}
	scale := s.Scale()
	cellW, cellH := s.CellSize()
	err = res.WriteConstants(gpu.Constants{
		Width:            float32(s.TargetWidth),
		Height:           float32(s.TargetHeight),
		GammaRatios:      gpu.GammaRatios(s.Gamma),
		EnhancedContrast: s.EnhancedContrast,
		DashedLineLength: s.DashedLineLength * scale,
	})
	if err != nil {
		return nil, dev(err)
	}
	if shaderErr, err = r.applyShader(res, s.CustomShader); err != nil {
		return nil, err
	}

	r.cache.SetAntialiasing(s.Antialiasing)
	if had && prev.DPI != s.DPI {
		r.cache.Clear()
	}
	r.settings = *s
	r.haveSettings = true
	r.geo = geometry{
		width:  s.TargetWidth,
		height: s.TargetHeight,
		scale:  scale,
		cellW:  cellW,
		cellH:  cellH,
	}
	r.life.onSettingsChanged()
	Logger().Info("cellgrid: settings applied",
		"generation", p.Generations.Settings,
		"width", s.TargetWidth, "height", s.TargetHeight,
		"dpi", s.DPI, "antialiasing", s.Antialiasing)
	return shaderErr, nil
}

// applyShader installs the custom shader. A shader that does not compile
// is disabled and reported without failing the frame.
func (r *Renderer) applyShader(res *gpu.Resources, src string) (shaderErr, err error) {
	if src == "" {
		r.post, r.shaderSource = nil, ""
		r.animated.Store(false)
		return nil, dev(res.SetPostShader(nil))
	}
	if r.post == nil || r.shaderSource != src {
		compiled, cerr := gpu.CompilePostShader(src)
		if cerr != nil {
			Logger().Warn("cellgrid: custom shader disabled", "err", cerr)
			r.post, r.shaderSource = nil, ""
			r.animated.Store(false)
			if err := res.SetPostShader(nil); err != nil {
				return nil, dev(err)
			}
			return fmt.Errorf("%w: %w", ErrInvalidShader, cerr), nil
		}
		r.post, r.shaderSource = compiled, src
	}
	if err := res.SetPostShader(r.post); err != nil {
		return nil, dev(err)
	}
	r.animated.Store(r.post.Animated)
	return nil, nil
}

// fail ends a frame that could not be completed. Device failures release
// the device resources.
func (r *Renderer) fail(err error) error {
	var de *deviceError
	if !errors.As(err, &de) {
		return err
	}
	r.life.onDeviceLost()
	r.state = StateUninitialized
	if errors.Is(err, hal.ErrDeviceLost) {
		Logger().Warn("cellgrid: device lost", "err", err)
		return fmt.Errorf("%w: %w", ErrDeviceLost, de.err)
	}
	Logger().Warn("cellgrid: frame failed, resources released", "err", err)
	return fmt.Errorf("cellgrid: render: %w", de.err)
}

// Ready reports, without blocking, whether the presenter can accept a new
// frame. Hosts use it to skip frames instead of stalling.
func (r *Renderer) Ready() bool { return r.presenter.Ready() }

// WaitUntilReady blocks until the presenter can accept a new frame or ctx
// is done.
func (r *Renderer) WaitUntilReady(ctx context.Context) error {
	return r.presenter.WaitUntilReady(ctx)
}

// DeviceLost tells the renderer that its device is gone. The resources are
// released at the start of the next Render, never during one.
func (r *Renderer) DeviceLost() { r.deviceLost.Store(true) }

// SetDevice switches to a new device, typically after ErrDeviceLost.
func (r *Renderer) SetDevice(device hal.Device, queue hal.Queue) error {
	if r.closed {
		return ErrClosed
	}
	if device == nil || queue == nil {
		return errors.New("cellgrid: nil device or queue")
	}
	r.life.setDevice(device, queue)
	r.deviceLost.Store(false)
	r.state = StateUninitialized
	return nil
}

// State returns the renderer state.
func (r *Renderer) State() State { return r.state }

// Stats returns the frame statistics.
func (r *Renderer) Stats() FrameStats {
	s := r.stats
	cs := r.cache.Stats()
	s.GlyphsCached = cs.Entries
	s.CacheHits = cs.Hits
	s.CacheMisses = cs.Misses
	s.ResourceCreates = r.life.creates
	if r.life.res != nil {
		gs := r.life.res.Stats()
		s.Submissions = gs.Submissions
		s.UploadedBytes = gs.UploadedBytes
	}
	return s
}

// RequiresContinuousRedraw reports whether frames change without new
// content, which is the case for custom shaders that read the time.
func (r *Renderer) RequiresContinuousRedraw() bool { return r.animated.Load() }

// Registry returns the face registry whose handles glyph runs must use.
func (r *Renderer) Registry() *text.Registry { return r.registry }

// Close releases the device resources. The presenter is not closed.
func (r *Renderer) Close() error {
	if r.closed {
		return nil
	}
	r.life.destroy()
	r.closed = true
	return nil
}
