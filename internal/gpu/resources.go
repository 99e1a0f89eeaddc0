package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cellgrid/internal/quad"
)

// ErrNoFrame is returned by Flush and EndFrame outside BeginFrame/EndFrame.
var ErrNoFrame = errors.New("gpu: no frame in progress")

// ErrDestroyed is returned by every method after Destroy.
var ErrDestroyed = errors.New("gpu: resources destroyed")

// Config selects the target format and initial atlas size.
type Config struct {
	Format      gputypes.TextureFormat
	AtlasWidth  int
	AtlasHeight int
}

// Stats counts device work since the Resources were created.
type Stats struct {
	Submissions       uint64
	Flushes           uint64
	InstanceRebuilds  int
	BindGroupRebuilds int
	UploadedBytes     uint64
}

type inflight struct {
	index uint64
	cmd   hal.CommandBuffer
}

// Resources owns every device object of the grid renderer.
//
// Resources is not safe for concurrent use.
type Resources struct {
	device hal.Device
	queue  hal.Queue
	format gputypes.TextureFormat

	grid       *gridPipeline
	indexBuf   hal.Buffer
	uniformBuf hal.Buffer
	instances  *InstanceBuffer

	atlas             *texture
	background        *texture
	atlasSampler      hal.Sampler
	backgroundSampler hal.Sampler
	bindGroup         hal.BindGroup
	bindDirty         bool

	post *postPass

	inflight       []inflight
	lastSubmission uint64

	// Current frame.
	inFrame bool
	target  hal.TextureView
	width   uint32
	height  uint32
	clear   gputypes.Color
	flushes int

	stats     Stats
	destroyed bool
}

// NewResources creates the pipelines and static buffers on device. The
// atlas texture is created at the configured size and the background
// texture starts as a single transparent texel.
func NewResources(device hal.Device, queue hal.Queue, cfg Config) (_ *Resources, err error) {
	if device == nil || queue == nil {
		return nil, errors.New("gpu: nil device or queue")
	}
	if cfg.Format == gputypes.TextureFormatUndefined {
		cfg.Format = gputypes.TextureFormatBGRA8Unorm
	}
	if cfg.AtlasWidth <= 0 || cfg.AtlasHeight <= 0 {
		return nil, fmt.Errorf("gpu: invalid atlas size %dx%d", cfg.AtlasWidth, cfg.AtlasHeight)
	}

	r := &Resources{
		device:    device,
		queue:     queue,
		format:    cfg.Format,
		instances: NewInstanceBuffer(device, queue),
		bindDirty: true,
	}
	defer func() {
		if err != nil {
			r.Destroy()
		}
	}()

	r.grid, err = createGridPipeline(device, cfg.Format)
	if err != nil {
		return nil, err
	}

	r.indexBuf, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cellgrid_quad_indices",
		Size:  uint64(len(quadIndices) * 2),
		Usage: gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create index buffer: %w", err)
	}
	idx := make([]byte, len(quadIndices)*2)
	for i, v := range quadIndices {
		binary.LittleEndian.PutUint16(idx[i*2:], v)
	}
	if err = queue.WriteBuffer(r.indexBuf, 0, idx); err != nil {
		return nil, fmt.Errorf("write index buffer: %w", err)
	}

	r.uniformBuf, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cellgrid_grid_uniform",
		Size:  ConstantsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform buffer: %w", err)
	}

	r.atlasSampler, r.backgroundSampler, err = createSamplers(device)
	if err != nil {
		return nil, err
	}
	if err = r.EnsureAtlas(cfg.AtlasWidth, cfg.AtlasHeight); err != nil {
		return nil, err
	}
	if err = r.UploadBackground(make([]byte, 4), 1, 1); err != nil {
		return nil, err
	}

	slogger().Debug("grid resources created", "format", cfg.Format,
		"atlas_w", cfg.AtlasWidth, "atlas_h", cfg.AtlasHeight)
	return r, nil
}

// Format returns the color format the pipelines render to.
func (r *Resources) Format() gputypes.TextureFormat { return r.format }

// WriteConstants uploads the grid uniform block.
func (r *Resources) WriteConstants(c Constants) error {
	if r.destroyed {
		return ErrDestroyed
	}
	var buf [ConstantsSize]byte
	c.Encode(buf[:])
	if err := r.queue.WriteBuffer(r.uniformBuf, 0, buf[:]); err != nil {
		return fmt.Errorf("write grid constants: %w", err)
	}
	return nil
}

// EnsureAtlas makes the atlas texture w x h, recreating it on size change.
// A recreated atlas has undefined contents until the next full upload.
func (r *Resources) EnsureAtlas(w, h int) error {
	if r.destroyed {
		return ErrDestroyed
	}
	if r.atlas != nil && r.atlas.width == uint32(w) && r.atlas.height == uint32(h) {
		return nil
	}
	t, err := createSampledTexture(r.device, "cellgrid_atlas", uint32(w), uint32(h))
	if err != nil {
		return err
	}
	r.atlas.destroy(r.device)
	r.atlas = t
	r.bindDirty = true
	return nil
}

// UploadAtlas copies the dirty region of pix, the CPU atlas image, into
// the atlas texture.
func (r *Resources) UploadAtlas(pix []byte, dirty image.Rectangle) error {
	if r.destroyed {
		return ErrDestroyed
	}
	n, err := r.atlas.writeRegion(r.queue, pix, dirty)
	if err != nil {
		return fmt.Errorf("upload atlas: %w", err)
	}
	r.stats.UploadedBytes += uint64(n)
	return nil
}

// UploadBackground replaces the per-cell background texture with a w x h
// RGBA8 premultiplied bitmap.
func (r *Resources) UploadBackground(pix []byte, w, h int) error {
	if r.destroyed {
		return ErrDestroyed
	}
	if w <= 0 || h <= 0 || len(pix) < w*h*4 {
		return fmt.Errorf("gpu: invalid background bitmap %dx%d (%d bytes)", w, h, len(pix))
	}
	if r.background == nil || r.background.width != uint32(w) || r.background.height != uint32(h) {
		t, err := createSampledTexture(r.device, "cellgrid_background", uint32(w), uint32(h))
		if err != nil {
			return err
		}
		r.background.destroy(r.device)
		r.background = t
		r.bindDirty = true
	}
	n, err := r.background.writeRegion(r.queue, pix, image.Rect(0, 0, w, h))
	if err != nil {
		return fmt.Errorf("upload background: %w", err)
	}
	r.stats.UploadedBytes += uint64(n)
	return nil
}

// SetPostShader installs a compiled post-processing shader, or removes the
// current one when s is nil.
func (r *Resources) SetPostShader(s *PostShader) error {
	if r.destroyed {
		return ErrDestroyed
	}
	if r.post != nil {
		r.post.destroy(r.device)
		r.post = nil
	}
	if s == nil {
		return nil
	}
	p, err := createPostPass(r.device, r.format, s)
	if err != nil {
		return err
	}
	r.post = p
	return nil
}

// PostShaderActive reports whether a post-processing pass is installed.
func (r *Resources) PostShaderActive() bool { return r.post != nil }

// WritePostConstants uploads the post-processing uniform block. It is a
// no-op without a post shader.
func (r *Resources) WritePostConstants(c PostConstants) error {
	if r.post == nil {
		return nil
	}
	return r.post.writeConstants(r.queue, c)
}

func (r *Resources) rebuildBindGroup() error {
	if !r.bindDirty && r.bindGroup != nil {
		return nil
	}
	if r.bindGroup != nil {
		r.device.DestroyBindGroup(r.bindGroup)
		r.bindGroup = nil
	}
	bg, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "cellgrid_grid_bind_group",
		Layout: r.grid.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: r.uniformBuf.NativeHandle(), Size: ConstantsSize}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: r.atlas.view.NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: r.atlasSampler.NativeHandle()}},
			{Binding: 3, Resource: gputypes.TextureViewBinding{TextureView: r.background.view.NativeHandle()}},
			{Binding: 4, Resource: gputypes.SamplerBinding{Sampler: r.backgroundSampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("create grid bind group: %w", err)
	}
	r.bindGroup = bg
	r.bindDirty = false
	r.stats.BindGroupRebuilds++
	return nil
}

// BeginFrame starts a frame that renders into target, a width x height
// view in the configured format. The first Flush clears it to clear.
func (r *Resources) BeginFrame(target hal.TextureView, width, height int, clear gputypes.Color) error {
	if r.destroyed {
		return ErrDestroyed
	}
	if r.inFrame {
		return errors.New("gpu: BeginFrame called twice")
	}
	if target == nil || width <= 0 || height <= 0 {
		return fmt.Errorf("gpu: invalid frame target %dx%d", width, height)
	}
	r.reclaim()
	if r.post != nil {
		if err := r.post.ensureFrame(r.device, uint32(width), uint32(height)); err != nil {
			return err
		}
	}
	r.inFrame = true
	r.target = target
	r.width, r.height = uint32(width), uint32(height)
	r.clear = clear
	r.flushes = 0
	return nil
}

// Flush uploads b and records one render pass drawing all of it, then
// submits. The batch may be reset by the caller once Flush returns.
func (r *Resources) Flush(b *quad.Batch) error {
	if !r.inFrame {
		return ErrNoFrame
	}
	if b.Len() == 0 && r.flushes > 0 {
		return nil
	}
	if b.Len() > 0 {
		rebuilt, err := r.instances.Upload(b.Bytes())
		if err != nil {
			return err
		}
		if rebuilt {
			r.stats.InstanceRebuilds++
		}
	}
	if err := r.rebuildBindGroup(); err != nil {
		return err
	}

	load := gputypes.LoadOpLoad
	if r.flushes == 0 {
		load = gputypes.LoadOpClear
	}
	view := r.target
	if r.post != nil {
		view = r.post.frame.view
	}

	err := r.submit("cellgrid_flush", func(enc hal.CommandEncoder) {
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "cellgrid_grid_pass",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:       view,
				LoadOp:     load,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: r.clear,
			}},
		})
		if n := uint32(b.Len()); n > 0 {
			rp.SetBindGroup(0, r.bindGroup, nil)
			rp.SetVertexBuffer(0, r.instances.Buffer(), 0)
			rp.SetIndexBuffer(r.indexBuf, gputypes.IndexFormatUint16, 0)
			idx := uint32(len(quadIndices))
			prefix := uint32(b.CopyPrefix())
			if prefix > 0 {
				rp.SetPipeline(r.grid.copy)
				rp.DrawIndexed(idx, prefix, 0, 0, 0)
			}
			if n > prefix {
				rp.SetPipeline(r.grid.blend)
				rp.DrawIndexed(idx, n-prefix, 0, 0, prefix)
			}
		}
		rp.End()
	})
	if err != nil {
		return err
	}
	r.flushes++
	r.stats.Flushes++
	return nil
}

// EndFrame finishes the frame, running the post-processing pass if one is
// installed. A frame without any Flush still clears the target.
func (r *Resources) EndFrame() error {
	if !r.inFrame {
		return ErrNoFrame
	}
	defer func() {
		r.inFrame = false
		r.target = nil
	}()
	if r.flushes == 0 {
		if err := r.Flush(&quad.Batch{}); err != nil {
			return err
		}
	}
	if r.post == nil {
		return nil
	}
	return r.submit("cellgrid_post", func(enc hal.CommandEncoder) {
		r.post.record(enc, r.target)
	})
}

// AbortFrame drops the frame in progress. Work already flushed stays
// submitted; the post-processing pass is skipped.
func (r *Resources) AbortFrame() {
	r.inFrame = false
	r.target = nil
}

// InFrame reports whether a frame is in progress.
func (r *Resources) InFrame() bool { return r.inFrame }

// submit encodes one command buffer with record and submits it.
func (r *Resources) submit(label string, record func(hal.CommandEncoder)) error {
	enc, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	record(enc)
	cmd, err := enc.EndEncoding()
	if err != nil {
		enc.DiscardEncoding()
		return fmt.Errorf("end encoding: %w", err)
	}
	idx, err := r.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		r.device.FreeCommandBuffer(cmd)
		return fmt.Errorf("submit: %w", err)
	}
	r.inflight = append(r.inflight, inflight{index: idx, cmd: cmd})
	r.lastSubmission = idx
	r.stats.Submissions++
	return nil
}

// reclaim frees command buffers the GPU has finished with.
func (r *Resources) reclaim() {
	if len(r.inflight) == 0 {
		return
	}
	done := r.queue.PollCompleted()
	keep := r.inflight[:0]
	for _, f := range r.inflight {
		if f.index <= done {
			r.device.FreeCommandBuffer(f.cmd)
			continue
		}
		keep = append(keep, f)
	}
	clear(r.inflight[len(keep):])
	r.inflight = keep
}

// LastSubmission returns the queue index of the most recent submit.
func (r *Resources) LastSubmission() uint64 { return r.lastSubmission }

// Stats returns the device work counters.
func (r *Resources) Stats() Stats { return r.stats }

// Destroy waits for the device to go idle and releases everything.
// Safe to call more than once.
func (r *Resources) Destroy() {
	if r.destroyed {
		return
	}
	r.destroyed = true
	if err := r.device.WaitIdle(); err != nil {
		slogger().Warn("wait idle before destroy", "err", err)
	}
	for _, f := range r.inflight {
		r.device.FreeCommandBuffer(f.cmd)
	}
	r.inflight = nil

	if r.post != nil {
		r.post.destroy(r.device)
		r.post = nil
	}
	if r.bindGroup != nil {
		r.device.DestroyBindGroup(r.bindGroup)
		r.bindGroup = nil
	}
	r.background.destroy(r.device)
	r.background = nil
	r.atlas.destroy(r.device)
	r.atlas = nil
	if r.backgroundSampler != nil {
		r.device.DestroySampler(r.backgroundSampler)
		r.backgroundSampler = nil
	}
	if r.atlasSampler != nil {
		r.device.DestroySampler(r.atlasSampler)
		r.atlasSampler = nil
	}
	r.instances.Destroy()
	if r.uniformBuf != nil {
		r.device.DestroyBuffer(r.uniformBuf)
		r.uniformBuf = nil
	}
	if r.indexBuf != nil {
		r.device.DestroyBuffer(r.indexBuf)
		r.indexBuf = nil
	}
	if r.grid != nil {
		r.grid.destroy(r.device)
		r.grid = nil
	}
}
