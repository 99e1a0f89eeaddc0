package gpu

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop HAL device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		t.Fatal("no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// labeledPipeline gives noop pipelines an identity.
type labeledPipeline struct {
	hal.RenderPipeline
	label string
	blend *gputypes.BlendState
}

type drawCall struct {
	pipeline      string
	indexed       bool
	count         uint32
	instances     uint32
	firstInstance uint32
}

type recordingPass struct {
	hal.RenderPassEncoder
	load     gputypes.LoadOp
	view     hal.TextureView
	pipeline string
	draws    []drawCall
}

func (p *recordingPass) SetPipeline(pl hal.RenderPipeline) {
	if lp, ok := pl.(*labeledPipeline); ok {
		p.pipeline = lp.label
		pl = lp.RenderPipeline
	}
	p.RenderPassEncoder.SetPipeline(pl)
}

func (p *recordingPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.draws = append(p.draws, drawCall{p.pipeline, true, indexCount, instanceCount, firstInstance})
	p.RenderPassEncoder.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (p *recordingPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.draws = append(p.draws, drawCall{p.pipeline, false, vertexCount, instanceCount, firstInstance})
	p.RenderPassEncoder.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

type recordingEncoder struct {
	hal.CommandEncoder
	dev *recordingDevice
}

func (e *recordingEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	p := &recordingPass{
		RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc),
		load:              desc.ColorAttachments[0].LoadOp,
		view:              desc.ColorAttachments[0].View,
	}
	e.dev.passes = append(e.dev.passes, p)
	return p
}

// recordingDevice wraps a device and records what the renderer does with it.
type recordingDevice struct {
	hal.Device
	passes      []*recordingPass
	pipelines   map[string]*labeledPipeline
	bufferSizes map[string][]uint64
	bindGroups  int
	textures    int
}

func newRecordingDevice(d hal.Device) *recordingDevice {
	return &recordingDevice{
		Device:      d,
		pipelines:   map[string]*labeledPipeline{},
		bufferSizes: map[string][]uint64{},
	}
}

func (d *recordingDevice) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	p, err := d.Device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, err
	}
	lp := &labeledPipeline{RenderPipeline: p, label: desc.Label}
	if desc.Fragment != nil && len(desc.Fragment.Targets) > 0 {
		lp.blend = desc.Fragment.Targets[0].Blend
	}
	d.pipelines[desc.Label] = lp
	return lp, nil
}

func (d *recordingDevice) DestroyRenderPipeline(p hal.RenderPipeline) {
	if lp, ok := p.(*labeledPipeline); ok {
		p = lp.RenderPipeline
	}
	d.Device.DestroyRenderPipeline(p)
}

func (d *recordingDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &recordingEncoder{CommandEncoder: enc, dev: d}, nil
}

func (d *recordingDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.bufferSizes[desc.Label] = append(d.bufferSizes[desc.Label], desc.Size)
	return d.Device.CreateBuffer(desc)
}

func (d *recordingDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	d.bindGroups++
	return d.Device.CreateBindGroup(desc)
}

func (d *recordingDevice) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	d.textures++
	return d.Device.CreateTexture(desc)
}

type textureWrite struct {
	origin hal.Origin3D
	size   hal.Extent3D
	bytes  int
	stride uint32
}

// recordingQueue records texture uploads and submissions.
type recordingQueue struct {
	hal.Queue
	writes  []textureWrite
	submits int
	fail    error
}

func (q *recordingQueue) WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, size *hal.Extent3D) error {
	q.writes = append(q.writes, textureWrite{dst.Origin, *size, len(data), layout.BytesPerRow})
	return q.Queue.WriteTexture(dst, data, layout, size)
}

func (q *recordingQueue) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	if q.fail != nil {
		return 0, q.fail
	}
	q.submits++
	return q.Queue.Submit(cmds)
}

// newTestResources builds Resources over recording wrappers of a noop device.
func newTestResources(t *testing.T, cfg Config) (*Resources, *recordingDevice, *recordingQueue) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	rd := newRecordingDevice(device)
	rq := &recordingQueue{Queue: queue}
	if cfg.AtlasWidth == 0 {
		cfg.AtlasWidth, cfg.AtlasHeight = 64, 64
	}
	r, err := NewResources(rd, rq, cfg)
	if err != nil {
		t.Fatalf("NewResources: %v", err)
	}
	t.Cleanup(r.Destroy)
	return r, rd, rq
}

// testTarget returns a texture view to render into.
func testTarget(t *testing.T, d hal.Device) hal.TextureView {
	t.Helper()
	tex, err := createTexture(d, "test_target", 8, 8, gputypes.TextureUsageRenderAttachment, gputypes.TextureFormatBGRA8Unorm)
	if err != nil {
		t.Fatalf("create target: %v", err)
	}
	t.Cleanup(func() { tex.destroy(d) })
	return tex.view
}
