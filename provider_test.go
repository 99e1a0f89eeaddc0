package cellgrid

import (
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cellgrid/present"
)

// directProvider hands out the HAL types from Device and Queue.
type directProvider struct {
	device hal.Device
	queue  hal.Queue
	format gputypes.TextureFormat
}

func (p *directProvider) Device() gpucontext.Device { return p.device }
func (p *directProvider) Queue() gpucontext.Queue { return p.queue }
func (p *directProvider) SurfaceFormat() gputypes.TextureFormat { return p.format }
func (p *directProvider) Adapter() gpucontext.Adapter { return nil }
func (p *directProvider) AdapterInfo() gpucontext.AdapterInfo { return gpucontext.AdapterInfo{Name: "noop"} }

// wrappedProvider hides the HAL types behind opaque handles, the way
// window toolkits do.
type wrappedProvider struct {
	directProvider
}

type opaqueHandle struct{}

func (p *wrappedProvider) Device() gpucontext.Device { return opaqueHandle{} }
func (p *wrappedProvider) Queue() gpucontext.Queue { return opaqueHandle{} }
func (p *wrappedProvider) HalDevice() any { return p.device }
func (p *wrappedProvider) HalQueue() any { return p.queue }

func TestNewRendererFromProvider(t *testing.T) {
	device, queue := createNoopDevice(t)
	out := present.NewOffscreen(device, queue, gputypes.TextureFormatRGBA8Unorm)
	t.Cleanup(out.Destroy)

	tests := []struct {
		name       string
		provider   gpucontext.DeviceProvider
		wantFormat gputypes.TextureFormat
		wantErr    bool
	}{
		{
			name:       "direct",
			provider:   &directProvider{device: device, queue: queue, format: gputypes.TextureFormatRGBA8Unorm},
			wantFormat: gputypes.TextureFormatRGBA8Unorm,
		},
		{
			name:       "hal accessors",
			provider:   &wrappedProvider{directProvider{device: device, queue: queue}},
			wantFormat: gputypes.TextureFormatBGRA8Unorm,
		},
		{
			name:     "no hal types",
			provider: &directProvider{},
			wantErr:  true,
		},
		{
			name:     "wrong hal types",
			provider: &wrappedProvider{directProvider{}},
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRendererFromProvider(tt.provider, out)
			if tt.wantErr {
				if err == nil {
					t.Error("NewRendererFromProvider succeeded")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRendererFromProvider: %v", err)
			}
			defer r.Close()
			if r.opts.format != tt.wantFormat {
				t.Errorf("format = %v, want %v", r.opts.format, tt.wantFormat)
			}
		})
	}
}

func TestNewRendererFromProviderFormatOverride(t *testing.T) {
	device, queue := createNoopDevice(t)
	out := present.NewOffscreen(device, queue, gputypes.TextureFormatBGRA8Unorm)
	t.Cleanup(out.Destroy)

	p := &directProvider{device: device, queue: queue, format: gputypes.TextureFormatRGBA8Unorm}
	r, err := NewRendererFromProvider(p, out, WithFormat(gputypes.TextureFormatBGRA8Unorm))
	if err != nil {
		t.Fatalf("NewRendererFromProvider: %v", err)
	}
	defer r.Close()
	if r.opts.format != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("format = %v, want the option to win", r.opts.format)
	}
}

func TestNewRendererArguments(t *testing.T) {
	device, queue := createNoopDevice(t)
	out := present.NewOffscreen(device, queue, gputypes.TextureFormatBGRA8Unorm)
	t.Cleanup(out.Destroy)

	if _, err := NewRenderer(nil, queue, out); err == nil {
		t.Error("nil device accepted")
	}
	if _, err := NewRenderer(device, queue, nil); err == nil {
		t.Error("nil presenter accepted")
	}
	if _, err := NewRenderer(device, queue, out, WithAtlasSize(0, 64)); err == nil {
		t.Error("zero atlas width accepted")
	}
	if _, err := NewRendererFromProvider(nil, out); err == nil {
		t.Error("nil provider accepted")
	}
}
