package cellgrid

import (
	"errors"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// halProvider is implemented by device providers that expose the HAL
// device and queue behind gpucontext's opaque handles.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewRendererFromProvider creates a renderer on the device of a host
// application, such as a gogpu window. The provider must expose hal.Device
// and hal.Queue, either directly from Device and Queue or through
// HalDevice() any and HalQueue() any. The provider's surface format is used
// unless an option overrides it.
func NewRendererFromProvider(p gpucontext.DeviceProvider, presenter Presenter, opts ...Option) (*Renderer, error) {
	if p == nil {
		return nil, errors.New("cellgrid: nil device provider")
	}
	device, queue, err := halFromProvider(p)
	if err != nil {
		return nil, err
	}
	if f := p.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		opts = append([]Option{WithFormat(f)}, opts...)
	}
	info := p.AdapterInfo()
	Logger().Info("cellgrid: using shared device", "adapter", info.Name, "type", info.Type)
	return NewRenderer(device, queue, presenter, opts...)
}

func halFromProvider(p gpucontext.DeviceProvider) (hal.Device, hal.Queue, error) {
	device, dok := p.Device().(hal.Device)
	queue, qok := p.Queue().(hal.Queue)
	if dok && qok && device != nil && queue != nil {
		return device, queue, nil
	}

	hp, ok := p.(halProvider)
	if !ok {
		return nil, nil, errors.New("cellgrid: provider does not expose HAL types")
	}
	device, ok = hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, errors.New("cellgrid: provider HalDevice is not hal.Device")
	}
	queue, ok = hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, errors.New("cellgrid: provider HalQueue is not hal.Queue")
	}
	return device, queue, nil
}
