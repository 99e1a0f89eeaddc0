package cellgrid

import (
	"errors"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cellgrid/internal/gpu"
)

// resource names a group of state rebuilt from one generation counter.
type resource int

const (
	// resSettings covers the presentation target, shader constants and
	// the custom shader.
	resSettings resource = iota
	// resGlyphs covers the glyph cache and the atlas texels.
	resGlyphs
	// resBackground covers the background texture.
	resBackground

	resourceCount
)

func (k resource) String() string {
	switch k {
	case resSettings:
		return "settings"
	case resGlyphs:
		return "glyphs"
	case resBackground:
		return "background"
	default:
		return "unknown"
	}
}

// appliedGen is the generation a resource was last built from.
type appliedGen struct {
	gen   uint64
	valid bool
}

// lifecycle owns the device resources and the generation each resource
// group was built from. A group is stale when it was never built or when
// the current generation differs from the applied one.
type lifecycle struct {
	device hal.Device
	queue  hal.Queue
	cfg    gpu.Config

	res     *gpu.Resources
	applied [resourceCount]appliedGen

	creates int
}

var errNoDevice = errors.New("cellgrid: no device")

// ensure returns the device resources, creating them if needed. Fresh
// resources invalidate every group.
func (l *lifecycle) ensure() (*gpu.Resources, error) {
	if l.res != nil {
		return l.res, nil
	}
	if l.device == nil || l.queue == nil {
		return nil, errNoDevice
	}
	res, err := gpu.NewResources(l.device, l.queue, l.cfg)
	if err != nil {
		return nil, err
	}
	l.res = res
	l.invalidate(resSettings, resGlyphs, resBackground)
	l.creates++
	Logger().Info("cellgrid: device resources created", "count", l.creates)
	return res, nil
}

// ready reports whether the device resources exist.
func (l *lifecycle) ready() bool { return l.res != nil }

func (l *lifecycle) stale(k resource, gen uint64) bool {
	a := l.applied[k]
	return !a.valid || a.gen != gen
}

func (l *lifecycle) apply(k resource, gen uint64) {
	l.applied[k] = appliedGen{gen: gen, valid: true}
}

func (l *lifecycle) invalidate(ks ...resource) {
	for _, k := range ks {
		l.applied[k] = appliedGen{}
	}
}

// onSettingsChanged marks everything derived from settings as stale. The
// background depends on the default background color.
func (l *lifecycle) onSettingsChanged() {
	l.invalidate(resBackground)
}

// onDeviceLost releases the device resources. They are recreated by the
// next ensure.
func (l *lifecycle) onDeviceLost() {
	if l.res != nil {
		l.res.Destroy()
		l.res = nil
	}
	l.invalidate(resSettings, resGlyphs, resBackground)
}

// setDevice replaces the device, dropping resources of the old one.
func (l *lifecycle) setDevice(device hal.Device, queue hal.Queue) {
	l.onDeviceLost()
	l.device, l.queue = device, queue
}

func (l *lifecycle) destroy() {
	l.onDeviceLost()
	l.device, l.queue = nil, nil
}
