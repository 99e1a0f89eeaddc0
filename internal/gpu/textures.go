package gpu

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// texture is an RGBA8 sampled texture with its default view.
type texture struct {
	tex           hal.Texture
	view          hal.TextureView
	width, height uint32
}

func createTexture(device hal.Device, label string, width, height uint32, usage gputypes.TextureUsage, format gputypes.TextureFormat) (*texture, error) {
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s texture %dx%d: %w", label, width, height, err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return nil, fmt.Errorf("create %s texture view: %w", label, err)
	}
	return &texture{tex: tex, view: view, width: width, height: height}, nil
}

func createSampledTexture(device hal.Device, label string, width, height uint32) (*texture, error) {
	return createTexture(device, label, width, height,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst,
		gputypes.TextureFormatRGBA8Unorm)
}

func (t *texture) destroy(device hal.Device) {
	if t == nil {
		return
	}
	if t.view != nil {
		device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// writeRegion uploads the texels of r from pix, a tightly packed RGBA8
// image of the texture's full width. It returns the number of bytes handed
// to the queue.
func (t *texture) writeRegion(queue hal.Queue, pix []byte, r image.Rectangle) (int, error) {
	r = r.Intersect(image.Rect(0, 0, int(t.width), int(t.height)))
	if r.Empty() {
		return 0, nil
	}
	stride := int(t.width) * 4
	start := r.Min.Y*stride + r.Min.X*4
	end := (r.Max.Y-1)*stride + r.Max.X*4
	if end > len(pix) {
		return 0, fmt.Errorf("texture upload: %v needs %d bytes, have %d", r, end, len(pix))
	}
	err := queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: uint32(r.Min.X), Y: uint32(r.Min.Y)},
		},
		pix[start:end],
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(stride),
			RowsPerImage: uint32(r.Dy()),
		},
		&hal.Extent3D{
			Width:              uint32(r.Dx()),
			Height:             uint32(r.Dy()),
			DepthOrArrayLayers: 1,
		},
	)
	if err != nil {
		return 0, fmt.Errorf("write texture: %w", err)
	}
	return end - start, nil
}

func createSamplers(device hal.Device) (atlasSampler, backgroundSampler hal.Sampler, err error) {
	atlasSampler, err = device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "cellgrid_atlas_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create atlas sampler: %w", err)
	}
	// Background texels are whole cells, so the quad's cell-space texcoords
	// can run past the bitmap. Mirroring repeats the edge cells outward.
	backgroundSampler, err = device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "cellgrid_background_sampler",
		AddressModeU: gputypes.AddressModeMirrorRepeat,
		AddressModeV: gputypes.AddressModeMirrorRepeat,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
	})
	if err != nil {
		device.DestroySampler(atlasSampler)
		return nil, nil, fmt.Errorf("create background sampler: %w", err)
	}
	return atlasSampler, backgroundSampler, nil
}
