package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// PostConstantsSize is the byte size of the PostConstants uniform block.
const PostConstantsSize = 32

// PostConstants mirrors the PostConstants uniform block of post.wgsl.
type PostConstants struct {
	Time          float32
	Scale         float32
	Width, Height float32
	// Background is premultiplied RGBA in [0, 1].
	Background [4]float32
}

// Encode writes the uniform block into dst, which must hold PostConstantsSize bytes.
func (c *PostConstants) Encode(dst []byte) {
	_ = dst[PostConstantsSize-1]
	vals := [8]float32{c.Time, c.Scale, c.Width, c.Height,
		c.Background[0], c.Background[1], c.Background[2], c.Background[3]}
	for i, v := range vals {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// postPass renders the grid into an offscreen frame texture and then runs
// a user fragment shader over it into the real target.
type postPass struct {
	shader *PostShader

	module     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	uniform    hal.Buffer
	sampler    hal.Sampler

	format    gputypes.TextureFormat
	frame     *texture
	bindGroup hal.BindGroup
}

func createPostPass(device hal.Device, format gputypes.TextureFormat, shader *PostShader) (_ *postPass, err error) {
	p := &postPass{shader: shader, format: format}
	defer func() {
		if err != nil {
			p.destroy(device)
		}
	}()

	p.module, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "cellgrid_post_shader",
		Source: hal.ShaderSource{WGSL: shader.Source},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShaderCompile, err)
	}

	p.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "cellgrid_post_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create post bind group layout: %w", err)
	}

	p.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "cellgrid_post_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("create post pipeline layout: %w", err)
	}

	p.pipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "cellgrid_post",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.module,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     p.module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{Format: format, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create post pipeline: %w", ErrShaderCompile, err)
	}

	p.uniform, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cellgrid_post_uniform",
		Size:  PostConstantsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create post uniform buffer: %w", err)
	}

	p.sampler, err = device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "cellgrid_post_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
	})
	if err != nil {
		return nil, fmt.Errorf("create post sampler: %w", err)
	}
	return p, nil
}

// ensureFrame (re)creates the offscreen frame texture for a w x h target.
func (p *postPass) ensureFrame(device hal.Device, w, h uint32) error {
	if p.frame != nil && p.frame.width == w && p.frame.height == h {
		return nil
	}
	p.releaseFrame(device)
	frame, err := createTexture(device, "cellgrid_post_frame", w, h,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding, p.format)
	if err != nil {
		return err
	}
	p.frame = frame
	p.bindGroup, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "cellgrid_post_bind_group",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.uniform.NativeHandle(), Size: PostConstantsSize}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: frame.view.NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: p.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		p.releaseFrame(device)
		return fmt.Errorf("create post bind group: %w", err)
	}
	return nil
}

func (p *postPass) writeConstants(queue hal.Queue, c PostConstants) error {
	var buf [PostConstantsSize]byte
	c.Encode(buf[:])
	if err := queue.WriteBuffer(p.uniform, 0, buf[:]); err != nil {
		return fmt.Errorf("write post constants: %w", err)
	}
	return nil
}

// record draws the fullscreen triangle into target.
func (p *postPass) record(enc hal.CommandEncoder, target hal.TextureView) {
	rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "cellgrid_post_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{},
		}},
	})
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, p.bindGroup, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()
}

func (p *postPass) releaseFrame(device hal.Device) {
	if p.bindGroup != nil {
		device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	p.frame.destroy(device)
	p.frame = nil
}

func (p *postPass) destroy(device hal.Device) {
	p.releaseFrame(device)
	if p.sampler != nil {
		device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.uniform != nil {
		device.DestroyBuffer(p.uniform)
		p.uniform = nil
	}
	if p.pipeline != nil {
		device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.module != nil {
		device.DestroyShaderModule(p.module)
		p.module = nil
	}
}
