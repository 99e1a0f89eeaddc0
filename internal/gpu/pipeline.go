package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cellgrid/internal/quad"
)

// quadIndices draws one quad per instance as two triangles.
var quadIndices = []uint16{0, 1, 2, 2, 3, 0}

// gridPipeline is the grid shader with its layouts and the two pipelines
// built from it. copy overwrites the target and is used for the opaque
// background; blend composites premultiplied color over it.
type gridPipeline struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	copy       hal.RenderPipeline
	blend      hal.RenderPipeline
}

// instanceLayout matches InstanceInput in grid.wgsl and quad.Instance.Encode.
var instanceLayout = []gputypes.VertexBufferLayout{
	{
		ArrayStride: quad.InstanceSize,
		StepMode:    gputypes.VertexStepModeInstance,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 1},
			{Format: gputypes.VertexFormatUint32, Offset: 32, ShaderLocation: 2},
			{Format: gputypes.VertexFormatUint32, Offset: 36, ShaderLocation: 3},
		},
	},
}

func createGridPipeline(device hal.Device, format gputypes.TextureFormat) (*gridPipeline, error) {
	p := &gridPipeline{}
	var err error

	p.shader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "cellgrid_grid_shader",
		Source: hal.ShaderSource{WGSL: gridShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("compile grid shader: %w", err)
	}

	p.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "cellgrid_grid_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
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
			{
				Binding:    3,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    4,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("create grid bind group layout: %w", err)
	}

	p.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "cellgrid_grid_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("create grid pipeline layout: %w", err)
	}

	replace := gputypes.BlendStateReplace()
	p.copy, err = p.createPipeline(device, "cellgrid_grid_copy", format, &replace)
	if err != nil {
		p.destroy(device)
		return nil, err
	}
	premul := gputypes.BlendStatePremultiplied()
	p.blend, err = p.createPipeline(device, "cellgrid_grid_blend", format, &premul)
	if err != nil {
		p.destroy(device)
		return nil, err
	}
	return p, nil
}

func (p *gridPipeline) createPipeline(device hal.Device, label string, format gputypes.TextureFormat, blend *gputypes.BlendState) (hal.RenderPipeline, error) {
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    instanceLayout,
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					Blend:     blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline: %w", label, err)
	}
	return pipeline, nil
}

// destroy releases everything in reverse creation order. Partially built
// pipelines are fine.
func (p *gridPipeline) destroy(device hal.Device) {
	if p.blend != nil {
		device.DestroyRenderPipeline(p.blend)
		p.blend = nil
	}
	if p.copy != nil {
		device.DestroyRenderPipeline(p.copy)
		p.copy = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
