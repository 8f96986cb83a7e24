// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package haldev

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/wr/device"
)

// program is a compiled shader module. Pipelines are created lazily per
// blend mode and target format.
type program struct {
	kind   device.ShaderKind
	module hal.ShaderModule
}

type pipelineKey struct {
	program device.ProgramID
	blend   device.BlendMode
	format  device.TextureFormat
}

// Bind group slots. Samplers 0-5 map to the binding of the same number.
const (
	numTextureBindings = int(device.NumSamplers)
	flagsBinding       = uint32(device.NumSamplers)
	flagsSize          = 16
)

func (d *Device) createLayouts() error {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, numTextureBindings+1)
	for i := range numTextureBindings {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding:    flagsBinding,
		Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
		Buffer: &gputypes.BufferBindingLayout{
			Type:           gputypes.BufferBindingTypeUniform,
			MinBindingSize: flagsSize,
		},
	})
	layout, err := d.dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "wr_bind_layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("haldev: create bind group layout: %w", err)
	}
	d.bindLayout = layout

	pipeLayout, err := d.dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "wr_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
	})
	if err != nil {
		return fmt.Errorf("haldev: create pipeline layout: %w", err)
	}
	d.pipeLayout = pipeLayout
	return nil
}

// instanceLayout reads one Instance per instance as two ivec4s.
func instanceLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{{
		ArrayStride: device.InstanceSize,
		StepMode:    gputypes.VertexStepModeInstance,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatSint32x4, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatSint32x4, Offset: 16, ShaderLocation: 1},
		},
	}}
}

// blendState maps a blend mode to fixed-function factors on
// premultiplied colour. Nil replaces the target.
func blendState(mode device.BlendMode) *gputypes.BlendState {
	component := func(src, dst gputypes.BlendFactor) gputypes.BlendComponent {
		return gputypes.BlendComponent{SrcFactor: src, DstFactor: dst, Operation: gputypes.BlendOperationAdd}
	}
	var s gputypes.BlendState
	switch mode {
	case device.BlendNone:
		return nil
	case device.BlendMultiply:
		s.Color = component(gputypes.BlendFactorDst, gputypes.BlendFactorZero)
		s.Alpha = component(gputypes.BlendFactorDstAlpha, gputypes.BlendFactorZero)
	case device.BlendMixMultiply:
		s.Color = component(gputypes.BlendFactorDst, gputypes.BlendFactorOneMinusSrcAlpha)
		s.Alpha = component(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha)
	case device.BlendScreen:
		s.Color = component(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrc)
		s.Alpha = component(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha)
	default:
		s = gputypes.BlendStatePremultiplied()
	}
	return &s
}

func (d *Device) pipeline(id device.ProgramID, p *program, blend device.BlendMode, format device.TextureFormat) (hal.RenderPipeline, error) {
	key := pipelineKey{program: id, blend: blend, format: format}
	if pipe, ok := d.pipelines[key]; ok {
		return pipe, nil
	}
	pipe, err := d.dev.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("wr_%v_%v_%v", p.kind, blend, format),
		Layout: d.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.module,
			EntryPoint: "vs_main",
			Buffers:    instanceLayout(),
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: ^uint64(0)},
		Fragment: &hal.FragmentState{
			Module:     p.module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    halFormat(format),
				Blend:     blendState(blend),
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("haldev: create %v pipeline: %w", p.kind, err)
	}
	d.pipelines[key] = pipe
	return pipe, nil
}

func (d *Device) destroyProgram(id device.ProgramID, p *program) {
	for key, pipe := range d.pipelines {
		if key.program == id {
			d.dev.DestroyRenderPipeline(pipe)
			delete(d.pipelines, key)
		}
	}
	d.dev.DestroyShaderModule(p.module)
}
