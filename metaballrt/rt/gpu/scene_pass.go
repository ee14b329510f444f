package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/metaballs/metaballrt/rt/shaders"
)

// ScenePass draws the backdrop and the vignette that act as the frame's
// scene and post-processing around the metaball draw.
type ScenePass struct {
	Device             *wgpu.Device
	BackgroundPipeline *wgpu.RenderPipeline
	VignettePipeline   *wgpu.RenderPipeline
	UniformBuf         *wgpu.Buffer
	BackgroundBG       *wgpu.BindGroup
	VignetteBG         *wgpu.BindGroup
	Params             SceneParams
}

func NewScenePass(device *wgpu.Device, format wgpu.TextureFormat, params SceneParams) (*ScenePass, error) {
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Scene Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.SceneWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	makePipeline := func(label, entry string, blend *wgpu.BlendState) (*wgpu.RenderPipeline, error) {
		return device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
			Label: label,
			Vertex: wgpu.VertexState{
				Module:     module,
				EntryPoint: "vs_main",
			},
			Fragment: &wgpu.FragmentState{
				Module:     module,
				EntryPoint: entry,
				Targets: []wgpu.ColorTargetState{{
					Format:    format,
					WriteMask: wgpu.ColorWriteMaskAll,
					Blend:     blend,
				}},
			},
			Primitive: wgpu.PrimitiveState{
				Topology: wgpu.PrimitiveTopologyTriangleList,
			},
			Multisample: wgpu.MultisampleState{
				Count: 1,
				Mask:  0xFFFFFFFF,
			},
		})
	}

	p := &ScenePass{Device: device, Params: params}

	p.BackgroundPipeline, err = makePipeline("Background Pipeline", "fs_background", nil)
	if err != nil {
		return nil, err
	}
	p.VignettePipeline, err = makePipeline("Vignette Pipeline", "fs_vignette", &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		},
		Alpha: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: wgpu.BlendFactorZero,
			DstFactor: wgpu.BlendFactorOne,
		},
	})
	if err != nil {
		return nil, err
	}

	p.UniformBuf, err = device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "Scene Params",
		Contents: params.Encode(),
		Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}

	bindUniform := func(pipeline *wgpu.RenderPipeline) (*wgpu.BindGroup, error) {
		return device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Layout: pipeline.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: p.UniformBuf, Size: SceneParamsSize},
			},
		})
	}
	if p.BackgroundBG, err = bindUniform(p.BackgroundPipeline); err != nil {
		return nil, err
	}
	if p.VignetteBG, err = bindUniform(p.VignettePipeline); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ScenePass) SetParams(params SceneParams) error {
	p.Params = params
	return p.Device.GetQueue().WriteBuffer(p.UniformBuf, 0, params.Encode())
}

func (p *ScenePass) DrawBackground(pass *wgpu.RenderPassEncoder) {
	pass.SetPipeline(p.BackgroundPipeline)
	pass.SetBindGroup(0, p.BackgroundBG, nil)
	pass.Draw(3, 1, 0, 0)
}

func (p *ScenePass) DrawVignette(pass *wgpu.RenderPassEncoder) {
	if p.Params.Vignette[0] <= 0 {
		return
	}
	pass.SetPipeline(p.VignettePipeline)
	pass.SetBindGroup(0, p.VignetteBG, nil)
	pass.Draw(3, 1, 0, 0)
}

func (p *ScenePass) Release() {
	for _, bg := range []*wgpu.BindGroup{p.BackgroundBG, p.VignetteBG} {
		if bg != nil {
			bg.Release()
		}
	}
	p.BackgroundBG, p.VignetteBG = nil, nil
	if p.UniformBuf != nil {
		p.UniformBuf.Release()
		p.UniformBuf = nil
	}
	for _, pl := range []*wgpu.RenderPipeline{p.BackgroundPipeline, p.VignettePipeline} {
		if pl != nil {
			pl.Release()
		}
	}
	p.BackgroundPipeline, p.VignettePipeline = nil, nil
}
