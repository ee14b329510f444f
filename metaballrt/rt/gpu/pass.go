package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/metaballs/metaballrt/rt/core"
	"github.com/gekko3d/metaballs/metaballrt/rt/shaders"
)

var (
	_ core.FrameBuffers = (*MetaballBuffers)(nil)
	_ core.Compositor   = (*MetaballPass)(nil)
)

// MetaballPass composites the packed metaball buffers over the frame with a
// single full-screen triangle.
type MetaballPass struct {
	Device   *wgpu.Device
	Pipeline *wgpu.RenderPipeline
	Buffers  *MetaballBuffers

	UniformBuf *wgpu.Buffer
	Sampler    *wgpu.Sampler
	BindGroup  *wgpu.BindGroup

	fallbackTex  *wgpu.Texture
	fallbackView *wgpu.TextureView
	noiseTex     *wgpu.Texture
	noiseView    *wgpu.TextureView
	noiseID      core.AssetId

	boundGeneration uint64
	boundNoise      *wgpu.TextureView

	ViewportW, ViewportH float32
	Time                 float32

	uniformBytes []byte
	pending      bool
	event        core.RenderPassEvent
	lastCount    uint32
}

func NewMetaballPass(device *wgpu.Device, format wgpu.TextureFormat, buffers *MetaballBuffers) (*MetaballPass, error) {
	shaderModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Metaball Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.MetaballWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer shaderModule.Release()

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Metaball Pipeline",
		Vertex: wgpu.VertexState{
			Module:     shaderModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     shaderModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    format,
					WriteMask: wgpu.ColorWriteMaskAll,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
						Alpha: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
					},
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
			CullMode: wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}

	uniformBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Metaball Params",
		Size:  MetaballParamsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}

	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Metaball Noise Sampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}

	p := &MetaballPass{
		Device:     device,
		Pipeline:   pipeline,
		Buffers:    buffers,
		UniformBuf: uniformBuf,
		Sampler:    sampler,
	}

	// 1x1 white texture bound whenever no noise texture is configured.
	p.fallbackTex, p.fallbackView, err = p.uploadTexture("Metaball Fallback Noise", 1, 1, []uint8{255, 255, 255, 255})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *MetaballPass) uploadTexture(label string, w, h uint32, texels []uint8) (*wgpu.Texture, *wgpu.TextureView, error) {
	extent := wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}
	tex, err := p.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, nil, err
	}

	err = p.Device.GetQueue().WriteTexture(tex.AsImageCopy(), texels, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  w * 4,
		RowsPerImage: h,
	}, &extent)
	if err != nil {
		tex.Release()
		return nil, nil, err
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, nil, err
	}
	return tex, view, nil
}

// SetNoise uploads tex unless it is already resident. A nil or empty texture
// switches back to the fallback.
func (p *MetaballPass) SetNoise(tex *core.NoiseTexture) error {
	if tex.Empty() {
		p.releaseNoise()
		return nil
	}
	if tex.ID == p.noiseID && p.noiseView != nil {
		return nil
	}

	p.releaseNoise()
	t, view, err := p.uploadTexture("Metaball Noise", tex.Width, tex.Height, tex.Texels)
	if err != nil {
		return fmt.Errorf("upload noise texture: %w", err)
	}
	p.noiseTex = t
	p.noiseView = view
	p.noiseID = tex.ID
	return nil
}

func (p *MetaballPass) releaseNoise() {
	if p.noiseView != nil {
		p.noiseView.Release()
		p.noiseView = nil
	}
	if p.noiseTex != nil {
		p.noiseTex.Release()
		p.noiseTex = nil
	}
	p.noiseID = ""
}

func (p *MetaballPass) activeNoiseView() *wgpu.TextureView {
	if p.noiseView != nil {
		return p.noiseView
	}
	return p.fallbackView
}

func (p *MetaballPass) ensureBindGroup() error {
	if p.Buffers == nil || !p.Buffers.Allocated() {
		return core.ErrNotAllocated
	}
	noise := p.activeNoiseView()
	if p.BindGroup != nil && p.boundGeneration == p.Buffers.Generation() && p.boundNoise == noise {
		return nil
	}
	if p.BindGroup != nil {
		p.BindGroup.Release()
		p.BindGroup = nil
	}

	size := p.Buffers.SizeBytes()
	bg, err := p.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Metaball BG",
		Layout: p.Pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: p.UniformBuf, Size: MetaballParamsSize},
			{Binding: 1, Buffer: p.Buffers.GeometryBuf, Size: size},
			{Binding: 2, Buffer: p.Buffers.ColorBuf, Size: size},
			{Binding: 3, TextureView: noise},
			{Binding: 4, Sampler: p.Sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("create metaball bind group: %w", err)
	}
	p.BindGroup = bg
	p.boundGeneration = p.Buffers.Generation()
	p.boundNoise = noise
	return nil
}

// Composite binds this frame's parameters. The draw itself is recorded by
// Draw when the frame reaches params.Event.
func (p *MetaballPass) Composite(params core.CompositeParams) error {
	if err := p.SetNoise(params.Distortion); err != nil {
		return err
	}
	if err := p.ensureBindGroup(); err != nil {
		return err
	}

	uniforms := ParamsFromComposite(params, p.ViewportW, p.ViewportH, p.Time)
	p.uniformBytes = uniforms.Encode(p.uniformBytes)
	if err := p.Device.GetQueue().WriteBuffer(p.UniformBuf, 0, p.uniformBytes); err != nil {
		return fmt.Errorf("write metaball params: %w", err)
	}

	p.pending = true
	p.event = params.Event
	p.lastCount = uniforms.Count
	return nil
}

// Pending reports whether a composite is due at event.
func (p *MetaballPass) Pending(event core.RenderPassEvent) bool {
	return p.pending && p.event == event
}

func (p *MetaballPass) LastCount() uint32 { return p.lastCount }

// Draw issues the full-screen draw if one is pending. It is consumed either way
// so a skipped frame never redraws stale data.
func (p *MetaballPass) Draw(pass *wgpu.RenderPassEncoder) {
	if !p.pending || p.BindGroup == nil {
		return
	}
	p.pending = false

	pass.SetPipeline(p.Pipeline)
	pass.SetBindGroup(0, p.BindGroup, nil)
	pass.Draw(3, 1, 0, 0)
}

// Discard drops a pending composite without drawing.
func (p *MetaballPass) Discard() { p.pending = false }

func (p *MetaballPass) Resize(w, h int) {
	if w > 0 && h > 0 {
		p.ViewportW = float32(w)
		p.ViewportH = float32(h)
	}
}

func (p *MetaballPass) Release() {
	if p.BindGroup != nil {
		p.BindGroup.Release()
		p.BindGroup = nil
	}
	p.releaseNoise()
	if p.fallbackView != nil {
		p.fallbackView.Release()
		p.fallbackView = nil
	}
	if p.fallbackTex != nil {
		p.fallbackTex.Release()
		p.fallbackTex = nil
	}
	if p.UniformBuf != nil {
		p.UniformBuf.Release()
		p.UniformBuf = nil
	}
	if p.Sampler != nil {
		p.Sampler.Release()
		p.Sampler = nil
	}
	if p.Pipeline != nil {
		p.Pipeline.Release()
		p.Pipeline = nil
	}
}
