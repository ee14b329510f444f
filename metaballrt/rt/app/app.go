package app

import (
	"fmt"

	"github.com/gekko3d/metaballs/metaballrt/rt/core"
	"github.com/gekko3d/metaballs/metaballrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Scene     *gpu.ScenePass
	Metaballs *gpu.MetaballPass
	Buffers   *gpu.MetaballBuffers
	Camera    *core.Camera2D
	Profiler  *Profiler

	SceneParams gpu.SceneParams

	LastRenderTime float64
	FrameCount     int
	FPS            float64
	FPSTime        float64
}

func NewApp(window *glfw.Window, camera *core.Camera2D) *App {
	return &App{
		Window:      window,
		Camera:      camera,
		Profiler:    NewProfiler(),
		SceneParams: gpu.DefaultSceneParams(),
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	a.Queue = a.Device.GetQueue()

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	format := caps.Formats[0]

	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)

	a.Scene, err = gpu.NewScenePass(a.Device, format, a.SceneParams)
	if err != nil {
		return fmt.Errorf("scene pass: %w", err)
	}

	a.Buffers = gpu.NewMetaballBuffers(a.Device)
	a.Metaballs, err = gpu.NewMetaballPass(a.Device, format, a.Buffers)
	if err != nil {
		return fmt.Errorf("metaball pass: %w", err)
	}
	a.Metaballs.Resize(width, height)
	if a.Camera != nil {
		a.Camera.Resize(float32(width), float32(height))
	}

	a.LastRenderTime = glfw.GetTime()
	return nil
}

func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	a.Config.Width = uint32(w)
	a.Config.Height = uint32(h)
	a.Surface.Configure(a.Adapter, a.Device, a.Config)
	a.Metaballs.Resize(w, h)
	if a.Camera != nil {
		a.Camera.Resize(float32(w), float32(h))
	}
}

// Render records background, metaballs and vignette in one pass. The metaball
// draw lands before or after the vignette depending on the event it was composited for.
func (a *App) Render() {
	a.Profiler.BeginScope("Render")
	defer a.Profiler.EndScope("Render")

	a.Metaballs.Time = float32(glfw.GetTime())

	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		fmt.Printf("ERROR: GetCurrentTexture failed: %v\n", err)
		a.Metaballs.Discard()
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		fmt.Printf("ERROR: CreateView failed: %v\n", err)
		a.Metaballs.Discard()
		return
	}
	defer view.Release()

	encoder, err := a.Device.CreateCommandEncoder(nil)
	if err != nil {
		fmt.Printf("ERROR: CreateCommandEncoder failed: %v\n", err)
		a.Metaballs.Discard()
		return
	}

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{0, 0, 0, 1},
		}},
	})

	a.Scene.DrawBackground(rPass)
	if a.Metaballs.Pending(core.RenderPassBeforePostProcessing) {
		a.Metaballs.Draw(rPass)
	}
	a.Scene.DrawVignette(rPass)
	if a.Metaballs.Pending(core.RenderPassAfterPostProcessing) {
		a.Metaballs.Draw(rPass)
	}
	a.Profiler.SetCount("Metaballs", int(a.Metaballs.LastCount()))

	if err := rPass.End(); err != nil {
		fmt.Printf("ERROR: Render pass End failed: %v\n", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		fmt.Printf("ERROR: Encoder Finish failed: %v\n", err)
		return
	}
	a.Queue.Submit(cmd)
	a.Surface.Present()

	now := glfw.GetTime()
	if a.LastRenderTime > 0 {
		a.FrameCount++
		a.FPSTime += now - a.LastRenderTime
		if a.FPSTime >= 1.0 {
			a.FPS = float64(a.FrameCount) / a.FPSTime
			a.FrameCount = 0
			a.FPSTime = 0
		}
	}
	a.LastRenderTime = now
}

// Release tears down GPU objects. The metaball storage buffers are owned by the
// packer and released through it, so they are not touched here.
func (a *App) Release() {
	if a.Metaballs != nil {
		a.Metaballs.Release()
		a.Metaballs = nil
	}
	if a.Scene != nil {
		a.Scene.Release()
		a.Scene = nil
	}
	if a.Surface != nil {
		a.Surface.Release()
		a.Surface = nil
	}
	if a.Device != nil {
		a.Device.Release()
		a.Device = nil
	}
	if a.Adapter != nil {
		a.Adapter.Release()
		a.Adapter = nil
	}
	if a.Instance != nil {
		a.Instance.Release()
		a.Instance = nil
	}
}
