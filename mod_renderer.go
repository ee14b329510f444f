package metaballs

import (
	"fmt"

	rtapp "github.com/gekko3d/metaballs/metaballrt/rt/app"
	"github.com/gekko3d/metaballs/metaballrt/rt/core"
	"github.com/gekko3d/metaballs/metaballrt/rt/gpu"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// RendererModule opens the window and GPU host and binds the metaball pass as
// the packer's compositor. Install after MetaballModule. glfw requires the
// caller to have locked the main OS thread.
type RendererModule struct {
	Width  int
	Height int
	Title  string

	Scene gpu.SceneParams
	// ProfileEvery logs profiler stats every N frames; 0 disables.
	ProfileEvery uint64
}

type Renderer struct {
	Window *glfw.Window
	Host   *rtapp.App

	profileEvery uint64
	frames       uint64
}

func (mod RendererModule) Install(app *App, cmd *Commands) {
	log := app.Logger()
	packer := MustResource[core.Packer](app)
	camera := MustResource[core.Camera2D](app)
	ensureSingleCompositor(app, "wgpu")

	if err := glfw.Init(); err != nil {
		panic(fmt.Sprintf("renderer: glfw init: %v", err))
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(mod.Width, mod.Height, mod.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		panic(fmt.Sprintf("renderer: create window: %v", err))
	}

	host := rtapp.NewApp(window, camera)
	if mod.Scene != (gpu.SceneParams{}) {
		host.SceneParams = mod.Scene
	}
	if err := host.Init(); err != nil {
		host.Release()
		window.Destroy()
		glfw.Terminate()
		panic(fmt.Sprintf("renderer: %v", err))
	}
	packer.SetCompositor(host.Metaballs)
	packer.SetDeviceBuffers(host.Buffers)

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		host.Resize(width, height)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		handleKey(key, w, packer, log)
	})

	cmd.AddResources(&Renderer{Window: window, Host: host, profileEvery: mod.ProfileEvery})
	cmd.UseSystem(System(windowSystem).InStage(Prelude))
	cmd.UseSystem(System(renderSystem).InStage(Render))

	// Registered after the metaball module, so this runs first. The packer owns
	// the device buffers and must drop them before the device goes away.
	cmd.OnTeardown(func() {
		packer.SetCompositor(nil)
		packer.Close()
		host.Release()
		window.Destroy()
		glfw.Terminate()
	})
	log.Infof("renderer: %dx%d window ready", mod.Width, mod.Height)
}

func handleKey(key glfw.Key, w *glfw.Window, packer *core.Packer, log Logger) {
	s := packer.Settings()
	switch key {
	case glfw.KeyEscape:
		w.SetShouldClose(true)
		return
	case glfw.KeySpace:
		if s.RenderPassEvent == core.RenderPassAfterPostProcessing {
			s.RenderPassEvent = core.RenderPassBeforePostProcessing
		} else {
			s.RenderPassEvent = core.RenderPassAfterPostProcessing
		}
	case glfw.KeyEqual, glfw.KeyKPAdd:
		s.MaxParticleCount *= 2
	case glfw.KeyMinus, glfw.KeyKPSubtract:
		s.MaxParticleCount = max(1, s.MaxParticleCount/2)
	case glfw.KeyO:
		s.OutlineSize = float32(int(s.OutlineSize*10+1)%11) / 10
	default:
		return
	}
	packer.SetSettings(s)
	log.Infof("renderer: capacity=%d outline=%.1f event=%v", s.MaxParticleCount, s.OutlineSize, s.RenderPassEvent)
}

func windowSystem(r *Renderer, cmd *Commands) {
	glfw.PollEvents()
	if r.Window.ShouldClose() {
		cmd.Exit()
	}
}

func renderSystem(r *Renderer, packer *core.Packer, frame *MetaballFrame) {
	r.Host.Render()

	prof := r.Host.Profiler
	prof.RecordFrame(frame.Last, packer.Stats())

	r.frames++
	if r.profileEvery > 0 && r.frames%r.profileEvery == 0 {
		fmt.Printf("FPS %.1f\n%s", r.Host.FPS, prof.GetStatsString())
	}
}
