package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/gekko3d/metaballs"
	"github.com/gekko3d/metaballs/config"
	"github.com/gekko3d/metaballs/metaballrt/rt/gpu"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults are embedded)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	profile := flag.Uint64("profile", 0, "Print profiler stats every N frames (0 = off)")
	dumpConfig := flag.String("dump-config", "", "Write the effective config to this path and exit")
	flag.Parse()

	config.MustInit(*configPath)
	cfg := config.Cfg()

	if *dumpConfig != "" {
		if err := cfg.WriteYAML(*dumpConfig); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	settings, err := cfg.Settings()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	scene := gpu.DefaultSceneParams()
	scene.Vignette[0] = cfg.Scene.VignetteStrength

	app := metaballs.NewAppBuilder().
		UseModule(
			metaballs.LoggingModule{Prefix: "metaballs", Debug: *debug},
			metaballs.TimeModule{},
			metaballs.MetaballModule{
				Settings:   settings,
				CameraSize: cfg.Camera.OrthographicSize,
				ViewportW:  float32(cfg.Window.Width),
				ViewportH:  float32(cfg.Window.Height),
			},
			metaballs.ParticlesModule{Emitters: cfg.Emitters, Seed: 1},
			metaballs.LifecycleModule{},
			metaballs.RendererModule{
				Width:        cfg.Window.Width,
				Height:       cfg.Window.Height,
				Title:        cfg.Window.Title,
				Scene:        scene,
				ProfileEvery: *profile,
			},
		).
		Build()

	app.Run()
}
