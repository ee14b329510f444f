package metaballs

import (
	"github.com/gekko3d/metaballs/metaballrt/rt/core"
)

// MetaballFrame exposes the most recent pack result to later stages.
type MetaballFrame struct {
	Last core.FrameResult
}

// MetaballModule owns the source registry and packer. Emitters are registered
// when they awake and deregistered when they are destroyed; packing runs in
// PreRender so the compositor is bound before Render draws.
type MetaballModule struct {
	Settings   core.Settings
	CameraSize float32
	ViewportW  float32
	ViewportH  float32
}

func (mod MetaballModule) Install(app *App, cmd *Commands) {
	log := app.Logger()

	settings := mod.Settings
	if settings.MaxParticleCount == 0 {
		settings = core.DefaultSettings()
	}
	size := mod.CameraSize
	if size <= 0 {
		size = 5
	}

	registry := core.NewSourceRegistry()
	packer := core.NewPacker(registry, settings, log)
	camera := core.NewCamera2D(size, mod.ViewportW, mod.ViewportH)
	cmd.AddResources(registry, packer, camera, &MetaballFrame{})

	app.OnEmitterAwake(func(id EmitterId, e *ParticleEmitter) {
		e.handle = registry.Register(e)
		log.Debugf("metaballs: registered emitter %d (%s) as %v", id, e.Name, e.handle)
	})
	app.OnEmitterDestroy(func(id EmitterId, e *ParticleEmitter) {
		if !registry.Deregister(e.handle) {
			log.Debugf("metaballs: emitter %d was not registered", id)
		}
		e.handle = core.Handle{}
	})

	cmd.UseSystem(System(metaballPackSystem).InStage(PreRender))

	cmd.OnTeardown(func() {
		stats := packer.Stats()
		log.Infof("metaballs: shutdown after %d packed frame(s), %d particle(s) dropped",
			stats.FramesPacked, stats.ParticlesDropped)
		packer.Close()
		registry.Clear()
	})
}

func metaballPackSystem(packer *core.Packer, camera *core.Camera2D, frame *MetaballFrame) {
	frame.Last = packer.Pack(camera)
}
