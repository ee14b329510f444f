package metaballs

// EmitterLifetime despawns an emitter once TimeLeft runs out.
type EmitterLifetime struct {
	TimeLeft float32
}

// Lifetimes tracks emitters with a limited lifetime.
type Lifetimes struct {
	byId map[EmitterId]*EmitterLifetime
}

func (l *Lifetimes) Set(id EmitterId, seconds float32) {
	l.byId[id] = &EmitterLifetime{TimeLeft: seconds}
}

func (l *Lifetimes) Get(id EmitterId) (*EmitterLifetime, bool) {
	lt, ok := l.byId[id]
	return lt, ok
}

type LifecycleModule struct{}

func (mod LifecycleModule) Install(app *App, cmd *Commands) {
	lifetimes := &Lifetimes{byId: make(map[EmitterId]*EmitterLifetime)}
	cmd.AddResources(lifetimes)
	app.OnEmitterAwake(func(id EmitterId, e *ParticleEmitter) {
		if e.TimeToLive > 0 {
			lifetimes.Set(id, e.TimeToLive)
		}
	})
	app.OnEmitterDestroy(func(id EmitterId, _ *ParticleEmitter) {
		delete(lifetimes.byId, id)
	})
	cmd.UseSystem(System(lifetimeSystem).InStage(PostUpdate))
}

func lifetimeSystem(t *Time, lifetimes *Lifetimes, cmd *Commands) {
	dt := t.DtSeconds()
	log := cmd.app.Logger()
	for id, lt := range lifetimes.byId {
		if lt.TimeLeft <= 0 {
			continue
		}
		lt.TimeLeft -= dt
		if lt.TimeLeft <= 0 {
			log.Debugf("lifecycle: emitter %d expired", id)
			cmd.DespawnEmitter(id)
		}
	}
}
