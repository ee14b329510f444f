package metaballs

import (
	"slices"

	"github.com/gekko3d/metaballs/config"
)

type EmitterId uint64

// Emitters holds the live emitters in spawn order.
type Emitters struct {
	byId  map[EmitterId]*ParticleEmitter
	order []EmitterId
	next  EmitterId
}

func newEmitters() *Emitters {
	return &Emitters{byId: make(map[EmitterId]*ParticleEmitter)}
}

func (s *Emitters) nextEmitterId() EmitterId {
	s.next++
	return s.next
}

func (s *Emitters) insert(id EmitterId, e *ParticleEmitter) {
	if _, ok := s.byId[id]; ok {
		return
	}
	s.byId[id] = e
	s.order = append(s.order, id)
}

func (s *Emitters) remove(id EmitterId) (*ParticleEmitter, bool) {
	e, ok := s.byId[id]
	if !ok {
		return nil, false
	}
	delete(s.byId, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return e, true
}

func (s *Emitters) Get(id EmitterId) (*ParticleEmitter, bool) {
	e, ok := s.byId[id]
	return e, ok
}

func (s *Emitters) Len() int { return len(s.order) }

// Each visits emitters in spawn order until fn returns false.
func (s *Emitters) Each(fn func(id EmitterId, e *ParticleEmitter) bool) {
	for _, id := range s.order {
		if !fn(id, s.byId[id]) {
			return
		}
	}
}

// ParticlesModule simulates every spawned emitter in Update and spawns the
// configured ones at install.
type ParticlesModule struct {
	Emitters []config.EmitterConfig
	Seed     int64
}

func (mod ParticlesModule) Install(app *App, cmd *Commands) {
	log := app.Logger()
	for i, c := range mod.Emitters {
		id := cmd.SpawnEmitter(EmitterFromConfig(c, mod.Seed+int64(i)))
		log.Debugf("particles: spawned emitter %q as %d", c.Name, id)
	}
	cmd.UseSystem(System(particlesSystem).InStage(Update))
}

func particlesSystem(t *Time, emitters *Emitters) {
	dt := t.DtSeconds()
	emitters.Each(func(_ EmitterId, e *ParticleEmitter) bool {
		e.Update(dt)
		return true
	})
}
