package metaballs

import "slices"

type Commands struct {
	app *App
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

func (cmd *Commands) UseSystem(system systemScheduleBuilder) *Commands {
	cmd.app.UseSystem(system)
	return cmd
}

// SpawnEmitter queues e for insertion at the next flush. The id is valid immediately.
func (cmd *Commands) SpawnEmitter(e *ParticleEmitter) EmitterId {
	id := cmd.app.emitters.nextEmitterId()
	cmd.app.pendingSpawns = append(cmd.app.pendingSpawns, pendingSpawn{id: id, emitter: e})
	return id
}

// DespawnEmitter queues removal. Unknown or already removed ids are ignored at flush.
// Despawning an emitter whose spawn is still queued cancels the spawn: the
// emitter is marked destroyed and neither awake nor destroy hooks run for it.
func (cmd *Commands) DespawnEmitter(id EmitterId) {
	if i := slices.IndexFunc(cmd.app.pendingSpawns, func(s pendingSpawn) bool { return s.id == id }); i >= 0 {
		if e := cmd.app.pendingSpawns[i].emitter; e != nil {
			e.destroyed = true
		}
		cmd.app.pendingSpawns = slices.Delete(cmd.app.pendingSpawns, i, i+1)
		return
	}
	cmd.app.pendingDespawns = append(cmd.app.pendingDespawns, id)
}

func (cmd *Commands) Emitter(id EmitterId) (*ParticleEmitter, bool) {
	return cmd.app.emitters.Get(id)
}

// OnTeardown registers fn to run once at shutdown, in reverse registration order.
func (cmd *Commands) OnTeardown(fn func()) *Commands {
	cmd.app.teardown = append(cmd.app.teardown, fn)
	return cmd
}

// Exit stops Run after the current frame.
func (cmd *Commands) Exit() {
	cmd.app.exitRequested = true
}
