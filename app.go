package metaballs

import (
	"fmt"
	"reflect"
	"runtime"
	"slices"
)

type Module interface {
	Install(app *App, cmd *Commands)
}

type systemFn any

type App struct {
	stages    []Stage
	systems   map[string][]systemFn
	resources map[reflect.Type]any
	emitters  *Emitters

	awakeHooks   []EmitterHook
	destroyHooks []EmitterHook
	teardown     []func()

	// Command buffering
	pendingSpawns   []pendingSpawn
	pendingDespawns []EmitterId

	frame         uint64
	exitRequested bool
	shutDown      bool
}

type pendingSpawn struct {
	id      EmitterId
	emitter *ParticleEmitter
}

// EmitterHook observes an emitter entering or leaving the scene.
type EmitterHook func(id EmitterId, e *ParticleEmitter)

func (app *App) Commands() *Commands {
	return &Commands{app: app}
}

// Frame is the number of completed frames.
func (app *App) Frame() uint64 { return app.frame }

func (app *App) Exiting() bool { return app.exitRequested }

// RunFrame runs every stage once. Buffered commands are flushed after each stage.
func (app *App) RunFrame() {
	for _, stage := range app.stages {
		for _, system := range app.systems[stage.Name] {
			app.callSystem(system)
		}
		app.FlushCommands()
	}
	app.frame++
}

// Run loops until a system calls Commands.Exit, then shuts down. Teardown also
// runs when a system panics; the panic is re-raised afterwards.
func (app *App) Run() {
	log := app.Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("app: panic in frame %d: %v", app.frame, r)
			app.Shutdown()
			panic(r)
		}
		app.Shutdown()
	}()

	log.Infof("app: running %d stage(s)", len(app.stages))
	for !app.exitRequested {
		app.RunFrame()
	}
}

// Shutdown runs teardown hooks in reverse install order. Only the first call has an effect.
func (app *App) Shutdown() {
	if app.shutDown {
		return
	}
	app.shutDown = true
	for _, fn := range slices.Backward(app.teardown) {
		fn()
	}
	app.teardown = nil
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("resource %s must be a pointer", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}
		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// Resource looks up a resource by type.
func Resource[T any](app *App) (*T, bool) {
	r, ok := app.resources[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	return r.(*T), true
}

// MustResource is Resource for dependencies a module cannot install without.
func MustResource[T any](app *App) *T {
	r, ok := Resource[T](app)
	if !ok {
		panic(fmt.Sprintf("missing resource %s", reflect.TypeFor[T]()))
	}
	return r
}

var typeOfCommands = reflect.TypeOf(Commands{})

func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())
	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		if argType.Kind() != reflect.Pointer {
			app.unresolved(systemValue, systemType, argType)
		}
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, ok := app.resources[underlyingType]; ok {
			args[i] = reflect.ValueOf(resource)
		} else {
			app.unresolved(systemValue, systemType, argType)
		}
	}
	systemValue.Call(args)
}

func (app *App) unresolved(systemValue reflect.Value, systemType, argType reflect.Type) {
	panic(fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
		runtime.FuncForPC(systemValue.Pointer()).Name(),
		systemType,
		argType,
	))
}

// FlushCommands applies buffered despawns, then spawns. Destroy hooks run
// before the emitter is marked destroyed; awake hooks run after it is stored.
func (app *App) FlushCommands() {
	if len(app.pendingSpawns) == 0 && len(app.pendingDespawns) == 0 {
		return
	}

	for _, id := range app.pendingDespawns {
		e, ok := app.emitters.remove(id)
		if !ok {
			continue
		}
		for _, hook := range app.destroyHooks {
			hook(id, e)
		}
		e.destroyed = true
	}
	app.pendingDespawns = app.pendingDespawns[:0]

	for _, s := range app.pendingSpawns {
		app.emitters.insert(s.id, s.emitter)
		for _, hook := range app.awakeHooks {
			hook(s.id, s.emitter)
		}
	}
	app.pendingSpawns = app.pendingSpawns[:0]
}

func (app *App) OnEmitterAwake(hook EmitterHook) *App {
	app.awakeHooks = append(app.awakeHooks, hook)
	return app
}

func (app *App) OnEmitterDestroy(hook EmitterHook) *App {
	app.destroyHooks = append(app.destroyHooks, hook)
	return app
}
