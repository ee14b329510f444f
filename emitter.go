package metaballs

import (
	"math"
	"math/rand"

	"github.com/gekko3d/metaballs/config"
	"github.com/gekko3d/metaballs/metaballrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	_ core.Source   = (*ParticleEmitter)(nil)
	_ core.Lifetime = (*ParticleEmitter)(nil)
)

// ParticleEmitter is a CPU-simulated 2D particle emitter and a metaball source.
type ParticleEmitter struct {
	Name    string
	Enabled bool

	Position         mgl32.Vec2
	DirectionDegrees float32 // 0 = +Y, counter-clockwise

	MaxParticles int

	SpawnRate        float32    // particles per second
	LifetimeRange    [2]float32 // seconds (min,max)
	StartSpeedRange  [2]float32 // units/sec (min,max)
	StartSizeRange   [2]float32 // world units (min,max)
	StartColorMin    [4]float32 // RGBA min (0..1)
	StartColorMax    [4]float32 // RGBA max (0..1)
	Gravity          float32    // positive acceleration toward -Y
	Drag             float32    // per-second linear drag (0..inf)
	ConeAngleDegrees float32    // half-angle spread around the direction

	Seed int64
	// TimeToLive despawns the emitter after this many seconds when the
	// lifecycle module is installed. 0 keeps it forever.
	TimeToLive float32

	pool      particlePool
	rng       *rand.Rand
	handle    core.Handle
	destroyed bool
}

func EmitterFromConfig(c config.EmitterConfig, seed int64) *ParticleEmitter {
	return &ParticleEmitter{
		Name:             c.Name,
		Enabled:          true,
		Position:         mgl32.Vec2{c.Position[0], c.Position[1]},
		DirectionDegrees: c.DirectionDegrees,
		MaxParticles:     c.MaxParticles,
		SpawnRate:        c.SpawnRate,
		LifetimeRange:    c.Lifetime,
		StartSpeedRange:  c.Speed,
		StartSizeRange:   c.Size,
		StartColorMin:    c.ColorMin,
		StartColorMax:    c.ColorMax,
		Gravity:          c.Gravity,
		Drag:             c.Drag,
		ConeAngleDegrees: c.ConeDegrees,
		Seed:             seed,
		TimeToLive:       c.TimeToLive,
	}
}

// particlePool is structure-of-arrays storage with swap-remove on death.
type particlePool struct {
	pos   []mgl32.Vec2
	vel   []mgl32.Vec2
	age   []float32
	life  []float32
	size  []float32
	color []core.Color32

	alive    int
	spawnAcc float32 // fractional spawns
	capacity int
}

func (p *particlePool) ensure(capacity int) {
	if capacity <= 0 {
		capacity = 1
	}
	if p.capacity == capacity && p.pos != nil {
		return
	}
	p.capacity = capacity
	p.pos = make([]mgl32.Vec2, capacity)
	p.vel = make([]mgl32.Vec2, capacity)
	p.age = make([]float32, capacity)
	p.life = make([]float32, capacity)
	p.size = make([]float32, capacity)
	p.color = make([]core.Color32, capacity)
	p.alive = 0
	p.spawnAcc = 0
}

func (p *particlePool) killAt(i int) {
	last := p.alive - 1
	p.pos[i] = p.pos[last]
	p.vel[i] = p.vel[last]
	p.age[i] = p.age[last]
	p.life[i] = p.life[last]
	p.size[i] = p.size[last]
	p.color[i] = p.color[last]
	p.alive--
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func (e *ParticleEmitter) random() *rand.Rand {
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(e.Seed))
	}
	return e.rng
}

// sampleDirection picks a unit vector uniformly within the cone around the
// emitter direction.
func (e *ParticleEmitter) sampleDirection() mgl32.Vec2 {
	angle := mgl32.DegToRad(e.DirectionDegrees)
	if e.ConeAngleDegrees > 0 {
		spread := mgl32.DegToRad(e.ConeAngleDegrees)
		angle += lerp(-spread, spread, e.random().Float32())
	}
	// 0 rad points up.
	return mgl32.Vec2{-float32(math.Sin(float64(angle))), float32(math.Cos(float64(angle)))}
}

func toColor32(c [4]float32) core.Color32 {
	ch := func(v float32) uint8 {
		return uint8(mgl32.Clamp(v, 0, 1)*255 + 0.5)
	}
	return core.Color32{R: ch(c[0]), G: ch(c[1]), B: ch(c[2]), A: ch(c[3])}
}

// Emit spawns up to n particles immediately, bounded by free pool space.
// It returns how many were spawned.
func (e *ParticleEmitter) Emit(n int) int {
	if e.MaxParticles <= 0 || n <= 0 {
		return 0
	}
	pl := &e.pool
	pl.ensure(e.MaxParticles)
	n = min(n, e.MaxParticles-pl.alive)

	rng := e.random()
	for i := 0; i < n; i++ {
		idx := pl.alive
		pl.alive++

		pl.pos[idx] = e.Position
		speed := lerp(e.StartSpeedRange[0], e.StartSpeedRange[1], rng.Float32())
		pl.vel[idx] = e.sampleDirection().Mul(speed)
		pl.age[idx] = 0
		pl.life[idx] = lerp(e.LifetimeRange[0], e.LifetimeRange[1], rng.Float32())
		pl.size[idx] = lerp(e.StartSizeRange[0], e.StartSizeRange[1], rng.Float32())

		var c [4]float32
		for j := range c {
			c[j] = lerp(e.StartColorMin[j], e.StartColorMax[j], rng.Float32())
		}
		pl.color[idx] = toColor32(c)
	}
	return n
}

// Update spawns at SpawnRate and integrates live particles by dt seconds.
func (e *ParticleEmitter) Update(dt float32) {
	if !e.Enabled || e.destroyed || e.MaxParticles <= 0 || dt <= 0 {
		return
	}
	pl := &e.pool
	pl.ensure(e.MaxParticles)

	pl.spawnAcc += e.SpawnRate * dt
	if spawn := int(pl.spawnAcc); spawn > 0 {
		pl.spawnAcc -= float32(spawn)
		e.Emit(spawn)
	}

	drag := float32(math.Max(0, float64(1.0-e.Drag*dt)))
	gravity := mgl32.Vec2{0, -e.Gravity * dt}
	i := 0
	for i < pl.alive {
		age := pl.age[i] + dt
		if age >= pl.life[i] {
			pl.killAt(i)
			continue
		}
		v := pl.vel[i].Add(gravity).Mul(drag)
		pl.vel[i] = v
		pl.pos[i] = pl.pos[i].Add(v.Mul(dt))
		pl.age[i] = age
		i++
	}
}

// Clear kills every live particle.
func (e *ParticleEmitter) Clear() {
	e.pool.alive = 0
	e.pool.spawnAcc = 0
}

func (e *ParticleEmitter) ParticleCount() int {
	if e.destroyed {
		return 0
	}
	return e.pool.alive
}

func (e *ParticleEmitter) GetParticles(buf []ParticleRecord) int {
	if e.destroyed {
		return 0
	}
	pl := &e.pool
	n := min(len(buf), pl.alive)
	for i := 0; i < n; i++ {
		p := pl.pos[i]
		buf[i] = ParticleRecord{
			Position: mgl32.Vec3{p.X(), p.Y(), 0},
			Size:     pl.size[i],
			Color:    pl.color[i],
		}
	}
	return n
}

func (e *ParticleEmitter) Destroyed() bool { return e.destroyed }

// Handle is the registry handle assigned when the emitter was registered for metaballs.
func (e *ParticleEmitter) Handle() core.Handle { return e.handle }

type ParticleRecord = core.ParticleRecord
