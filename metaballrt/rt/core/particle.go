package core

import "github.com/go-gl/mathgl/mgl32"

// Color32 is an 8-bit per channel RGBA color as produced by particle simulators.
type Color32 struct {
	R, G, B, A uint8
}

// ParticleRecord is one particle of a source snapshot. Records are transient:
// the packer reads them once per frame and never retains them.
type ParticleRecord struct {
	Position mgl32.Vec3 // world space
	Size     float32    // world units (diameter)
	Color    Color32
}

// Source is a live particle simulator that can be registered for metaball rendering.
//
// GetParticles fills buf with up to len(buf) records and returns how many were
// written. Implementations must not retain buf.
type Source interface {
	ParticleCount() int
	GetParticles(buf []ParticleRecord) int
}

// Lifetime is implemented by sources that can report they were torn down.
// A destroyed source still present in the registry is a stale reference.
type Lifetime interface {
	Destroyed() bool
}
