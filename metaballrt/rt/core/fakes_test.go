package core

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

type sliceSource struct {
	particles []ParticleRecord
	// overReport is added to the reported count without backing records.
	overReport int
	destroyed  bool
	queries    int
}

func (s *sliceSource) ParticleCount() int { return len(s.particles) + s.overReport }

func (s *sliceSource) GetParticles(buf []ParticleRecord) int {
	s.queries++
	return copy(buf, s.particles)
}

func (s *sliceSource) Destroyed() bool { return s.destroyed }

// selfRemovingSource deregisters itself from reg the first time it is counted.
type selfRemovingSource struct {
	sliceSource
	reg *SourceRegistry
}

func (s *selfRemovingSource) ParticleCount() int {
	if s.reg != nil {
		s.reg.DeregisterSource(s)
		s.reg = nil
	}
	return s.sliceSource.ParticleCount()
}

// tagged builds n particles whose X position encodes tag*1000+i.
func tagged(tag, n int) []ParticleRecord {
	out := make([]ParticleRecord, n)
	for i := range out {
		out[i] = ParticleRecord{
			Position: mgl32.Vec3{float32(tag*1000 + i), float32(i), 0},
			Size:     2,
			Color:    Color32{R: 255, G: 0, B: 128, A: 255},
		}
	}
	return out
}

type identityView struct{ size float32 }

func (v identityView) WorldToScreen(p mgl32.Vec3) mgl32.Vec2 { return mgl32.Vec2{p.X(), p.Y()} }
func (v identityView) OrthographicSize() float32           { return v.size }

type compositeCall struct {
	params   CompositeParams
	geometry []mgl32.Vec4
	color    []mgl32.Vec4
}

type recordingCompositor struct {
	calls []compositeCall
	err   error
}

func (c *recordingCompositor) Composite(p CompositeParams) error {
	c.calls = append(c.calls, compositeCall{
		params:   p,
		geometry: p.Geometry.Slice(),
		color:    p.Color.Slice(),
	})
	return c.err
}

func (c *recordingCompositor) last() compositeCall { return c.calls[len(c.calls)-1] }

type fakeDeviceBuffers struct {
	capacity    int
	allocations []int
	releases    int
	writes      int
	lastBytes   int
	writeErr    error
	// allocFailures makes the next n Allocate calls fail after taking storage.
	allocFailures int
}

func (b *fakeDeviceBuffers) Allocate(capacity int) error {
	if b.capacity != 0 {
		return errors.New("allocate without release")
	}
	b.capacity = capacity
	b.allocations = append(b.allocations, capacity)
	if b.allocFailures > 0 {
		b.allocFailures--
		return errors.New("zero fill failed")
	}
	return nil
}

func (b *fakeDeviceBuffers) Write(geometry, color BufferView) error {
	if b.writeErr != nil {
		return b.writeErr
	}
	if b.capacity == 0 {
		return ErrNotAllocated
	}
	if geometry.Len() > b.capacity {
		return ErrCapacityMismatch
	}
	b.writes++
	b.lastBytes = len(geometry.AppendBytes(nil)) + len(color.AppendBytes(nil))
	return nil
}

func (b *fakeDeviceBuffers) Release() {
	if b.capacity == 0 {
		return
	}
	b.capacity = 0
	b.releases++
}

type countingLogger struct {
	nopLogger
	warnings int
	errors   int
}

func (l *countingLogger) Warnf(format string, args ...any)  { l.warnings++ }
func (l *countingLogger) Errorf(format string, args ...any) { l.errors++ }
