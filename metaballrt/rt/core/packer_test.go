package core

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPacker(capacity int, sources ...Source) (*Packer, *recordingCompositor) {
	reg := NewSourceRegistry()
	for _, s := range sources {
		reg.Register(s)
	}
	settings := DefaultSettings()
	settings.MaxParticleCount = capacity
	p := NewPacker(reg, settings, nil)
	comp := &recordingCompositor{}
	p.SetCompositor(comp)
	return p, comp
}

func xs(entries []mgl32.Vec4) []float32 {
	out := make([]float32, len(entries))
	for i, e := range entries {
		out[i] = e.X()
	}
	return out
}

func TestPacker_EffectiveCountIsMinOfTotalAndCapacity(t *testing.T) {
	cases := []struct {
		name     string
		capacity int
		counts   []int
	}{
		{"under", 10, []int{3, 4}},
		{"exact", 7, []int{3, 4}},
		{"over", 5, []int{3, 4}},
		{"one source over", 2, []int{9}},
		{"empty sources around", 4, []int{0, 3, 0, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var sources []Source
			total := 0
			for i, n := range tc.counts {
				sources = append(sources, &sliceSource{particles: tagged(i, n)})
				total += n
			}
			p, comp := newTestPacker(tc.capacity, sources...)

			res := p.Pack(identityView{size: 5})

			want := min(total, tc.capacity)
			assert.Equal(t, want, res.Packed)
			assert.Equal(t, total, res.Total)
			assert.Equal(t, total-want, res.Dropped)
			assert.Equal(t, want, p.Frame().Count())
			require.Len(t, comp.calls, 1)
			assert.Equal(t, want, comp.last().params.ParticleCount)
			assert.Equal(t, tc.counts, res.SourceCounts)
		})
	}
}

func TestPacker_TruncatesInRegistryOrder(t *testing.T) {
	a := &sliceSource{particles: tagged(1, 2)}
	b := &sliceSource{particles: tagged(2, 2)}
	p, comp := newTestPacker(3, a, b)

	res := p.Pack(identityView{})

	assert.Equal(t, 3, res.Packed)
	assert.Equal(t, 1, res.Dropped)
	// a0, a1, b0; b1 dropped
	assert.Equal(t, []float32{1000, 1001, 2000}, xs(comp.last().geometry))
}

func TestPacker_SingleSourceOverCapacityKeepsArrayPrefix(t *testing.T) {
	src := &sliceSource{particles: tagged(0, 150)}
	p, comp := newTestPacker(100, src)

	res := p.Pack(identityView{})

	require.Equal(t, 100, res.Packed)
	got := xs(comp.last().geometry)
	require.Len(t, got, 100)
	for i, x := range got {
		assert.Equal(t, float32(i), x)
	}
	assert.Equal(t, uint64(50), p.Stats().ParticlesDropped)
}

func TestPacker_DeregisteredSourceIsAbsent(t *testing.T) {
	a := &sliceSource{particles: tagged(1, 3)}
	b := &sliceSource{particles: tagged(2, 2)}
	p, comp := newTestPacker(10)
	ha := p.Registry().Register(a)
	p.Registry().Register(b)
	require.True(t, p.Registry().Deregister(ha))

	res := p.Pack(identityView{})

	assert.Equal(t, 2, res.Packed)
	assert.Equal(t, []float32{2000, 2001}, xs(comp.last().geometry))
	assert.Equal(t, 0, a.queries)
}

func TestPacker_EmptyFrameLeavesBuffersUntouched(t *testing.T) {
	src := &sliceSource{particles: tagged(3, 2)}
	p, comp := newTestPacker(4, src)

	res := p.Pack(identityView{})
	require.True(t, res.Drawn)
	before := p.Frame().Geometry().Slice()

	src.particles = nil
	res = p.Pack(identityView{})

	assert.Equal(t, SkipEmpty, res.Skipped)
	assert.False(t, res.Drawn)
	assert.Len(t, comp.calls, 1, "no draw for an empty frame")
	assert.Equal(t, before, p.Frame().Geometry().Slice())
	assert.Equal(t, uint64(1), p.Stats().Skipped(SkipEmpty))
}

func TestPacker_FirstEmptyFrameIsZeroState(t *testing.T) {
	p, comp := newTestPacker(4, &sliceSource{})

	res := p.Pack(identityView{})

	assert.Equal(t, SkipEmpty, res.Skipped)
	assert.Empty(t, comp.calls)
	require.True(t, p.Frame().Allocated())
	assert.Equal(t, 0, p.Frame().Count())
	for i := 0; i < p.Frame().Capacity(); i++ {
		assert.Equal(t, mgl32.Vec4{}, p.Frame().geometry[i])
		assert.Equal(t, mgl32.Vec4{}, p.Frame().color[i])
	}
}

func TestPacker_RepackIsDeterministic(t *testing.T) {
	a := &sliceSource{particles: tagged(1, 4)}
	b := &sliceSource{particles: tagged(2, 4)}
	p, comp := newTestPacker(6, a, b)

	p.Pack(identityView{})
	first := comp.last()
	p.Pack(identityView{})
	second := comp.last()

	assert.Equal(t, first.geometry, second.geometry)
	assert.Equal(t, first.color, second.color)
}

func TestPacker_GeometryAndColorEncoding(t *testing.T) {
	src := &sliceSource{particles: []ParticleRecord{
		{Position: mgl32.Vec3{10, 20, 5}, Size: 3, Color: Color32{255, 255, 255, 255}},
		{Position: mgl32.Vec3{-4, 7, 0}, Size: 0.5, Color: Color32{0, 0, 0, 0}},
		{Position: mgl32.Vec3{1, 1, 1}, Size: 1, Color: Color32{51, 102, 153, 204}},
	}}
	p, comp := newTestPacker(8, src)
	p.settings.OutlineSize = 0.25

	p.Pack(identityView{size: 7.5})
	call := comp.last()

	assert.Equal(t, mgl32.Vec4{10, 20, 1.5, 1}, call.geometry[0])
	assert.Equal(t, mgl32.Vec4{-4, 7, 0.25, 1}, call.geometry[1])

	for c := 0; c < 4; c++ {
		assert.InDelta(t, 1.0, call.color[0][c], 1e-6)
		assert.Equal(t, float32(0), call.color[1][c])
	}
	assert.InDelta(t, 0.2, call.color[2][0], 1e-6)
	assert.InDelta(t, 0.4, call.color[2][1], 1e-6)
	assert.InDelta(t, 0.6, call.color[2][2], 1e-6)
	assert.InDelta(t, 0.8, call.color[2][3], 1e-6)

	assert.Equal(t, float32(0.25), call.params.OutlineWidth)
	assert.Equal(t, float32(7.5), call.params.SurfaceScale)
	assert.Equal(t, RenderPassAfterPostProcessing, call.params.Event)
	assert.Nil(t, call.params.Distortion)
}

func TestPacker_OverReportingSourceIsClamped(t *testing.T) {
	src := &sliceSource{particles: tagged(0, 3), overReport: 5}
	p, _ := newTestPacker(100, src)

	res := p.Pack(identityView{})

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Packed)
}

func TestPacker_ReallocatesOnCapacityChange(t *testing.T) {
	src := &sliceSource{particles: tagged(0, 300)}
	p, comp := newTestPacker(50, src)
	dev := &fakeDeviceBuffers{}
	p.SetDeviceBuffers(dev)

	for i := 0; i < 3; i++ {
		res := p.Pack(identityView{})
		require.Equal(t, 50, res.Packed)
	}
	assert.Equal(t, []int{50}, dev.allocations)
	assert.Equal(t, uint64(1), p.Stats().Allocations)

	settings := p.Settings()
	settings.MaxParticleCount = 200
	p.SetSettings(settings)
	assert.False(t, p.Frame().Allocated(), "old buffers released before the next allocation")
	assert.Equal(t, 1, dev.releases)

	res := p.Pack(identityView{})

	assert.Equal(t, 200, res.Packed)
	assert.Equal(t, 200, p.Frame().Capacity())
	assert.Equal(t, []int{50, 200}, dev.allocations)
	assert.Equal(t, 200, dev.capacity)
	assert.Len(t, comp.last().geometry, 200)
	assert.Equal(t, 200*Vec4Stride*2, dev.lastBytes)
}

func TestPacker_MissingCompositorSkips(t *testing.T) {
	reg := NewSourceRegistry()
	reg.Register(&sliceSource{particles: tagged(0, 3)})
	p := NewPacker(reg, DefaultSettings(), nil)

	res := p.Pack(identityView{})
	assert.Equal(t, SkipMissingDependency, res.Skipped)
	assert.False(t, p.Frame().Allocated())

	p.SetCompositor(&recordingCompositor{})
	res = p.Pack(nil)
	assert.Equal(t, SkipMissingDependency, res.Skipped)
	assert.Equal(t, uint64(2), p.Stats().Skipped(SkipMissingDependency))
}

func TestPacker_CompositeErrorIsAbsorbed(t *testing.T) {
	log := &countingLogger{}
	reg := NewSourceRegistry()
	reg.Register(&sliceSource{particles: tagged(0, 3)})
	p := NewPacker(reg, DefaultSettings(), log)
	p.SetCompositor(&recordingCompositor{err: errors.New("device lost")})

	var res FrameResult
	require.NotPanics(t, func() { res = p.Pack(identityView{}) })

	assert.False(t, res.Drawn)
	assert.Equal(t, 3, res.Packed)
	assert.Equal(t, uint64(1), p.Stats().CompositeErrors)
	assert.Equal(t, 1, log.warnings)
}

func TestPacker_DeviceWriteErrorSkipsDraw(t *testing.T) {
	p, comp := newTestPacker(10, &sliceSource{particles: tagged(0, 3)})
	p.SetDeviceBuffers(&fakeDeviceBuffers{writeErr: errors.New("queue full")})

	res := p.Pack(identityView{})

	assert.Equal(t, SkipDeviceWrite, res.Skipped)
	assert.Empty(t, comp.calls)
}

func TestPacker_RecoversAfterFailedDeviceAllocation(t *testing.T) {
	log := &countingLogger{}
	reg := NewSourceRegistry()
	reg.Register(&sliceSource{particles: tagged(0, 3)})
	settings := DefaultSettings()
	settings.MaxParticleCount = 10
	p := NewPacker(reg, settings, log)
	comp := &recordingCompositor{}
	p.SetCompositor(comp)
	dev := &fakeDeviceBuffers{allocFailures: 1}
	p.SetDeviceBuffers(dev)

	first := p.Pack(identityView{})
	assert.Equal(t, SkipAllocation, first.Skipped)
	assert.Empty(t, comp.calls)
	assert.Zero(t, dev.capacity, "storage taken by the failed allocation is released")
	assert.Equal(t, 1, dev.releases)
	assert.Equal(t, 1, log.errors)

	second := p.Pack(identityView{})
	assert.Equal(t, SkipNone, second.Skipped)
	require.Len(t, comp.calls, 1)
	assert.Equal(t, []float32{0, 1, 2}, xs(comp.last().geometry))
	assert.Equal(t, []int{10, 10}, dev.allocations)
	assert.Equal(t, 1, dev.writes)

	p.Close()
	assert.Equal(t, 2, dev.releases)
	assert.Zero(t, dev.capacity)
}

func TestPacker_InvalidCapacitySkipsFrame(t *testing.T) {
	log := &countingLogger{}
	reg := NewSourceRegistry()
	reg.Register(&sliceSource{particles: tagged(0, 3)})
	settings := DefaultSettings()
	settings.MaxParticleCount = 0
	p := NewPacker(reg, settings, log)
	p.SetCompositor(&recordingCompositor{})

	res := p.Pack(identityView{})

	assert.Equal(t, SkipAllocation, res.Skipped)
	assert.Equal(t, 1, log.errors)
}

func TestPacker_StaleSourceSkippedWhenLenient(t *testing.T) {
	a := &sliceSource{particles: tagged(1, 2)}
	b := &sliceSource{particles: tagged(2, 2)}
	log := &countingLogger{}
	reg := NewSourceRegistry()
	reg.Register(a)
	reg.Register(b)
	p := NewPacker(reg, DefaultSettings(), log)
	comp := &recordingCompositor{}
	p.SetCompositor(comp)

	a.destroyed = true
	res := p.Pack(identityView{})

	assert.Equal(t, 1, res.StaleSources)
	assert.Equal(t, []float32{2000, 2001}, xs(comp.last().geometry))
	assert.Equal(t, 0, a.queries)
	assert.Equal(t, 1, log.warnings)
	assert.Equal(t, uint64(1), p.Stats().StaleSources)
}

func TestPacker_StaleSourcePanicsWhenStrict(t *testing.T) {
	a := &sliceSource{particles: tagged(1, 2), destroyed: true}
	p, _ := newTestPacker(10, a)
	p.settings.StrictSources = true

	assert.Panics(t, func() { p.Pack(identityView{}) })
}

func TestPacker_CloseIsIdempotent(t *testing.T) {
	p, _ := newTestPacker(10, &sliceSource{particles: tagged(0, 3)})
	dev := &fakeDeviceBuffers{}
	p.SetDeviceBuffers(dev)
	p.Pack(identityView{})

	p.Close()
	p.Close()

	assert.True(t, p.Closed())
	assert.False(t, p.Frame().Allocated())
	assert.Equal(t, 1, dev.releases)
	assert.Equal(t, SkipClosed, p.Pack(identityView{}).Skipped)
	assert.Error(t, p.EnsureAllocated())
}

func TestPacker_CloseWithoutAllocation(t *testing.T) {
	p, _ := newTestPacker(10)
	dev := &fakeDeviceBuffers{}
	p.SetDeviceBuffers(dev)

	assert.NotPanics(t, p.Close)
	assert.Equal(t, 0, dev.releases)
}

func TestParseRenderPassEvent(t *testing.T) {
	ev, err := ParseRenderPassEvent("before_post_processing")
	require.NoError(t, err)
	assert.Equal(t, RenderPassBeforePostProcessing, ev)

	ev, err = ParseRenderPassEvent("")
	require.NoError(t, err)
	assert.Equal(t, RenderPassAfterPostProcessing, ev)

	_, err = ParseRenderPassEvent("sometime")
	assert.Error(t, err)
}
