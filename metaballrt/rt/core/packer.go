package core

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultMaxParticleCount = 100
	DefaultOutlineSize      = 1.0

	// reservedGeometryW fills the unused 4th geometry component.
	reservedGeometryW = 1.0
	colorScale        = 1.0 / 255.0
)

// RenderPassEvent selects where in the frame the compositor draws.
// The packer passes it through untouched.
type RenderPassEvent int

const (
	RenderPassBeforePostProcessing RenderPassEvent = iota
	RenderPassAfterPostProcessing
)

func (e RenderPassEvent) String() string {
	switch e {
	case RenderPassBeforePostProcessing:
		return "before_post_processing"
	case RenderPassAfterPostProcessing:
		return "after_post_processing"
	}
	return fmt.Sprintf("RenderPassEvent(%d)", int(e))
}

func ParseRenderPassEvent(s string) (RenderPassEvent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "before_post_processing":
		return RenderPassBeforePostProcessing, nil
	case "", "after_post_processing":
		return RenderPassAfterPostProcessing, nil
	}
	return 0, fmt.Errorf("unknown render pass event %q", s)
}

// Settings configures the metaball pass.
type Settings struct {
	MaxParticleCount int
	OutlineSize      float32 // [0,1]
	NoiseTexture     *NoiseTexture
	RenderPassEvent  RenderPassEvent

	// StrictSources panics when a destroyed source is still registered
	// instead of skipping it.
	StrictSources bool
}

func DefaultSettings() Settings {
	return Settings{
		MaxParticleCount: DefaultMaxParticleCount,
		OutlineSize:      DefaultOutlineSize,
		RenderPassEvent:  RenderPassAfterPostProcessing,
	}
}

// FrameBuffers is device-side storage mirroring the packed frame.
type FrameBuffers interface {
	Allocate(capacity int) error
	Write(geometry, color BufferView) error
	Release()
}

// CompositeParams is everything the compositor binds for one draw.
type CompositeParams struct {
	ParticleCount int
	OutlineWidth  float32
	SurfaceScale  float32
	Geometry      BufferView
	Color         BufferView
	Distortion    *NoiseTexture
	Event         RenderPassEvent
}

// Compositor turns a packed frame into the blended blob image with one full-surface draw.
type Compositor interface {
	Composite(params CompositeParams) error
}

type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipEmpty
	SkipMissingDependency
	SkipAllocation
	SkipDeviceWrite
	SkipClosed
	skipReasonCount
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipEmpty:
		return "empty"
	case SkipMissingDependency:
		return "missing_dependency"
	case SkipAllocation:
		return "allocation"
	case SkipDeviceWrite:
		return "device_write"
	case SkipClosed:
		return "closed"
	}
	return fmt.Sprintf("SkipReason(%d)", int(r))
}

// FrameResult describes one Pack call.
type FrameResult struct {
	Total        int // particles available across sources
	Packed       int // effective count
	Dropped      int // truncated by the capacity cap
	StaleSources int
	SourceCounts []int // per live source, registry order; valid until the next Pack
	Skipped      SkipReason
	Drawn        bool
}

type PackerStats struct {
	FramesPacked     uint64
	FramesSkipped    [skipReasonCount]uint64
	ParticlesDropped uint64
	StaleSources     uint64
	Allocations      uint64
	CompositeErrors  uint64
}

func (s PackerStats) Skipped(r SkipReason) uint64 {
	if r < 0 || r >= skipReasonCount {
		return 0
	}
	return s.FramesSkipped[r]
}

// Packer aggregates every registered source into one bounded packed frame
// and hands it to the compositor. It is driven once per frame from the render thread.
type Packer struct {
	registry   *SourceRegistry
	settings   Settings
	frame      PackedFrame
	device     FrameBuffers
	deviceCap  int
	compositor Compositor
	log        Logger

	sourceCounts []int
	stats        PackerStats
	closed       bool
}

func NewPacker(registry *SourceRegistry, settings Settings, log Logger) *Packer {
	if log == nil {
		log = nopLogger{}
	}
	if registry == nil {
		registry = NewSourceRegistry()
	}
	return &Packer{
		registry: registry,
		settings: settings,
		log:      log,
	}
}

func (p *Packer) Registry() *SourceRegistry { return p.registry }
func (p *Packer) Settings() Settings        { return p.settings }
func (p *Packer) Stats() PackerStats        { return p.stats }

// Frame exposes the packed frame read-only.
func (p *Packer) Frame() *PackedFrame { return &p.frame }

func (p *Packer) SetCompositor(c Compositor) { p.compositor = c }

// SetDeviceBuffers attaches device storage. Previously attached storage is released.
func (p *Packer) SetDeviceBuffers(fb FrameBuffers) {
	if p.device != nil && p.deviceCap > 0 {
		p.device.Release()
	}
	p.device = fb
	p.deviceCap = 0
}

// SetSettings replaces the settings. A capacity change releases the current
// buffers; the next frame allocates fresh ones at the new capacity.
func (p *Packer) SetSettings(s Settings) {
	if s.MaxParticleCount != p.settings.MaxParticleCount {
		p.releaseBuffers()
	}
	p.settings = s
}

// EnsureAllocated allocates host and device buffers at the configured capacity
// if they are not allocated yet.
func (p *Packer) EnsureAllocated() error {
	if p.closed {
		return fmt.Errorf("ensure allocated: %w", ErrNotAllocated)
	}
	capacity := p.settings.MaxParticleCount
	allocated, err := p.frame.EnsureAllocated(capacity)
	if err != nil {
		return err
	}
	if allocated {
		p.stats.Allocations++
	}

	if p.device != nil && (allocated || p.deviceCap != capacity) {
		if p.deviceCap > 0 {
			p.device.Release()
			p.deviceCap = 0
		}
		if err := p.device.Allocate(capacity); err != nil {
			// A failed Allocate may still hold storage; drop it so the next frame retries clean.
			p.device.Release()
			return fmt.Errorf("allocate device buffers (%d): %w", capacity, err)
		}
		p.deviceCap = capacity
	}
	return nil
}

// Pack builds this frame's packed data from the registry and composites it.
//
// Particles are taken first-come in registry order, then in each source's own
// order; everything past MaxParticleCount is dropped. Per-frame failures never
// propagate: the frame degrades to no effect.
func (p *Packer) Pack(view View) FrameResult {
	var res FrameResult

	if p.closed {
		return p.skip(res, SkipClosed)
	}
	if view == nil || p.compositor == nil {
		if p.log.DebugEnabled() {
			p.log.Debugf("metaballs: no view or compositor bound, skipping frame")
		}
		return p.skip(res, SkipMissingDependency)
	}
	if err := p.EnsureAllocated(); err != nil {
		p.log.Errorf("metaballs: %v", err)
		return p.skip(res, SkipAllocation)
	}

	snapshots := p.registry.SnapshotAll()
	p.sourceCounts = p.sourceCounts[:0]
	for _, s := range snapshots {
		if s.Stale {
			res.StaleSources++
			if p.settings.StrictSources {
				panic(fmt.Sprintf("metaballs: source %v destroyed while still registered", s.Handle))
			}
			continue
		}
		p.sourceCounts = append(p.sourceCounts, s.Count)
		res.Total += s.Count
	}
	res.SourceCounts = p.sourceCounts
	if res.StaleSources > 0 {
		p.stats.StaleSources += uint64(res.StaleSources)
		p.log.Warnf("metaballs: skipped %d destroyed source(s) still registered", res.StaleSources)
	}

	if res.Total == 0 {
		return p.skip(res, SkipEmpty)
	}

	effective := min(res.Total, p.frame.Capacity())
	res.Packed = effective
	res.Dropped = res.Total - effective

	i := 0
pack:
	for _, s := range snapshots {
		if s.Stale {
			continue
		}
		for _, rec := range s.Particles {
			if i >= effective {
				break pack
			}
			screen := view.WorldToScreen(rec.Position)
			p.frame.set(i,
				mgl32.Vec4{screen.X(), screen.Y(), rec.Size * 0.5, reservedGeometryW},
				NormalizeColor(rec.Color),
			)
			i++
		}
	}
	p.frame.setCount(effective)
	p.stats.ParticlesDropped += uint64(res.Dropped)

	if p.device != nil {
		if err := p.device.Write(p.frame.Geometry(), p.frame.Color()); err != nil {
			p.log.Warnf("metaballs: device upload failed: %v", err)
			return p.skip(res, SkipDeviceWrite)
		}
	}

	err := p.compositor.Composite(CompositeParams{
		ParticleCount: effective,
		OutlineWidth:  p.settings.OutlineSize,
		SurfaceScale:  view.OrthographicSize(),
		Geometry:      p.frame.Geometry(),
		Color:         p.frame.Color(),
		Distortion:    p.settings.NoiseTexture,
		Event:         p.settings.RenderPassEvent,
	})
	if err != nil {
		p.stats.CompositeErrors++
		p.log.Warnf("metaballs: composite failed: %v", err)
	} else {
		res.Drawn = true
	}
	p.stats.FramesPacked++
	return res
}

// Close releases all buffers. Safe to call more than once.
func (p *Packer) Close() {
	if p.closed {
		return
	}
	p.releaseBuffers()
	p.closed = true
}

func (p *Packer) Closed() bool { return p.closed }

func (p *Packer) releaseBuffers() {
	p.frame.Release()
	if p.device != nil && p.deviceCap > 0 {
		p.device.Release()
	}
	p.deviceCap = 0
}

func (p *Packer) skip(res FrameResult, reason SkipReason) FrameResult {
	res.Skipped = reason
	p.stats.FramesSkipped[reason]++
	return res
}

// NormalizeColor maps 8-bit channels to [0,1].
func NormalizeColor(c Color32) mgl32.Vec4 {
	return mgl32.Vec4{
		float32(c.R) * colorScale,
		float32(c.G) * colorScale,
		float32(c.B) * colorScale,
		float32(c.A) * colorScale,
	}
}
