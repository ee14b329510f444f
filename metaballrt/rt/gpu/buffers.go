package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/metaballs/metaballrt/rt/core"
)

// MetaballBuffers is the device-side geometry/color storage buffer pair.
// Both are fixed at capacity*16 bytes; a new capacity requires Release then Allocate.
type MetaballBuffers struct {
	Device *wgpu.Device

	GeometryBuf *wgpu.Buffer
	ColorBuf    *wgpu.Buffer

	capacity   int
	generation uint64
	staging    []byte
}

func NewMetaballBuffers(device *wgpu.Device) *MetaballBuffers {
	return &MetaballBuffers{Device: device}
}

func (b *MetaballBuffers) Capacity() int { return b.capacity }

// Generation changes on every allocation so bind groups know to rebuild.
func (b *MetaballBuffers) Generation() uint64 { return b.generation }

func (b *MetaballBuffers) Allocated() bool { return b.GeometryBuf != nil }

func (b *MetaballBuffers) Allocate(capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: %d", core.ErrInvalidCapacity, capacity)
	}
	if b.Allocated() {
		return fmt.Errorf("%w: already allocated with %d entries", core.ErrCapacityMismatch, b.capacity)
	}

	size := uint64(capacity * core.Vec4Stride)
	geometry, err := b.createBuffer("Metaball Geometry", size)
	if err != nil {
		return err
	}
	color, err := b.createBuffer("Metaball Color", size)
	if err != nil {
		geometry.Release()
		return err
	}
	b.GeometryBuf = geometry
	b.ColorBuf = color
	b.capacity = capacity
	b.generation++

	// Start from a zeroed state so the first bind never reads garbage.
	zeros := make([]byte, size)
	queue := b.Device.GetQueue()
	if err := queue.WriteBuffer(b.GeometryBuf, 0, zeros); err != nil {
		b.Release()
		return fmt.Errorf("clear metaball geometry: %w", err)
	}
	if err := queue.WriteBuffer(b.ColorBuf, 0, zeros); err != nil {
		b.Release()
		return fmt.Errorf("clear metaball color: %w", err)
	}
	return nil
}

func (b *MetaballBuffers) createBuffer(label string, size uint64) (*wgpu.Buffer, error) {
	buf, err := b.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s buffer: %w", label, err)
	}
	return buf, nil
}

// Write uploads the packed entries to the start of each buffer.
func (b *MetaballBuffers) Write(geometry, color core.BufferView) error {
	if !b.Allocated() {
		return core.ErrNotAllocated
	}
	if geometry.Len() > b.capacity || color.Len() > b.capacity {
		return fmt.Errorf("%w: %d entries into %d", core.ErrCapacityMismatch, geometry.Len(), b.capacity)
	}
	if geometry.Len() == 0 {
		return nil
	}

	queue := b.Device.GetQueue()
	b.staging = geometry.AppendBytes(b.staging[:0])
	if err := queue.WriteBuffer(b.GeometryBuf, 0, b.staging); err != nil {
		return fmt.Errorf("write metaball geometry: %w", err)
	}
	b.staging = color.AppendBytes(b.staging[:0])
	if err := queue.WriteBuffer(b.ColorBuf, 0, b.staging); err != nil {
		return fmt.Errorf("write metaball color: %w", err)
	}
	return nil
}

// Release frees both buffers. Safe to call when nothing is allocated.
func (b *MetaballBuffers) Release() {
	if b.GeometryBuf != nil {
		b.GeometryBuf.Release()
		b.GeometryBuf = nil
	}
	if b.ColorBuf != nil {
		b.ColorBuf.Release()
		b.ColorBuf = nil
	}
	b.capacity = 0
}

func (b *MetaballBuffers) SizeBytes() uint64 {
	return uint64(b.capacity * core.Vec4Stride)
}
