package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrInvalidCapacity  = errors.New("metaball capacity must be positive")
	ErrNotAllocated     = errors.New("metaball buffers not allocated")
	ErrCapacityMismatch = errors.New("metaball buffer capacity mismatch")
)

// Vec4Stride is the size of one packed entry in bytes (vec4<f32>).
const Vec4Stride = 16

// PackedFrame holds the geometry/color buffer pair for one frame.
// Both buffers are sized to the capacity at allocation time and reused every frame.
//
//	geometry[i] = (screenX, screenY, screenRadius, reserved)
//	color[i]    = (r, g, b, a) in [0,1]
type PackedFrame struct {
	geometry []mgl32.Vec4
	color    []mgl32.Vec4
	count    int
	capacity int
}

// EnsureAllocated allocates storage for capacity entries on first use.
// It is a no-op when already allocated at that capacity. A different capacity
// releases the old storage before allocating; buffers are never resized in place.
// Reports whether an allocation happened.
func (f *PackedFrame) EnsureAllocated(capacity int) (bool, error) {
	if capacity <= 0 {
		return false, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if f.Allocated() {
		if f.capacity == capacity {
			return false, nil
		}
		f.Release()
	}

	f.geometry = make([]mgl32.Vec4, capacity)
	f.color = make([]mgl32.Vec4, capacity)
	f.capacity = capacity
	f.count = 0
	return true, nil
}

// Release frees the storage. Safe to call on a released or never allocated frame.
func (f *PackedFrame) Release() {
	f.geometry = nil
	f.color = nil
	f.capacity = 0
	f.count = 0
}

func (f *PackedFrame) Allocated() bool { return f.geometry != nil }
func (f *PackedFrame) Capacity() int   { return f.capacity }
func (f *PackedFrame) Count() int      { return f.count }

// Geometry returns a read-only view of the packed geometry entries [0, Count).
func (f *PackedFrame) Geometry() BufferView { return BufferView{data: f.geometry[:f.count]} }

// Color returns a read-only view of the packed color entries [0, Count).
func (f *PackedFrame) Color() BufferView { return BufferView{data: f.color[:f.count]} }

func (f *PackedFrame) set(i int, geometry, color mgl32.Vec4) {
	f.geometry[i] = geometry
	f.color[i] = color
}

func (f *PackedFrame) setCount(n int) { f.count = n }

// BufferView is a read-only window over packed entries.
type BufferView struct {
	data []mgl32.Vec4
}

func (v BufferView) Len() int            { return len(v.data) }
func (v BufferView) At(i int) mgl32.Vec4 { return v.data[i] }
func (v BufferView) SizeBytes() int      { return len(v.data) * Vec4Stride }

// AppendBytes appends the entries to dst as little-endian f32 quadruples,
// the layout of array<vec4<f32>> in a WGSL storage buffer.
func (v BufferView) AppendBytes(dst []byte) []byte {
	for _, e := range v.data {
		for _, c := range e {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(c))
		}
	}
	return dst
}

// Slice copies the entries out. Intended for tests and diagnostics.
func (v BufferView) Slice() []mgl32.Vec4 {
	out := make([]mgl32.Vec4, len(v.data))
	copy(out, v.data)
	return out
}
