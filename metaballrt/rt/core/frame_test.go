package core

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackedFrame_EnsureAllocatedIsLazyAndIdempotent(t *testing.T) {
	var f PackedFrame
	assert.False(t, f.Allocated())

	allocated, err := f.EnsureAllocated(8)
	require.NoError(t, err)
	assert.True(t, allocated)
	assert.Equal(t, 8, f.Capacity())

	f.set(0, mgl32.Vec4{1, 2, 3, 4}, mgl32.Vec4{1, 1, 1, 1})
	f.setCount(1)

	allocated, err = f.EnsureAllocated(8)
	require.NoError(t, err)
	assert.False(t, allocated)
	assert.Equal(t, 1, f.Count(), "no-op keeps contents")
}

func TestPackedFrame_DifferentCapacityAllocatesFresh(t *testing.T) {
	var f PackedFrame
	_, err := f.EnsureAllocated(4)
	require.NoError(t, err)
	old := f.geometry
	f.set(0, mgl32.Vec4{9, 9, 9, 9}, mgl32.Vec4{})
	f.setCount(1)

	allocated, err := f.EnsureAllocated(16)

	require.NoError(t, err)
	assert.True(t, allocated)
	assert.Equal(t, 16, f.Capacity())
	assert.Len(t, f.geometry, 16)
	assert.Equal(t, 0, f.Count())
	assert.Equal(t, mgl32.Vec4{}, f.geometry[0])
	assert.Equal(t, mgl32.Vec4{9, 9, 9, 9}, old[0])
}

func TestPackedFrame_InvalidCapacity(t *testing.T) {
	var f PackedFrame
	_, err := f.EnsureAllocated(0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	_, err = f.EnsureAllocated(-3)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	assert.False(t, f.Allocated())
}

func TestPackedFrame_ReleaseIsIdempotent(t *testing.T) {
	var f PackedFrame
	f.Release()

	_, err := f.EnsureAllocated(2)
	require.NoError(t, err)
	f.Release()
	f.Release()

	assert.False(t, f.Allocated())
	assert.Equal(t, 0, f.Capacity())
	assert.Equal(t, 0, f.Geometry().Len())
}

func TestBufferView_AppendBytesLayout(t *testing.T) {
	var f PackedFrame
	_, err := f.EnsureAllocated(4)
	require.NoError(t, err)
	f.set(0, mgl32.Vec4{1, 2, 3, 4}, mgl32.Vec4{0.5, 0, 0, 1})
	f.set(1, mgl32.Vec4{-1, 0.25, 8, 1}, mgl32.Vec4{})
	f.setCount(2)

	b := f.Geometry().AppendBytes(nil)

	require.Len(t, b, 2*Vec4Stride)
	assert.Equal(t, f.Geometry().SizeBytes(), len(b))
	want := []float32{1, 2, 3, 4, -1, 0.25, 8, 1}
	for i, w := range want {
		got := math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		assert.Equal(t, w, got, "component %d", i)
	}
}
