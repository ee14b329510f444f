package core

import (
	"reflect"
	"slices"
	"sync"
)

// Handle identifies a registered source. The zero Handle is never valid.
// Handles carry a generation so a handle kept after Deregister never matches
// the slot's next occupant.
type Handle struct {
	index uint32
	gen   uint32
}

func (h Handle) IsValid() bool { return h.gen != 0 }

// Snapshot is one source's particles for the current frame.
// Particles aliases registry scratch storage and is only valid until the next SnapshotAll.
type Snapshot struct {
	Handle    Handle
	Particles []ParticleRecord
	Count     int
	Stale     bool // source reported Destroyed while still registered
}

type registrySlot struct {
	source  Source
	gen     uint32
	live    bool
	scratch []ParticleRecord
}

// SourceRegistry is the ordered set of particle sources feeding the metaball pass.
// Insertion order defines aggregation order.
type SourceRegistry struct {
	mu    sync.Mutex
	slots []registrySlot
	free  []uint32
	order []Handle

	// snapMu serializes SnapshotAll, which queries sources without holding mu.
	snapMu    sync.Mutex
	queries   []sourceQuery
	snapshots []Snapshot
}

type sourceQuery struct {
	handle  Handle
	source  Source
	scratch []ParticleRecord
}

func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{
		slots: make([]registrySlot, 0, 16),
		order: make([]Handle, 0, 16),
	}
}

// Register appends src to the registry. Registering a source that is already
// present returns its existing handle.
func (r *SourceRegistry) Register(src Source) Handle {
	if src == nil {
		return Handle{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.findLocked(src); ok {
		return h
	}

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, registrySlot{gen: 1})
		idx = uint32(len(r.slots) - 1)
	}

	slot := &r.slots[idx]
	slot.source = src
	slot.live = true

	h := Handle{index: idx, gen: slot.gen}
	r.order = append(r.order, h)
	return h
}

// Deregister removes the source behind h. Stale, zero or already removed
// handles are ignored.
func (r *SourceRegistry) Deregister(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(h)
}

// DeregisterSource removes src by identity. It is a no-op if src was never registered.
func (r *SourceRegistry) DeregisterSource(src Source) bool {
	if src == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.findLocked(src)
	if !ok {
		return false
	}
	return r.removeLocked(h)
}

func (r *SourceRegistry) Contains(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveLocked(h)
}

func (r *SourceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Handles returns the live handles in registry order.
func (r *SourceRegistry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Source returns the source behind h, or nil when h is stale.
func (r *SourceRegistry) Source(h Handle) Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.liveLocked(h) {
		return nil
	}
	return r.slots[h.index].source
}

// Clear drops every source and invalidates all outstanding handles.
func (r *SourceRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range slices.Clone(r.order) {
		r.removeLocked(h)
	}
}

// SnapshotAll queries every registered source in registry order.
//
// The per-source count is min(reported count, records written, buffer length),
// so a source over-reporting its count can never produce out-of-range reads.
// Sources implementing Lifetime that report Destroyed are returned with Stale
// set and are not queried. Sources are queried without the registry lock held,
// so a source may register or deregister sources from inside its own query.
func (r *SourceRegistry) SnapshotAll() []Snapshot {
	r.snapMu.Lock()
	defer r.snapMu.Unlock()

	r.mu.Lock()
	r.queries = r.queries[:0]
	for _, h := range r.order {
		slot := &r.slots[h.index]
		r.queries = append(r.queries, sourceQuery{handle: h, source: slot.source, scratch: slot.scratch})
	}
	r.mu.Unlock()

	r.snapshots = r.snapshots[:0]
	for i := range r.queries {
		q := &r.queries[i]

		if lt, ok := q.source.(Lifetime); ok && lt.Destroyed() {
			r.snapshots = append(r.snapshots, Snapshot{Handle: q.handle, Stale: true})
			continue
		}

		reported := q.source.ParticleCount()
		if reported < 0 {
			reported = 0
		}
		if cap(q.scratch) < reported {
			q.scratch = make([]ParticleRecord, reported)
		}
		buf := q.scratch[:reported]

		written := 0
		if reported > 0 {
			written = q.source.GetParticles(buf)
		}
		count := max(0, min(reported, written, len(buf)))

		r.snapshots = append(r.snapshots, Snapshot{
			Handle:    q.handle,
			Particles: buf[:count],
			Count:     count,
		})
	}

	r.mu.Lock()
	for i := range r.queries {
		q := &r.queries[i]
		if r.liveLocked(q.handle) {
			r.slots[q.handle.index].scratch = q.scratch
		}
		q.source = nil
	}
	r.mu.Unlock()
	return r.snapshots
}

func (r *SourceRegistry) liveLocked(h Handle) bool {
	if !h.IsValid() || int(h.index) >= len(r.slots) {
		return false
	}
	slot := &r.slots[h.index]
	return slot.live && slot.gen == h.gen
}

func (r *SourceRegistry) findLocked(src Source) (Handle, bool) {
	// Identity comparison needs a comparable dynamic type; pointer sources always are.
	if !reflect.TypeOf(src).Comparable() {
		return Handle{}, false
	}
	for _, h := range r.order {
		if r.slots[h.index].source == src {
			return h, true
		}
	}
	return Handle{}, false
}

func (r *SourceRegistry) removeLocked(h Handle) bool {
	if !r.liveLocked(h) {
		return false
	}
	i := slices.Index(r.order, h)
	if i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}

	slot := &r.slots[h.index]
	slot.source = nil
	slot.live = false
	slot.gen++
	if slot.gen == 0 {
		slot.gen = 1
	}
	r.free = append(r.free, h.index)
	return true
}
