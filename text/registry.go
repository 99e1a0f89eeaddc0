package text

import (
	"fmt"
	"sync"
)

// FaceHandle identifies a face registered in a [Registry].
//
// The zero handle is never issued and is always invalid.
type FaceHandle struct {
	index uint32
	gen   uint32
}

// IsValid reports whether the handle was issued by a registry. It does not
// report whether the face is still alive; use [Registry.Lookup] for that.
func (h FaceHandle) IsValid() bool { return h.gen != 0 }

// Index returns the arena slot of the handle.
func (h FaceHandle) Index() uint32 { return h.index }

// Generation returns the slot generation the handle was issued for.
func (h FaceHandle) Generation() uint32 { return h.gen }

// String returns a string representation of the handle.
func (h FaceHandle) String() string {
	return fmt.Sprintf("Face(%d@%d)", h.index, h.gen)
}

type faceSlot struct {
	face *Face
	refs int32
	gen  uint32
}

// Registry is an arena of reference-counted faces.
//
// Registry is safe for concurrent use. Shaping code may register and
// release faces from a background goroutine while the renderer looks
// them up.
type Registry struct {
	mu    sync.RWMutex
	slots []faceSlot
	free  []uint32
	live  int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a face with one reference and returns its handle.
func (r *Registry) Register(f *Face) FaceHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, faceSlot{})
	}

	s := &r.slots[idx]
	s.gen++
	s.face = f
	s.refs = 1
	r.live++
	return FaceHandle{index: idx, gen: s.gen}
}

// Retain adds a reference to a live face.
func (r *Registry) Retain(h FaceHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.slot(h)
	if err != nil {
		return err
	}
	s.refs++
	return nil
}

// Release drops a reference. When the count reaches zero the face is
// forgotten and the handle becomes stale.
func (r *Registry) Release(h FaceHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.slot(h)
	if err != nil {
		return err
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	s.face = nil
	s.refs = 0
	r.free = append(r.free, h.index)
	r.live--
	return nil
}

// Lookup returns the face for a live handle.
func (r *Registry) Lookup(h FaceHandle) (*Face, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !h.IsValid() || int(h.index) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[h.index]
	if s.gen != h.gen || s.face == nil {
		return nil, false
	}
	return s.face, true
}

// Refs returns the reference count of a live handle, or zero.
func (r *Registry) Refs(h FaceHandle) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !h.IsValid() || int(h.index) >= len(r.slots) {
		return 0
	}
	s := &r.slots[h.index]
	if s.gen != h.gen || s.face == nil {
		return 0
	}
	return int(s.refs)
}

// Len returns the number of live faces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

// slot must be called with r.mu held.
func (r *Registry) slot(h FaceHandle) (*faceSlot, error) {
	if !h.IsValid() || int(h.index) >= len(r.slots) {
		return nil, fmt.Errorf("%w: %v", ErrStaleHandle, h)
	}
	s := &r.slots[h.index]
	if s.gen != h.gen || s.face == nil {
		return nil, fmt.Errorf("%w: %v", ErrStaleHandle, h)
	}
	return s, nil
}
