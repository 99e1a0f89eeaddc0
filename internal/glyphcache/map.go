// Package glyphcache maps (face, glyph) pairs to their place in the glyph
// atlas and fills the atlas on first use.
package glyphcache

import (
	"github.com/gogpu/cellgrid/internal/atlas"
	"github.com/gogpu/cellgrid/internal/quad"
	"github.com/gogpu/cellgrid/text"
)

// initialSize is the slot count of a fresh table. It must be a power of two.
const initialSize = 256

// Key identifies a glyph of a face.
type Key struct {
	Face  text.FaceHandle
	Glyph uint16
}

func (k Key) hash() uint64 {
	h := uint64(k.Face.Index())<<32 | uint64(k.Face.Generation())
	h ^= uint64(k.Glyph) * 0x9E3779B97F4A7C15
	// splitmix64 finalizer
	h ^= h >> 30
	h *= 0xBF58476D1CE4E5B9
	h ^= h >> 27
	h *= 0x94D049BB133111EB
	h ^= h >> 31
	return h
}

// Entry is a cached glyph placement.
type Entry struct {
	Key     Key
	Shading quad.ShadingType
	// Offset is the bitmap's top-left corner relative to the pen position
	// on the baseline, in pixels.
	Offset [2]int16
	// Size is the bitmap size in pixels.
	Size [2]uint16
	// TexCoord is the normalized atlas rectangle u0, v0, u1, v1.
	TexCoord [4]float32
	Region   atlas.Rect
}

// Empty reports whether the glyph has nothing to draw.
func (e *Entry) Empty() bool {
	return e.Size[0] == 0 || e.Size[1] == 0
}

// Map is an open-addressing hash table from Key to Entry.
//
// The table size is a power of two and is kept at least twice the number of
// entries: once an insertion would push the load factor above 0.5 the table
// doubles and every entry is rehashed. Collisions are resolved by linear
// probing. Slots whose key has an invalid face handle are empty.
type Map struct {
	slots []Entry
	mask  uint64
	size  int
}

// NewMap creates an empty map with the initial table size.
func NewMap() *Map {
	m := &Map{}
	m.reset(initialSize)
	return m
}

func (m *Map) reset(n int) {
	m.slots = make([]Entry, n)
	m.mask = uint64(n - 1)
	m.size = 0
}

// Find returns the entry for k.
func (m *Map) Find(k Key) (Entry, bool) {
	for i := k.hash() & m.mask; ; i = (i + 1) & m.mask {
		e := &m.slots[i]
		if !e.Key.Face.IsValid() {
			return Entry{}, false
		}
		if e.Key == k {
			return *e, true
		}
	}
}

// FindOrInsert returns the slot for k, inserting a zero entry carrying k
// when it is absent. The returned pointer is valid until the next insertion.
//
// k.Face must be a valid handle.
func (m *Map) FindOrInsert(k Key) (*Entry, bool) {
	if !k.Face.IsValid() {
		panic("glyphcache: key with invalid face handle")
	}
	for i := k.hash() & m.mask; ; i = (i + 1) & m.mask {
		e := &m.slots[i]
		if e.Key == k {
			return e, false
		}
		if e.Key.Face.IsValid() {
			continue
		}
		if m.size >= len(m.slots)/2 {
			m.grow()
			return m.FindOrInsert(k)
		}
		m.size++
		*e = Entry{Key: k}
		return e, true
	}
}

// Insert stores e under e.Key, replacing an existing entry.
func (m *Map) Insert(e Entry) {
	slot, _ := m.FindOrInsert(e.Key)
	*slot = e
}

func (m *Map) grow() {
	old := m.slots
	m.reset(len(old) * 2)
	for i := range old {
		e := &old[i]
		if !e.Key.Face.IsValid() {
			continue
		}
		j := e.Key.hash() & m.mask
		for m.slots[j].Key.Face.IsValid() {
			j = (j + 1) & m.mask
		}
		m.slots[j] = *e
		m.size++
	}
}

// Len returns the number of entries.
func (m *Map) Len() int { return m.size }

// Slots returns the table size.
func (m *Map) Slots() int { return len(m.slots) }

// Clear drops every entry and shrinks the table to its initial size.
func (m *Map) Clear() {
	m.reset(initialSize)
}
