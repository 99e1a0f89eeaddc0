package glyphcache

import "testing"

func TestMapFindOrInsert(t *testing.T) {
	hs := newHandles(t, 1)
	m := NewMap()
	k := Key{Face: hs[0], Glyph: 42}

	e, inserted := m.FindOrInsert(k)
	if !inserted || e.Key != k {
		t.Fatalf("FindOrInsert = %+v, %v", e, inserted)
	}
	e.Size = [2]uint16{5, 6}

	e2, inserted := m.FindOrInsert(k)
	if inserted || e2.Size != [2]uint16{5, 6} {
		t.Errorf("second FindOrInsert = %+v, %v", e2, inserted)
	}
	if got, ok := m.Find(k); !ok || got.Size != e2.Size {
		t.Errorf("Find = %+v, %v", got, ok)
	}
	if _, ok := m.Find(Key{Face: hs[0], Glyph: 43}); ok {
		t.Error("Find hit a missing key")
	}
}

func TestMapGrowthKeepsLoadFactor(t *testing.T) {
	hs := newHandles(t, 4)
	m := NewMap()

	n := 0
	for _, h := range hs {
		for g := 0; g < 3000; g++ {
			m.Insert(Entry{Key: Key{Face: h, Glyph: uint16(g)}, Size: [2]uint16{uint16(g), 1}})
			n++
			if m.Len()*2 > m.Slots() {
				t.Fatalf("load factor %d/%d exceeds 0.5", m.Len(), m.Slots())
			}
			if s := m.Slots(); s&(s-1) != 0 {
				t.Fatalf("table size %d is not a power of two", s)
			}
		}
	}
	if m.Len() != n {
		t.Fatalf("Len = %d, want %d", m.Len(), n)
	}
	for _, h := range hs {
		for g := 0; g < 3000; g++ {
			e, ok := m.Find(Key{Face: h, Glyph: uint16(g)})
			if !ok || e.Size[0] != uint16(g) {
				t.Fatalf("lost %v/%d after growth", h, g)
			}
		}
	}
}

func TestMapClear(t *testing.T) {
	hs := newHandles(t, 1)
	m := NewMap()
	for g := 0; g < 1000; g++ {
		m.FindOrInsert(Key{Face: hs[0], Glyph: uint16(g)})
	}
	m.Clear()

	if m.Len() != 0 || m.Slots() != initialSize {
		t.Errorf("after Clear: Len=%d Slots=%d", m.Len(), m.Slots())
	}
	if _, ok := m.Find(Key{Face: hs[0], Glyph: 1}); ok {
		t.Error("entry survived Clear")
	}
}
