package atlas

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func TestPackerAllocate(t *testing.T) {
	p := NewPacker(64, 64, 0)

	r1, err := p.Allocate(10, 20)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if r1 != (Rect{X: 0, Y: 0, W: 10, H: 20}) {
		t.Errorf("first rect = %v", r1)
	}

	r2, err := p.Allocate(10, 10)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if r2.Y != 0 || r2.X != 10 {
		t.Errorf("second rect should share the first shelf, got %v", r2)
	}

	if p.Len() != 2 {
		t.Errorf("Len() = %d, want 2", p.Len())
	}
}

func TestPackerInvalidSize(t *testing.T) {
	p := NewPacker(64, 64, 1)
	tests := []struct {
		name string
		w, h int
	}{
		{"zero width", 0, 4},
		{"zero height", 4, 0},
		{"negative", -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Allocate(tt.w, tt.h); !errors.Is(err, ErrInvalidSize) {
				t.Errorf("Allocate(%d, %d) error = %v, want ErrInvalidSize", tt.w, tt.h, err)
			}
		})
	}
}

func TestPackerExhaustion(t *testing.T) {
	p := NewPacker(16, 16, 0)

	if _, err := p.Allocate(17, 1); !errors.Is(err, ErrExhausted) {
		t.Errorf("oversized width: err = %v, want ErrExhausted", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := p.Allocate(16, 4); err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
	}
	if _, err := p.Allocate(1, 1); !errors.Is(err, ErrExhausted) {
		t.Errorf("full atlas: err = %v, want ErrExhausted", err)
	}
}

func TestPackerFirstFit(t *testing.T) {
	p := NewPacker(20, 100, 0)

	a, _ := p.Allocate(15, 10) // shelf 0
	b, _ := p.Allocate(15, 5)  // shelf 1, does not fit next to a
	c, _ := p.Allocate(5, 8)   // fits on shelf 0 next to a

	if a.Y != 0 || b.Y != 10 {
		t.Fatalf("unexpected shelves: a=%v b=%v", a, b)
	}
	if c.Y != 0 || c.X != 15 {
		t.Errorf("c should reuse the first shelf, got %v", c)
	}
}

func TestPackerLastShelfGrows(t *testing.T) {
	p := NewPacker(32, 32, 0)

	a, _ := p.Allocate(8, 4)
	b, _ := p.Allocate(8, 10)
	if b.Y != a.Y {
		t.Fatalf("last shelf should grow to hold b, got a=%v b=%v", a, b)
	}
	c, _ := p.Allocate(8, 2)
	if c.Y != 0 {
		t.Errorf("c = %v, want on shelf 0", c)
	}
	d, _ := p.Allocate(32, 1)
	if d.Y != 10 {
		t.Errorf("new shelf should start below the grown shelf, got %v", d)
	}
}

func TestPackerNoOverlap(t *testing.T) {
	for _, padding := range []int{0, 1, 2} {
		p := NewPacker(256, 256, padding)
		rng := rand.New(rand.NewPCG(1, uint64(padding)))

		var live []Rect
		for i := 0; i < 2000; i++ {
			w := 1 + rng.IntN(24)
			h := 1 + rng.IntN(24)
			r, err := p.Allocate(w, h)
			if errors.Is(err, ErrExhausted) {
				continue
			}
			if err != nil {
				t.Fatalf("Allocate: %v", err)
			}
			if r.X < 0 || r.Y < 0 || r.X+r.W > 256 || r.Y+r.H > 256 {
				t.Fatalf("rect %v outside the atlas", r)
			}
			for _, o := range live {
				if r.Overlaps(o) {
					t.Fatalf("padding %d: %v overlaps %v", padding, r, o)
				}
			}
			live = append(live, r)
		}
		if len(live) == 0 {
			t.Fatalf("padding %d: nothing allocated", padding)
		}
	}
}

func TestPackerDeterministic(t *testing.T) {
	sizes := [][2]int{{7, 12}, {3, 3}, {11, 9}, {20, 20}, {1, 30}, {5, 5}, {9, 2}}

	run := func() []Rect {
		p := NewPacker(32, 64, 1)
		var out []Rect
		for _, s := range sizes {
			r, err := p.Allocate(s[0], s[1])
			if err != nil {
				r = Rect{}
			}
			out = append(out, r)
		}
		return out
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("allocation %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestPackerReset(t *testing.T) {
	p := NewPacker(8, 8, 0)
	if _, err := p.Allocate(8, 8); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := p.Allocate(1, 1); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected exhaustion before reset, got %v", err)
	}

	p.Reset()

	if p.Epoch() != 1 {
		t.Errorf("Epoch() = %d, want 1", p.Epoch())
	}
	if p.Len() != 0 || p.Utilization() != 0 {
		t.Errorf("reset packer still reports usage: len=%d util=%f", p.Len(), p.Utilization())
	}
	r, err := p.Allocate(8, 8)
	if err != nil || r != (Rect{W: 8, H: 8}) {
		t.Errorf("after reset Allocate = %v, %v", r, err)
	}
}

func TestRectOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want bool
	}{
		{"disjoint", Rect{0, 0, 4, 4}, Rect{4, 0, 4, 4}, false},
		{"overlap", Rect{0, 0, 4, 4}, Rect{3, 3, 4, 4}, true},
		{"contained", Rect{0, 0, 10, 10}, Rect{2, 2, 1, 1}, true},
		{"empty", Rect{0, 0, 0, 4}, Rect{0, 0, 4, 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}
