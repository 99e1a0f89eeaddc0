package glyphcache

import (
	"errors"
	"testing"

	"github.com/gogpu/cellgrid/internal/atlas"
	"github.com/gogpu/cellgrid/internal/quad"
	"github.com/gogpu/cellgrid/text"
	"golang.org/x/image/font/gofont/gomono"
)

// fakeRasterizer returns solid w x h bitmaps, or the configured error.
type fakeRasterizer struct {
	w, h  int
	err   error
	calls int
}

func (f *fakeRasterizer) RasterizeGlyph(_ text.FaceHandle, glyph uint16, _ text.AntialiasMode) (text.GlyphBitmap, error) {
	f.calls++
	if f.err != nil {
		return text.GlyphBitmap{}, f.err
	}
	pix := make([]byte, f.w*f.h*4)
	for i := range pix {
		pix[i] = byte(glyph)
	}
	return text.GlyphBitmap{Width: f.w, Height: f.h, Left: 1, Top: -f.h, Pix: pix}, nil
}

func newHandles(t *testing.T, n int) []text.FaceHandle {
	t.Helper()
	face, err := text.ParseFace(gomono.TTF, 12)
	if err != nil {
		t.Fatalf("ParseFace: %v", err)
	}
	reg := text.NewRegistry()
	hs := make([]text.FaceHandle, n)
	for i := range hs {
		hs[i] = reg.Register(face)
	}
	return hs
}

func newCache(t *testing.T, size int, r Rasterizer) *Cache {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AtlasWidth, cfg.AtlasHeight, cfg.Padding = size, size, 0
	c, err := New(cfg, r)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCacheIdempotent(t *testing.T) {
	hs := newHandles(t, 2)
	r := &fakeRasterizer{w: 4, h: 6}
	c := newCache(t, 128, r)

	for _, h := range hs {
		for g := uint16(1); g < 20; g++ {
			first, inserted, err := c.FindOrInsert(h, g)
			if err != nil || !inserted {
				t.Fatalf("first FindOrInsert(%v, %d) = %v, %v", h, g, inserted, err)
			}
			second, inserted, err := c.FindOrInsert(h, g)
			if err != nil || inserted {
				t.Fatalf("second FindOrInsert(%v, %d) = %v, %v", h, g, inserted, err)
			}
			if first.TexCoord != second.TexCoord || first.Region != second.Region {
				t.Fatalf("placement changed: %+v vs %+v", first, second)
			}
		}
	}
	if r.calls != 2*19 {
		t.Errorf("rasterizer called %d times, want %d", r.calls, 2*19)
	}
	if s := c.Stats(); s.Hits != 38 || s.Misses != 38 || s.Entries != 38 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestCacheClearForcesMiss(t *testing.T) {
	hs := newHandles(t, 1)
	c := newCache(t, 64, &fakeRasterizer{w: 4, h: 4})

	if _, _, err := c.FindOrInsert(hs[0], 7); err != nil {
		t.Fatalf("FindOrInsert: %v", err)
	}
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
	if c.Epoch() != 1 {
		t.Errorf("Epoch after Clear = %d", c.Epoch())
	}
	if _, inserted, err := c.FindOrInsert(hs[0], 7); err != nil || !inserted {
		t.Errorf("re-query after Clear: inserted=%v err=%v, want a miss", inserted, err)
	}
}

func TestCacheExhaustion(t *testing.T) {
	hs := newHandles(t, 1)
	c := newCache(t, 16, &fakeRasterizer{w: 8, h: 8})

	for g := uint16(0); g < 4; g++ {
		if _, _, err := c.FindOrInsert(hs[0], g); err != nil {
			t.Fatalf("glyph %d: %v", g, err)
		}
	}
	_, _, err := c.FindOrInsert(hs[0], 4)
	if !errors.Is(err, atlas.ErrExhausted) {
		t.Fatalf("err = %v, want atlas.ErrExhausted", err)
	}
	if c.Len() != 4 {
		t.Errorf("failed fill left an entry: Len = %d", c.Len())
	}

	c.Clear()
	if _, inserted, err := c.FindOrInsert(hs[0], 4); err != nil || !inserted {
		t.Errorf("after Clear: inserted=%v err=%v", inserted, err)
	}
}

func TestCacheEmptyAndColorGlyphs(t *testing.T) {
	hs := newHandles(t, 1)

	t.Run("empty bitmap", func(t *testing.T) {
		c := newCache(t, 16, &fakeRasterizer{})
		e, inserted, err := c.FindOrInsert(hs[0], 3)
		if err != nil || !inserted || !e.Empty() {
			t.Fatalf("got %+v, %v, %v", e, inserted, err)
		}
		if _, dirty := c.Dirty(); dirty {
			t.Error("empty glyph dirtied the atlas")
		}
	})

	t.Run("color glyph", func(t *testing.T) {
		r := &fakeRasterizer{err: text.ErrColorGlyph}
		c := newCache(t, 16, r)
		e, _, err := c.FindOrInsert(hs[0], 3)
		if err != nil || !e.Empty() {
			t.Fatalf("got %+v, %v", e, err)
		}
		_, _, _ = c.FindOrInsert(hs[0], 3)
		if r.calls != 1 {
			t.Errorf("color glyph rasterized %d times", r.calls)
		}
	})

	t.Run("rasterizer failure", func(t *testing.T) {
		boom := errors.New("boom")
		r := &fakeRasterizer{err: boom}
		c := newCache(t, 16, r)
		if _, _, err := c.FindOrInsert(hs[0], 3); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want boom", err)
		}
		if c.Len() != 0 {
			t.Errorf("failure cached an entry")
		}
	})
}

func TestCacheInvalidFace(t *testing.T) {
	c := newCache(t, 16, &fakeRasterizer{w: 1, h: 1})
	if _, _, err := c.FindOrInsert(text.FaceHandle{}, 1); !errors.Is(err, ErrInvalidFace) {
		t.Errorf("err = %v, want ErrInvalidFace", err)
	}
}

func TestCacheBlitAndDirty(t *testing.T) {
	hs := newHandles(t, 1)
	c := newCache(t, 32, &fakeRasterizer{w: 3, h: 2})

	e, _, err := c.FindOrInsert(hs[0], 9)
	if err != nil {
		t.Fatalf("FindOrInsert: %v", err)
	}
	if e.Shading != quad.ShadingTextGrayscale {
		t.Errorf("Shading = %v", e.Shading)
	}
	if e.Size != [2]uint16{3, 2} || e.Offset != [2]int16{1, -2} {
		t.Errorf("Size %v Offset %v", e.Size, e.Offset)
	}
	want := [4]float32{0, 0, 3.0 / 32, 2.0 / 32}
	if e.TexCoord != want {
		t.Errorf("TexCoord = %v, want %v", e.TexCoord, want)
	}

	dirty, ok := c.Dirty()
	if !ok || dirty.Dx() != 3 || dirty.Dy() != 2 {
		t.Errorf("Dirty = %v, %v", dirty, ok)
	}
	px := c.Pixels()
	stride := 32 * 4
	if px[stride+2*4] != 9 {
		t.Errorf("texel (2,1) = %d, want 9", px[stride+2*4])
	}
	if px[2*stride] != 0 {
		t.Errorf("texel below the glyph was written")
	}

	c.MarkClean()
	if _, ok := c.Dirty(); ok {
		t.Error("MarkClean did not clear the dirty area")
	}
}

func TestCacheSetAntialiasingClears(t *testing.T) {
	hs := newHandles(t, 1)
	c := newCache(t, 32, &fakeRasterizer{w: 2, h: 2})
	_, _, _ = c.FindOrInsert(hs[0], 1)

	c.SetAntialiasing(text.AntialiasGrayscale)
	if c.Len() != 1 {
		t.Fatal("same mode cleared the cache")
	}
	c.SetAntialiasing(text.AntialiasClearType)
	if c.Len() != 0 {
		t.Error("mode change kept stale bitmaps")
	}
}

func TestCacheWithOutlineRasterizer(t *testing.T) {
	face, err := text.ParseFace(gomono.TTF, 18)
	if err != nil {
		t.Fatalf("ParseFace: %v", err)
	}
	reg := text.NewRegistry()
	h := reg.Register(face)
	c, err := New(DefaultConfig(), text.NewOutlineRasterizer(reg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var live []atlas.Rect
	for _, r := range "The quick brown fox jumps over the lazy dog 0123456789" {
		gid, _ := face.GlyphIndex(r)
		e, _, err := c.FindOrInsert(h, gid)
		if err != nil {
			t.Fatalf("FindOrInsert(%q): %v", r, err)
		}
		if r == ' ' {
			if !e.Empty() {
				t.Errorf("space has a bitmap")
			}
			continue
		}
		if e.Empty() {
			t.Fatalf("%q has no bitmap", r)
		}
		dup := false
		for _, o := range live {
			if o == e.Region {
				dup = true
			} else if o.Overlaps(e.Region) {
				t.Fatalf("%v overlaps %v", e.Region, o)
			}
		}
		if !dup {
			live = append(live, e.Region)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero width", func(c *Config) { c.AtlasWidth = 0 }, true},
		{"huge height", func(c *Config) { c.AtlasHeight = MaxAtlasSize + 1 }, true},
		{"negative padding", func(c *Config) { c.Padding = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			var ce *ConfigError
			if err != nil && !errors.As(err, &ce) {
				t.Errorf("error %T is not *ConfigError", err)
			}
		})
	}
}
