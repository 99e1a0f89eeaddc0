package glyphcache

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/cellgrid/internal/atlas"
	"github.com/gogpu/cellgrid/internal/quad"
	"github.com/gogpu/cellgrid/text"
)

// Rasterizer produces glyph bitmaps. *text.OutlineRasterizer implements it.
type Rasterizer interface {
	RasterizeGlyph(face text.FaceHandle, glyph uint16, mode text.AntialiasMode) (text.GlyphBitmap, error)
}

// Config holds the atlas parameters of a Cache.
type Config struct {
	// AtlasWidth and AtlasHeight are the atlas texture size in texels.
	AtlasWidth  int
	AtlasHeight int

	// Padding is the number of empty texels kept between glyphs.
	Padding int

	Antialiasing text.AntialiasMode
}

// DefaultConfig returns a 1024x1024 grayscale atlas with one texel of padding.
func DefaultConfig() Config {
	return Config{
		AtlasWidth:   atlas.DefaultSize,
		AtlasHeight:  atlas.DefaultSize,
		Padding:      atlas.DefaultPadding,
		Antialiasing: text.AntialiasGrayscale,
	}
}

// MaxAtlasSize is the largest accepted atlas dimension.
const MaxAtlasSize = 8192

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.AtlasWidth <= 0 || c.AtlasWidth > MaxAtlasSize {
		return &ConfigError{Field: "AtlasWidth", Reason: fmt.Sprintf("must be in 1..%d", MaxAtlasSize)}
	}
	if c.AtlasHeight <= 0 || c.AtlasHeight > MaxAtlasSize {
		return &ConfigError{Field: "AtlasHeight", Reason: fmt.Sprintf("must be in 1..%d", MaxAtlasSize)}
	}
	if c.Padding < 0 {
		return &ConfigError{Field: "Padding", Reason: "must be non-negative"}
	}
	return nil
}

// ConfigError describes an invalid Config field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "glyphcache: invalid config: " + e.Field + " " + e.Reason
}

// ErrInvalidFace is returned for keys whose face handle was never issued.
var ErrInvalidFace = errors.New("glyphcache: invalid face handle")

// Stats reports cache activity since creation.
type Stats struct {
	Entries     int
	Hits        uint64
	Misses      uint64
	Clears      uint64
	Utilization float64
}

// Cache owns the glyph table, the atlas packer and a CPU copy of the atlas
// texels. The renderer uploads the dirty part of that copy before drawing.
//
// Cache is not safe for concurrent use.
type Cache struct {
	cfg    Config
	table  *Map
	packer *atlas.Packer
	raster Rasterizer

	pixels []byte
	dirty  image.Rectangle

	hits, misses, clears uint64
}

// New creates a cache backed by r.
func New(cfg Config, r Rasterizer) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Cache{
		cfg:    cfg,
		table:  NewMap(),
		packer: atlas.NewPacker(cfg.AtlasWidth, cfg.AtlasHeight, cfg.Padding),
		raster: r,
		pixels: make([]byte, cfg.AtlasWidth*cfg.AtlasHeight*4),
	}, nil
}

// Config returns the active configuration.
func (c *Cache) Config() Config { return c.cfg }

// FindOrInsert returns the atlas placement of a glyph. On a miss the glyph
// is rasterized, packed and copied into the CPU atlas, and inserted is true.
//
// When the atlas has no room left the returned error wraps
// atlas.ErrExhausted and the cache is unchanged; the caller decides whether
// to Clear and retry.
func (c *Cache) FindOrInsert(face text.FaceHandle, glyph uint16) (e Entry, inserted bool, err error) {
	if !face.IsValid() {
		return Entry{}, false, ErrInvalidFace
	}
	k := Key{Face: face, Glyph: glyph}
	if e, ok := c.table.Find(k); ok {
		c.hits++
		return e, false, nil
	}
	c.misses++

	e, err = c.fill(k)
	if err != nil {
		return Entry{}, false, err
	}
	c.table.Insert(e)
	return e, true, nil
}

func (c *Cache) fill(k Key) (Entry, error) {
	e := Entry{Key: k, Shading: quad.ShadingTextGrayscale}

	bm, err := c.raster.RasterizeGlyph(k.Face, k.Glyph, c.cfg.Antialiasing)
	if errors.Is(err, text.ErrColorGlyph) {
		// Remembered as empty so it is not rasterized again every frame.
		return e, nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("glyphcache: rasterize %v glyph %d: %w", k.Face, k.Glyph, err)
	}
	if bm.Empty() {
		return e, nil
	}

	r, err := c.packer.Allocate(bm.Width, bm.Height)
	if err != nil {
		return Entry{}, fmt.Errorf("glyphcache: %dx%d glyph: %w", bm.Width, bm.Height, err)
	}
	c.blit(r, bm.Pix)

	switch bm.Kind {
	case text.BitmapSubpixel:
		e.Shading = quad.ShadingTextClearType
	case text.BitmapColor:
		e.Shading = quad.ShadingPassthrough
	}
	e.Offset = [2]int16{int16(bm.Left), int16(bm.Top)}
	e.Size = [2]uint16{uint16(bm.Width), uint16(bm.Height)}
	e.Region = r
	w, h := float32(c.cfg.AtlasWidth), float32(c.cfg.AtlasHeight)
	e.TexCoord = [4]float32{
		float32(r.X) / w,
		float32(r.Y) / h,
		float32(r.X+r.W) / w,
		float32(r.Y+r.H) / h,
	}
	return e, nil
}

func (c *Cache) blit(r atlas.Rect, src []byte) {
	stride := c.cfg.AtlasWidth * 4
	row := r.W * 4
	for y := 0; y < r.H; y++ {
		dst := (r.Y+y)*stride + r.X*4
		copy(c.pixels[dst:dst+row], src[y*row:(y+1)*row])
	}
	c.dirty = c.dirty.Union(image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H))
}

// Clear empties the table and resets the packer, ending the atlas epoch.
// Every previously returned Entry is invalid afterwards.
func (c *Cache) Clear() {
	c.table.Clear()
	c.packer.Reset()
	c.dirty = image.Rectangle{}
	c.clears++
}

// SetAntialiasing switches the rasterization mode, clearing the cache when
// it changes.
func (c *Cache) SetAntialiasing(mode text.AntialiasMode) {
	if c.cfg.Antialiasing == mode {
		return
	}
	c.cfg.Antialiasing = mode
	c.Clear()
}

// Len returns the number of cached glyphs.
func (c *Cache) Len() int { return c.table.Len() }

// Epoch returns the atlas epoch; it advances on every Clear.
func (c *Cache) Epoch() uint64 { return c.packer.Epoch() }

// Pixels returns the CPU atlas copy, AtlasWidth*AtlasHeight RGBA8 texels.
func (c *Cache) Pixels() []byte { return c.pixels }

// Dirty returns the atlas area written since the last MarkClean.
func (c *Cache) Dirty() (image.Rectangle, bool) {
	return c.dirty, !c.dirty.Empty()
}

// MarkClean records that the dirty area has been uploaded.
func (c *Cache) MarkClean() { c.dirty = image.Rectangle{} }

// Stats returns cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:     c.table.Len(),
		Hits:        c.hits,
		Misses:      c.misses,
		Clears:      c.clears,
		Utilization: c.packer.Utilization(),
	}
}
