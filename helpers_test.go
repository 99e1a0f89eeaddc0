package cellgrid

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/gogpu/cellgrid/present"
	"github.com/gogpu/cellgrid/text"
)

// createNoopDevice creates a noop HAL device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		t.Fatal("no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

// solidRasterizer returns solid size x size glyphs sitting on the baseline.
// Glyph 32 has no ink.
type solidRasterizer struct {
	size  int
	calls int
}

func (s *solidRasterizer) RasterizeGlyph(_ text.FaceHandle, glyph uint16, _ text.AntialiasMode) (text.GlyphBitmap, error) {
	s.calls++
	if glyph == 32 {
		return text.GlyphBitmap{}, nil
	}
	pix := make([]byte, s.size*s.size*4)
	for i := range pix {
		pix[i] = 0xFF
	}
	return text.GlyphBitmap{Width: s.size, Height: s.size, Left: 0, Top: -s.size, Pix: pix}, nil
}

// failingQueue fails every Submit while fail is set.
type failingQueue struct {
	hal.Queue
	fail error
}

func (q *failingQueue) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	if q.fail != nil {
		return 0, q.fail
	}
	return q.Queue.Submit(cmds)
}

type testEnv struct {
	r       *Renderer
	out     *present.Offscreen
	capture *Capture
	raster  *solidRasterizer
	face    text.FaceHandle
	queue   *failingQueue
	device  hal.Device
}

// newTestEnv builds a renderer over a noop device with an offscreen
// presenter, a capture and a solid glyph rasterizer.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	device, queue := createNoopDevice(t)
	fq := &failingQueue{Queue: queue}

	reg := text.NewRegistry()
	f, err := text.ParseFace(gomono.TTF, 16)
	if err != nil {
		t.Fatalf("ParseFace: %v", err)
	}
	env := &testEnv{
		out:     present.NewOffscreen(device, fq, gputypes.TextureFormatBGRA8Unorm),
		capture: NewCapture(),
		raster:  &solidRasterizer{size: 8},
		face:    reg.Register(f),
		queue:   fq,
		device:  device,
	}
	t.Cleanup(env.out.Destroy)

	base := []Option{
		WithRegistry(reg),
		WithRasterizer(env.raster),
		WithCapture(env.capture),
		WithAtlasSize(64, 64),
	}
	env.r, err = NewRenderer(device, fq, env.out, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(func() { env.r.Close() })
	return env
}

const (
	testCellW = 10
	testCellH = 20
)

var (
	red   = RGB8(0xFF, 0, 0)
	green = RGB8(0, 0xFF, 0)
	blue  = RGB8(0, 0, 0xFF)
)

// testSettings describes a 10x2 grid of 10x20 pixel cells on black.
func testSettings() *Settings {
	s := DefaultSettings()
	s.TargetWidth, s.TargetHeight = 10*testCellW, 2*testCellH
	s.CellWidth, s.CellHeight = testCellW, testCellH
	s.Font = FontMetrics{
		Baseline:           16,
		UnderlinePos:       17,
		UnderlineWidth:     1,
		StrikethroughPos:   10,
		StrikethroughWidth: 1,
		DoubleUnderlinePos: [2]float32{15, 18},
		ThinLineWidth:      1,
	}
	s.BackgroundColor = Black
	s.SelectionColor = blue
	s.CursorColor = green
	return &s
}

// textRun places glyphs one per cell starting at column, all in c.
func textRun(face text.FaceHandle, column int, c Color, glyphs ...uint16) GlyphRun {
	adv := make([]float32, len(glyphs))
	for i := range adv {
		adv[i] = testCellW
	}
	return GlyphRun{Face: face, Glyphs: glyphs, Advances: adv, Colors: []Color{c}, Column: column}
}

func firstFrame(rows ...Row) *Payload {
	return &Payload{
		Generations: Generations{Settings: 1, Font: 1, Misc: 1},
		Settings:    testSettings(),
		Rows:        rows,
	}
}

// glyphPixel returns a pixel inside the glyph drawn at cell (col, row).
func glyphPixel(col, row int) (x, y int) {
	return col*testCellW + 4, row*testCellH + 12
}
