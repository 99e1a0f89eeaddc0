// Command cellgrid-demo renders a few lines of terminal text headlessly and
// optionally saves the last frame as PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/allbackends"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/gogpu/cellgrid"
	"github.com/gogpu/cellgrid/config"
	"github.com/gogpu/cellgrid/present"
	"github.com/gogpu/cellgrid/text"
)

const sample = `cellgrid demo: one instanced draw per frame
$ ls -l /usr/share
drwxr-xr-x  2 root root 4096 fonts
全角 text takes two cells
ERROR: link https://example.com`

func main() {
	var (
		cfgPath = flag.String("config", "", "settings file (.toml or .yaml)")
		watch   = flag.Bool("watch", false, "reload the settings file while rendering")
		frames  = flag.Int("frames", 1, "number of frames to render")
		size    = flag.Float64("size", 14, "font size in DIPs")
		output  = flag.String("png", "", "write the last frame to this PNG file")
		verbose = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	cellgrid.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var src *config.Source
	settings := cellgrid.DefaultSettings()
	if *cfgPath != "" {
		var err error
		if src, err = config.NewSource(*cfgPath); err != nil {
			log.Fatalf("Failed to load settings: %v", err)
		}
		settings, _ = src.Snapshot()
		if *watch {
			go func() {
				if err := src.Run(ctx); err != nil && ctx.Err() == nil {
					log.Printf("settings watcher stopped: %v", err)
				}
			}()
		}
	}

	registry := text.NewRegistry()
	face, err := text.ParseFace(gomono.TTF, float32(*size)*settings.Scale())
	if err != nil {
		log.Fatalf("Failed to parse font: %v", err)
	}
	handle := registry.Register(face)
	if src == nil {
		if err := fitCells(&settings, face); err != nil {
			log.Fatalf("Failed to read font metrics: %v", err)
		}
	}

	device, queue, cleanup := openDevice()
	defer cleanup()

	out := present.NewOffscreen(device, queue, gputypes.TextureFormatBGRA8Unorm)
	defer out.Destroy()
	capture := cellgrid.NewCapture()
	r, err := cellgrid.NewRenderer(device, queue, out,
		cellgrid.WithRegistry(registry),
		cellgrid.WithCapture(capture))
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}
	defer r.Close()

	shaper := text.NewShaper(registry)
	cellW, _ := settings.CellSize()
	rows, err := buildRows(shaper, handle, cellW, settings.Columns())
	if err != nil {
		log.Fatalf("Failed to shape text: %v", err)
	}

	p := &cellgrid.Payload{
		Generations: cellgrid.Generations{Settings: 1, Font: 1, Misc: 1},
		Settings:    &settings,
		Background:  gradient(settings.Columns(), settings.Rows()),
		Rows:        rows,
	}

	start := time.Now()
	for i := 0; i < *frames; i++ {
		if src != nil {
			src.Fill(p)
		}
		if err := r.WaitUntilReady(ctx); err != nil {
			break
		}
		if err := r.Render(ctx, p); err != nil {
			log.Fatalf("Frame %d failed: %v", i, err)
		}
		p.Settings = nil
	}

	st := r.Stats()
	log.Printf("Rendered %d frames in %v: %d instances, %d flushes, %d glyphs cached",
		st.Frames, time.Since(start).Round(time.Millisecond), st.Instances, st.Flushes, st.GlyphsCached)

	if *output != "" {
		if err := savePNG(*output, capture); err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		w, h := capture.Size()
		log.Printf("Frame saved to %s (%dx%d)\n", *output, w, h)
	}
}

// openDevice opens the best available GPU, or the noop device when there
// is none.
func openDevice() (hal.Device, hal.Queue, func()) {
	if backend, err := hal.SelectBestBackend(); err == nil {
		instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Backends: gputypes.BackendsAll})
		if err == nil {
			if adapters := instance.EnumerateAdapters(nil); len(adapters) > 0 {
				od, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
				if err == nil {
					log.Printf("Using %s (%s)", adapters[0].Info.Name, backend.Variant())
					return od.Device, od.Queue, func() {
						od.Device.Destroy()
						instance.Destroy()
					}
				}
			}
			instance.Destroy()
		}
	}

	log.Printf("No GPU available, using the noop device")
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		log.Fatalf("Failed to create noop instance: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		log.Fatal("noop backend has no adapters")
	}
	od, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		log.Fatalf("Failed to open noop device: %v", err)
	}
	return od.Device, od.Queue, func() {
		od.Device.Destroy()
		instance.Destroy()
	}
}

// fitCells sizes the cells and decorations to the face.
func fitCells(s *cellgrid.Settings, face *text.Face) error {
	m, err := face.Metrics()
	if err != nil {
		return err
	}
	k := s.Scale()
	s.CellWidth = float32(math.Ceil(float64(m.Advance))) / k
	s.CellHeight = float32(math.Ceil(float64(m.Ascent+m.Descent+m.LineGap))) / k
	s.Font = cellgrid.MetricsFromFace(m, s.DPI)
	return nil
}

// buildRows shapes the sample text and decorates it.
func buildRows(shaper *text.Shaper, h text.FaceHandle, cellW float32, cols int) ([]cellgrid.Row, error) {
	fg := []cellgrid.Color{
		cellgrid.RGB8(0xcd, 0xd6, 0xf4),
		cellgrid.RGB8(0xa6, 0xe3, 0xa1),
		cellgrid.RGB8(0x89, 0xb4, 0xfa),
		cellgrid.RGB8(0xf9, 0xe2, 0xaf),
		cellgrid.RGB8(0xf3, 0x8b, 0xa8),
	}

	lines := strings.Split(sample, "\n")
	rows := make([]cellgrid.Row, len(lines)+1)
	for i, line := range lines {
		run, err := shaper.ShapeLine(h, line, cellW)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		rows[i].GlyphRuns = []cellgrid.GlyphRun{{
			Face:     run.Face,
			Glyphs:   run.Glyphs,
			Advances: run.Advances,
			Offsets:  run.Offsets,
			Colors:   []cellgrid.Color{fg[i%len(fg)]},
		}}
	}

	rows[0].Gridlines = []cellgrid.GridlineRange{{From: 0, To: 8, Lines: cellgrid.LineUnderline, Color: fg[0]}}
	rows[2].Selection = cellgrid.Span{From: 0, To: 10}
	rows[3].Gridlines = []cellgrid.GridlineRange{{From: 0, To: 4, Lines: cellgrid.LineTop | cellgrid.LineBottom | cellgrid.LineLeft | cellgrid.LineRight, Color: fg[3]}}
	if link := strings.Index(lines[4], "https"); link >= 0 {
		rows[4].Gridlines = []cellgrid.GridlineRange{
			{From: 0, To: 5, Lines: cellgrid.LineStrikethrough, Color: fg[4]},
			{From: link, To: min(len(lines[4]), cols), Lines: cellgrid.LineHyperlinkUnderline, Color: fg[2]},
		}
	}
	last := len(lines)
	rows[last].Cursor = &cellgrid.Cursor{Columns: cellgrid.Span{From: 0, To: 1}, Style: cellgrid.CursorFullBox}
	return rows, nil
}

// gradient blends two colors across the cells in CIE L*a*b*.
func gradient(cols, rows int) *cellgrid.BackgroundBitmap {
	from, _ := colorful.Hex("#1e1e2e")
	to, _ := colorful.Hex("#313244")
	bg := &cellgrid.BackgroundBitmap{Width: cols, Height: rows, Pix: make([]cellgrid.Color, cols*rows)}
	for y := 0; y < rows; y++ {
		r, g, b := from.BlendLab(to, float64(y)/float64(max(rows-1, 1))).Clamped().RGB255()
		for x := 0; x < cols; x++ {
			bg.Pix[y*cols+x] = cellgrid.RGB8(r, g, b)
		}
	}
	return bg
}

func savePNG(path string, c *cellgrid.Capture) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, c.Image()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
