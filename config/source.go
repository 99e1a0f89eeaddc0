package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/cellgrid"
)

// DefaultDebounce is how long Run waits after the last change of the file
// before reloading it. Editors often write a file in several steps.
const DefaultDebounce = 100 * time.Millisecond

// Source keeps the settings of one file together with the generation
// counters a renderer needs. Reload and Run replace the settings; Snapshot
// and Fill may be called concurrently from the render goroutine.
type Source struct {
	path     string
	debounce time.Duration
	onChange func(cellgrid.Settings, cellgrid.Generations)
	logger   *slog.Logger

	mu       sync.Mutex
	settings cellgrid.Settings
	gens     cellgrid.Generations
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithDebounce sets the reload delay of Run. Zero reloads on every event.
func WithDebounce(d time.Duration) SourceOption {
	return func(s *Source) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// WithOnChange registers fn to be called after a reload that changed the
// settings. fn runs on the goroutine that reloaded.
func WithOnChange(fn func(cellgrid.Settings, cellgrid.Generations)) SourceOption {
	return func(s *Source) {
		s.onChange = fn
	}
}

// WithLogger sets the logger for reload failures.
func WithLogger(l *slog.Logger) SourceOption {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSource loads path and returns a source whose generations all start
// at 1.
func NewSource(path string, opts ...SourceOption) (*Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	s := &Source{
		path:     abs,
		debounce: DefaultDebounce,
		logger:   cellgrid.Logger(),
		gens:     cellgrid.Generations{Settings: 1, Font: 1, Misc: 1},
	}
	for _, opt := range opts {
		opt(s)
	}

	settings, err := s.load()
	if err != nil {
		return nil, err
	}
	s.settings = settings
	return s, nil
}

// Path returns the absolute path of the settings file.
func (s *Source) Path() string { return s.path }

func (s *Source) load() (cellgrid.Settings, error) {
	f, err := Load(s.path)
	if err != nil {
		return cellgrid.Settings{}, err
	}
	return f.Settings()
}

// Snapshot returns the current settings and generations.
func (s *Source) Snapshot() (cellgrid.Settings, cellgrid.Generations) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, s.gens
}

// Fill stamps p with the current settings generations and a private copy
// of the settings. Generations.Misc is left to the caller.
func (s *Source) Fill(p *cellgrid.Payload) {
	settings, gens := s.Snapshot()
	p.Settings = &settings
	p.Generations.Settings = gens.Settings
	p.Generations.Font = gens.Font
}

// Reload reads the file again. Changed settings bump Generations.Settings,
// and Generations.Font when the change invalidates rasterized glyphs. A
// file that fails to load leaves the current settings in place.
func (s *Source) Reload() error {
	next, err := s.load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.settings
	if prev == next {
		s.mu.Unlock()
		return nil
	}
	s.settings = next
	s.gens.Settings++
	if fontChanged(&prev, &next) {
		s.gens.Font++
	}
	gens := s.gens
	s.mu.Unlock()

	s.logger.Info("config: settings reloaded", "path", s.path,
		"settings_generation", gens.Settings, "font_generation", gens.Font)
	if s.onChange != nil {
		s.onChange(next, gens)
	}
	return nil
}

// fontChanged reports whether glyph bitmaps rasterized under a are invalid
// under b.
func fontChanged(a, b *cellgrid.Settings) bool {
	return a.DPI != b.DPI ||
		a.CellWidth != b.CellWidth ||
		a.CellHeight != b.CellHeight ||
		a.Font != b.Font ||
		a.Antialiasing != b.Antialiasing
}

// Run watches the file and reloads it after it changes, until ctx is done.
// The parent directory is watched so that files replaced by a rename are
// followed. Reload failures are logged and the previous settings kept.
func (s *Source) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if s.debounce == 0 {
				s.reload()
				continue
			}
			timer.Reset(s.debounce)

		case <-timer.C:
			s.reload()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("config: watch error", "path", s.path, "err", err)
		}
	}
}

func (s *Source) reload() {
	if err := s.Reload(); err != nil {
		s.logger.Warn("config: reload failed, keeping previous settings", "path", s.path, "err", err)
	}
}
