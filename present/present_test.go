package present

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

func createNoopDevice(t *testing.T) (hal.Instance, hal.Device, hal.Queue) {
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
	return instance, openDev.Device, openDev.Queue
}

// stubQueue reports a fixed completed submission index.
type stubQueue struct {
	hal.Queue
	completed uint64
}

func (q *stubQueue) PollCompleted() uint64 { return q.completed }

func TestPacerReady(t *testing.T) {
	q := &stubQueue{}
	p := NewPacer(q, 2)

	if !p.Ready() {
		t.Fatal("empty pacer is not ready")
	}
	p.Track(1)
	if !p.Ready() {
		t.Fatal("one frame in flight should still be ready")
	}
	p.Track(2)
	if p.Ready() {
		t.Fatal("two frames in flight should not be ready")
	}
	q.completed = 1
	if !p.Ready() {
		t.Fatal("completed frame not retired")
	}
	if got := p.InFlight(); got != 1 {
		t.Errorf("InFlight = %d, want 1", got)
	}
	p.Track(0)
	if got := p.InFlight(); got != 1 {
		t.Errorf("Track(0) changed InFlight to %d", got)
	}
}

func TestPacerDefaultLatency(t *testing.T) {
	p := NewPacer(&stubQueue{}, 0)
	if p.max != DefaultMaxFrameLatency {
		t.Errorf("max = %d, want %d", p.max, DefaultMaxFrameLatency)
	}
}

func TestPacerWait(t *testing.T) {
	q := &stubQueue{}
	p := NewPacer(q, 1)
	p.Track(5)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait on a busy queue = %v, want DeadlineExceeded", err)
	}

	q.completed = 5
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait after completion: %v", err)
	}
}

func TestOffscreenLifecycle(t *testing.T) {
	_, device, queue := createNoopDevice(t)
	o := NewOffscreen(device, queue, gputypes.TextureFormatUndefined)
	defer o.Destroy()

	if o.Format() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("Format = %v, want BGRA8Unorm", o.Format())
	}
	if _, err := o.Target(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Target before UpdateSettings = %v, want ErrNotConfigured", err)
	}

	tests := []struct {
		name    string
		w, h    int
		wantErr error
	}{
		{"initial", 80, 40, nil},
		{"same size", 80, 40, nil},
		{"resize", 100, 50, nil},
		{"zero width", 0, 50, ErrInvalidSize},
		{"negative height", 10, -1, ErrInvalidSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := o.UpdateSettings(tt.w, tt.h)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("UpdateSettings(%d, %d) = %v, want %v", tt.w, tt.h, err, tt.wantErr)
			}
			if err == nil {
				if w, h := o.Size(); w != tt.w || h != tt.h {
					t.Errorf("Size = %dx%d, want %dx%d", w, h, tt.w, tt.h)
				}
			}
		})
	}

	if _, err := o.Target(); err != nil {
		t.Fatalf("Target: %v", err)
	}
	if err := o.Present(context.Background()); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if o.Frames() != 1 {
		t.Errorf("Frames = %d, want 1", o.Frames())
	}
	if o.Texture() == nil {
		t.Error("Texture is nil after configuration")
	}

	o.Destroy()
	if _, err := o.Target(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Target after Destroy = %v, want ErrDestroyed", err)
	}
}

func TestOffscreenPresentCanceled(t *testing.T) {
	_, device, queue := createNoopDevice(t)
	o := NewOffscreen(device, queue, gputypes.TextureFormatRGBA8Unorm)
	defer o.Destroy()
	if err := o.UpdateSettings(8, 8); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := o.Present(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Present = %v, want Canceled", err)
	}
	if o.Frames() != 0 {
		t.Errorf("canceled Present counted a frame")
	}
}

// flakySurface reports an outdated surface on the first acquisitions.
type flakySurface struct {
	hal.Surface
	outdated   int
	configures int
	discards   int
}

func (s *flakySurface) Configure(d hal.Device, c *hal.SurfaceConfiguration) error {
	s.configures++
	return s.Surface.Configure(d, c)
}

func (s *flakySurface) AcquireTexture(f hal.Fence) (*hal.AcquiredSurfaceTexture, error) {
	if s.outdated > 0 {
		s.outdated--
		return nil, hal.ErrSurfaceOutdated
	}
	return s.Surface.AcquireTexture(f)
}

func (s *flakySurface) DiscardTexture(t hal.SurfaceTexture) {
	s.discards++
	s.Surface.DiscardTexture(t)
}

func newFlakySurface(t *testing.T, outdated int) (*Surface, *flakySurface) {
	t.Helper()
	instance, device, queue := createNoopDevice(t)
	hs, err := instance.CreateSurface(0, 0)
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	fs := &flakySurface{Surface: hs, outdated: outdated}
	s := NewSurface(device, queue, fs, gputypes.TextureFormatBGRA8Unorm, WithMaxFrameLatency(1))
	t.Cleanup(s.Destroy)
	return s, fs
}

func TestSurfaceTargetAndPresent(t *testing.T) {
	s, fs := newFlakySurface(t, 0)

	if _, err := s.Target(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Target before configure = %v, want ErrNotConfigured", err)
	}
	if err := s.UpdateSettings(640, 480); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if err := s.UpdateSettings(640, 480); err != nil {
		t.Fatalf("UpdateSettings (same size): %v", err)
	}
	if fs.configures != 1 {
		t.Errorf("configures = %d, want 1", fs.configures)
	}

	v1, err := s.Target()
	if err != nil {
		t.Fatalf("Target: %v", err)
	}
	v2, err := s.Target()
	if err != nil {
		t.Fatalf("second Target: %v", err)
	}
	if v1 != v2 {
		t.Error("Target before Present acquired a second texture")
	}
	if err := s.Present(context.Background()); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if err := s.Present(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Present without Target = %v, want ErrNotConfigured", err)
	}
}

func TestSurfaceReconfiguresWhenOutdated(t *testing.T) {
	tests := []struct {
		name           string
		outdated       int
		wantErr        bool
		wantConfigures int
	}{
		{"healthy", 0, false, 1},
		{"outdated once", 1, false, 2},
		{"outdated twice", 2, true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fs := newFlakySurface(t, tt.outdated)
			if err := s.UpdateSettings(32, 32); err != nil {
				t.Fatal(err)
			}
			_, err := s.Target()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Target err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, hal.ErrSurfaceOutdated) {
				t.Errorf("err = %v, want ErrSurfaceOutdated", err)
			}
			if fs.configures != tt.wantConfigures {
				t.Errorf("configures = %d, want %d", fs.configures, tt.wantConfigures)
			}
		})
	}
}

func TestSurfaceCanceledPresentDiscards(t *testing.T) {
	s, fs := newFlakySurface(t, 0)
	if err := s.UpdateSettings(16, 16); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Target(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Present(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Present = %v, want Canceled", err)
	}
	if fs.discards != 1 {
		t.Errorf("discards = %d, want 1", fs.discards)
	}
}

func TestSurfacePacing(t *testing.T) {
	s, _ := newFlakySurface(t, 0)
	q := &stubQueue{}
	s.pacer = NewPacer(q, 1)

	s.TrackSubmission(3)
	if s.Ready() {
		t.Fatal("Ready with a frame in flight and latency 1")
	}
	q.completed = 3
	if !s.Ready() {
		t.Fatal("not Ready after completion")
	}
	if err := s.WaitUntilReady(context.Background()); err != nil {
		t.Fatal(err)
	}
}
