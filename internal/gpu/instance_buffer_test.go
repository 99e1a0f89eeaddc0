package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/cellgrid/internal/quad"
)

func TestNextPow2(t *testing.T) {
	tests := []struct{ in, want uint64 }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {4, 4}, {5, 8},
		{1000, 1024}, {1024, 1024}, {1025, 2048},
	}
	for _, tt := range tests {
		if got := NextPow2(tt.in); got != tt.want {
			t.Errorf("NextPow2(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestInstanceBufferGrowth(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	rd := newRecordingDevice(device)
	b := NewInstanceBuffer(rd, queue)
	defer b.Destroy()

	first := NextPow2(minInstanceBufferSize)
	grown := int(first) + quad.InstanceSize
	steps := []struct {
		n           int
		wantRebuilt bool
		wantSize    uint64
	}{
		{48, true, first},
		{48 * 100, false, first},
		// Past the minimum but within the rounded-up first buffer.
		{minInstanceBufferSize + 48, false, first},
		{grown, true, 2 * first},
		{48, false, 2 * first},
	}
	for i, s := range steps {
		rebuilt, err := b.Upload(make([]byte, s.n))
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if rebuilt != s.wantRebuilt {
			t.Errorf("step %d: rebuilt = %v, want %v", i, rebuilt, s.wantRebuilt)
		}
		if b.Size() != s.wantSize {
			t.Errorf("step %d: size = %d, want %d", i, b.Size(), s.wantSize)
		}
	}
	if b.Rebuilds() != 2 {
		t.Errorf("Rebuilds = %d, want 2", b.Rebuilds())
	}
	if got := len(rd.bufferSizes["cellgrid_instances"]); got != 2 {
		t.Errorf("buffers created = %d, want 2", got)
	}
}

func TestInstanceBufferEmptyUpload(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	b := NewInstanceBuffer(device, queue)
	if _, err := b.Upload(nil); !errors.Is(err, ErrEmptyUpload) {
		t.Errorf("Upload(nil) = %v, want ErrEmptyUpload", err)
	}
}
