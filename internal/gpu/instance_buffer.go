package gpu

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cellgrid/internal/quad"
)

// minInstanceBufferSize is the smallest instance buffer ever allocated.
const minInstanceBufferSize = 256 * quad.InstanceSize

// ErrEmptyUpload is returned when Upload is called with no data.
var ErrEmptyUpload = errors.New("gpu: empty instance upload")

// InstanceBuffer is a vertex buffer holding encoded quad instances. It only
// grows: the GPU buffer is recreated with a power-of-two size when the
// upload does not fit, otherwise only the used range is written.
type InstanceBuffer struct {
	device hal.Device
	queue  hal.Queue

	buf  hal.Buffer
	size uint64

	rebuilds int
}

// NewInstanceBuffer returns an empty instance buffer. No GPU memory is
// allocated until the first Upload.
func NewInstanceBuffer(device hal.Device, queue hal.Queue) *InstanceBuffer {
	return &InstanceBuffer{device: device, queue: queue}
}

// NextPow2 returns the smallest power of two >= n, and 1 for n == 0.
func NextPow2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len64(n-1)
}

// Upload writes data at offset zero, growing the buffer first if needed.
// rebuilt reports whether the GPU buffer was recreated.
func (b *InstanceBuffer) Upload(data []byte) (rebuilt bool, err error) {
	if len(data) == 0 {
		return false, ErrEmptyUpload
	}
	need := uint64(len(data))
	if b.buf == nil || need > b.size {
		size := NextPow2(max(need, minInstanceBufferSize))
		buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "cellgrid_instances",
			Size:  size,
			Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return false, fmt.Errorf("create instance buffer (%d bytes): %w", size, err)
		}
		b.release()
		b.buf = buf
		b.size = size
		b.rebuilds++
		rebuilt = true
		slogger().Debug("instance buffer resized", "bytes", size)
	}
	if err := b.queue.WriteBuffer(b.buf, 0, data); err != nil {
		return rebuilt, fmt.Errorf("write instance buffer: %w", err)
	}
	return rebuilt, nil
}

// Buffer returns the current GPU buffer, nil before the first Upload.
func (b *InstanceBuffer) Buffer() hal.Buffer { return b.buf }

// Size returns the allocated size in bytes.
func (b *InstanceBuffer) Size() uint64 { return b.size }

// Rebuilds returns how many times the GPU buffer has been (re)created.
func (b *InstanceBuffer) Rebuilds() int { return b.rebuilds }

func (b *InstanceBuffer) release() {
	if b.buf != nil {
		b.device.DestroyBuffer(b.buf)
		b.buf = nil
		b.size = 0
	}
}

// Destroy releases the GPU buffer.
func (b *InstanceBuffer) Destroy() { b.release() }
