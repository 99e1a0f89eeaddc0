package present

import (
	"context"
	"errors"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// DefaultMaxFrameLatency is the number of frames that may be queued on the
// GPU before Ready reports false.
const DefaultMaxFrameLatency = 2

// pollInterval is how often Wait checks the queue for completed work.
const pollInterval = time.Millisecond

// Sentinel errors for the present package.
var (
	// ErrNotConfigured is returned by Target before the first UpdateSettings.
	ErrNotConfigured = errors.New("present: presenter is not configured")

	// ErrInvalidSize is returned by UpdateSettings for non-positive sizes.
	ErrInvalidSize = errors.New("present: invalid target size")

	// ErrDestroyed is returned after Destroy.
	ErrDestroyed = errors.New("present: presenter destroyed")
)

// Pacer tracks the frames submitted to a queue and reports whether another
// one may be started.
//
// Pacer is not safe for concurrent use.
type Pacer struct {
	queue   hal.Queue
	max     int
	pending []uint64
}

// NewPacer creates a pacer allowing max frames in flight. Values below one
// select DefaultMaxFrameLatency.
func NewPacer(queue hal.Queue, max int) *Pacer {
	if max < 1 {
		max = DefaultMaxFrameLatency
	}
	return &Pacer{queue: queue, max: max, pending: make([]uint64, 0, max+1)}
}

// Track records the last submission index of a frame. Zero is ignored.
func (p *Pacer) Track(submission uint64) {
	if submission == 0 {
		return
	}
	p.pending = append(p.pending, submission)
}

// InFlight returns the number of tracked frames the GPU has not finished.
func (p *Pacer) InFlight() int {
	done := p.queue.PollCompleted()
	n := 0
	for _, s := range p.pending {
		if s > done {
			p.pending[n] = s
			n++
		}
	}
	p.pending = p.pending[:n]
	return n
}

// Ready reports whether fewer than the maximum number of frames are in flight.
func (p *Pacer) Ready() bool {
	return p.InFlight() < p.max
}

// Wait blocks until Ready or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.Ready() {
		return nil
	}
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if p.Ready() {
				return nil
			}
		}
	}
}
