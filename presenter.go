package cellgrid

import (
	"context"

	"github.com/gogpu/wgpu/hal"
)

// Presenter is the presentation side of a renderer: it owns the target the
// frame is drawn into and decides when a new frame may start.
// present.Surface and present.Offscreen implement it.
type Presenter interface {
	// Target returns the view to render the current frame into.
	Target() (hal.TextureView, error)
	// Present shows the frame rendered into the last Target.
	Present(ctx context.Context) error
	// Ready reports, without blocking, whether a new frame may start.
	Ready() bool
	// WaitUntilReady blocks until Ready or until ctx is done.
	WaitUntilReady(ctx context.Context) error
	// UpdateSettings resizes the target.
	UpdateSettings(width, height int) error
}

// submissionTracker is implemented by presenters that pace frames by queue
// submission index.
type submissionTracker interface {
	TrackSubmission(index uint64)
}
