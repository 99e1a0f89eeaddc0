package cellgrid

import (
	"errors"
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// Sentinel errors returned by Render.
var (
	// ErrAtlasExhausted is returned when the glyphs of one frame do not fit
	// into the atlas even after it was cleared.
	ErrAtlasExhausted = errors.New("cellgrid: glyph atlas exhausted")

	// ErrDeviceLost is returned when the GPU device was lost. The renderer
	// has released its device resources; the host has to create a new
	// device and pass it to SetDevice (or create a new Renderer).
	ErrDeviceLost = fmt.Errorf("cellgrid: %w", hal.ErrDeviceLost)

	// ErrNotReady is returned when a frame is rendered before the payload
	// has ever carried settings.
	ErrNotReady = errors.New("cellgrid: renderer has no settings")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("cellgrid: renderer closed")

	// ErrInvalidShader is returned by the frame that first sees a custom
	// shader that does not compile. The shader stays disabled until the
	// settings change again.
	ErrInvalidShader = errors.New("cellgrid: invalid custom shader")

	// ErrNilPayload is returned by Render for a nil payload.
	ErrNilPayload = errors.New("cellgrid: nil payload")
)

// SettingsError reports an invalid Settings field.
type SettingsError struct {
	Field  string
	Reason string
}

func (e *SettingsError) Error() string {
	return "cellgrid: invalid settings: " + e.Field + " " + e.Reason
}

// PayloadError reports a malformed payload row.
type PayloadError struct {
	Row    int
	Reason string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("cellgrid: invalid payload row %d: %s", e.Row, e.Reason)
}
