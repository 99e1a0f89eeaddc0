package cellgrid

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/cellgrid/internal/gpu"
)

// silent discards every record without formatting it.
var silent = slog.New(slog.DiscardHandler)

// loggerPtr may be swapped by SetLogger while frames render.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(silent)
}

// SetLogger configures the logger for cellgrid and its internal packages.
// By default cellgrid produces no log output. Pass nil to restore the
// silent default.
//
// Log levels used by cellgrid:
//   - [slog.LevelDebug]: buffer sizes, atlas uploads, resource creation
//   - [slog.LevelInfo]: settings and font changes, device resource rebuilds
//   - [slog.LevelWarn]: atlas resets, invalid custom shaders, device loss
//
// Example:
//
//	cellgrid.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = silent
	}
	loggerPtr.Store(l)
	gpu.SetLogger(l)
}

// Logger returns the current logger used by cellgrid.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
