package gpu

import (
	"log/slog"
	"sync/atomic"
)

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(slog.DiscardHandler))
}

func slogger() *slog.Logger { return loggerPtr.Load() }

// SetLogger replaces the package logger. The root package forwards its
// logger here from cellgrid.SetLogger; nil restores the silent default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		loggerPtr.Store(slog.New(slog.DiscardHandler))
		return
	}
	loggerPtr.Store(l.With("component", "gpu"))
}
