package profit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards all records. Enabled returns
// false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// loggerSetter is implemented by sub-packages (the GPU backend) that keep
// their own logger reference.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

var (
	loggerSinksMu sync.RWMutex
	loggerSinks   []loggerSetter
)

// SetLogger configures the logger for profit and all its sub-packages.
// By default profit produces no log output. Pass nil to restore the
// silent default.
//
// Log levels used by profit:
//   - [slog.LevelDebug]: per-render diagnostics (profile counts, convolver, timings)
//   - [slog.LevelInfo]: lifecycle events (compute device opened)
//   - [slog.LevelWarn]: non-fatal issues (dropped profiles, release errors)
//
// Example:
//
//	profit.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	loggerSinksMu.RLock()
	sinks := loggerSinks
	loggerSinksMu.RUnlock()
	for _, s := range sinks {
		s.SetLogger(l)
	}
}

// Logger returns the current logger. Sub-packages call this to share the
// same configuration without import cycles.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// RegisterLoggerSink registers a sub-package logger that follows SetLogger.
// The sink immediately receives the current logger.
func RegisterLoggerSink(s loggerSetter) {
	loggerSinksMu.Lock()
	loggerSinks = append(loggerSinks, s)
	loggerSinksMu.Unlock()
	s.SetLogger(Logger())
}
