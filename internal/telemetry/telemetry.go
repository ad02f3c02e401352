// Package telemetry wraps log/slog for the trace-level call logging the
// PC/SC layer emits: function name, arguments, status and elapsed time
// for every native call. The card and secure-messaging layers do not log
// through it.
package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// LevelTrace sits below slog's Debug level, matching the "log every native
// call" verbosity the resource-manager binding needs without polluting
// ordinary debug output.
const LevelTrace = slog.LevelDebug - 4

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
	Level: LevelTrace,
}))

// SetLogger replaces the package-level logger, e.g. to redirect output or
// change the handler in tests.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Trace logs a single native call at trace level.
func Trace(op string, args ...any) {
	logger.Log(context.Background(), LevelTrace, op, args...)
}

// Call wraps a native operation, logging its arguments, duration, and
// resulting error at trace level. Use: return telemetry.Call("Transmit",
// func() (R, error) { ... }, "reader", name).
func Call[R any](op string, fn func() (R, error), args ...any) (R, error) {
	start := time.Now()
	result, err := fn()
	elapsed := time.Since(start)
	fields := append(append([]any{}, args...), "elapsed", elapsed)
	if err != nil {
		fields = append(fields, "error", err)
		logger.Log(context.Background(), LevelTrace, op, fields...)
		return result, err
	}
	fields = append(fields, "status", "ok")
	logger.Log(context.Background(), LevelTrace, op, fields...)
	return result, nil
}

// Debug logs at ordinary debug level.
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}
