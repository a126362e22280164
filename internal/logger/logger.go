// Package logger provides structured logging for hookgate using log/slog.
//
// Hooks answer the host through stdout, stderr and the exit code, so the
// default level is Error and everything else is opt-in via --verbose.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

var (
	log     *slog.Logger
	once    sync.Once
	verbose bool
)

// Options configures the logger.
type Options struct {
	// Verbose enables debug-level logging
	Verbose bool
	// Output is the writer for log output (defaults to os.Stderr)
	Output io.Writer
	// JSON enables JSON-formatted output
	JSON bool
	// Attrs are attached to every record (e.g. hook name, invocation id)
	Attrs []any
}

// Init initializes the global logger with the given options.
// It is safe to call multiple times; only the first call takes effect.
func Init(opts Options) {
	once.Do(func() {
		verbose = opts.Verbose

		output := opts.Output
		if output == nil {
			output = os.Stderr
		}

		level := slog.LevelError
		if opts.Verbose {
			level = slog.LevelDebug
		}

		handlerOpts := &slog.HandlerOptions{Level: level}

		var handler slog.Handler
		if opts.JSON {
			handler = slog.NewJSONHandler(output, handlerOpts)
		} else {
			handler = slog.NewTextHandler(output, handlerOpts)
		}

		log = slog.New(handler)
		if len(opts.Attrs) > 0 {
			log = log.With(opts.Attrs...)
		}
	})
}

// Reset resets the logger for testing purposes.
// This should only be used in tests.
func Reset() {
	once = sync.Once{}
	log = nil
	verbose = false
}

// IsVerbose returns true if verbose logging is enabled.
func IsVerbose() bool {
	return verbose
}

// Enabled reports whether a record at level would be written.
func Enabled(level slog.Level) bool {
	if log == nil {
		return false
	}
	return log.Enabled(context.Background(), level)
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	if log != nil {
		log.Debug(msg, args...)
	}
}

// Info logs at info level.
func Info(msg string, args ...any) {
	if log != nil {
		log.Info(msg, args...)
	}
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	if log != nil {
		log.Warn(msg, args...)
	}
}

// Error logs at error level.
func Error(msg string, args ...any) {
	if log != nil {
		log.Error(msg, args...)
	}
}

// With returns a logger with additional context attributes.
func With(args ...any) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log.With(args...)
}

// Stage starts timing a named pipeline stage. The returned func logs the
// elapsed time at debug level together with any extra attributes.
func Stage(name string) func(args ...any) {
	start := time.Now()
	return func(args ...any) {
		if log == nil {
			return
		}
		attrs := append([]any{"stage", name, "duration_ms", float64(time.Since(start).Microseconds()) / 1000.0}, args...)
		log.Debug("stage finished", attrs...)
	}
}
