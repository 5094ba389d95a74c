// Package log configures the process-wide structured logger.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the default slog logger at the requested level. Unknown
// levels fall back to info. Setting DINEFLOW_LOG_FORMAT=json switches the
// handler to JSON output for log shippers.
func Setup(logLevel string) {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("DINEFLOW_LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// WithModule returns a logger scoped to a component.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
