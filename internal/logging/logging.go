// Package logging configures structured logging for elasto using log/slog,
// driven by the same internal/config.LoggingConfig the rest of the client
// loads its settings from.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/elasto/elasto/internal/config"
)

// Setup configures the default slog logger per cfg. Supported levels:
// "debug", "info", "warn", "error" (default: "info"). Supported formats:
// "text", "json" (default: "text").
func Setup(cfg config.LoggingConfig, w io.Writer) {
	var lvl slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
