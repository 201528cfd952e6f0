// Package theaterlog builds the process-wide slog.Logger from a LogConfig,
// in the style Alertmanager's own newer packages use log/slog
// (silence/silence.go, notify/worker.go): a single structured logger,
// configured once at startup, passed down by value.
package theaterlog

import (
	"log/slog"
	"os"
	"strings"

	"github.com/squaregear/theater/config"
)

// New builds a *slog.Logger from cfg. An unrecognised level falls back to
// Info; an unrecognised format falls back to text.
func New(cfg config.LogConfig) *slog.Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
