// Package logging provides structured logging utilities.
//
// Console output is bracketed with colors:
// [LEVEL] [SCOPE] [HH:MM:SS] message key=value
package logging

import (
	"log/slog"
	"os"

	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/config"
)

// NewLogger creates a structured logger based on config. Format "json"
// emits machine-readable output; anything else uses the console handler.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(NewConsoleHandler(os.Stdout, opts))
}

// NewScopedLogger creates a logger tagged with a subsystem scope
// (e.g., "automatch", "api", "scheduler")
func NewScopedLogger(cfg config.LoggingConfig, scope string) *slog.Logger {
	return NewLogger(cfg).With("scope", scope)
}
