// Package logger builds the slog JSON loggers shared by every service.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Config controls where and how verbosely a logger writes.
type Config struct {
	// Output receives the log records. Defaults to os.Stdout.
	Output io.Writer
	// Level is the minimum level emitted.
	Level slog.Level
	// AddSource annotates records with the caller's file and line.
	AddSource bool
}

// DefaultConfig returns an info-level config writing to stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:  slog.LevelInfo,
		Output: os.Stdout,
	}
}

// New builds a JSON logger from cfg. A nil cfg gets the defaults.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	handler := slog.NewJSONHandler(cfg.Output, &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	})
	return slog.New(handler)
}

// NewDefault builds a JSON logger with the default configuration.
func NewDefault() *slog.Logger {
	return New(DefaultConfig())
}

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" to their
// slog levels. Anything else falls back to info.
func ParseLevel(level string) slog.Level {
	switch level {
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
