package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/caderno-api/internal/config"
)

// ParseLevel converts a configured level name (case-insensitive) into a
// slog.Level. The boolean is false for unknown names, which map to info.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Setup initializes and configures the application's logging system based on
// the provided configuration. It creates a structured JSON logger on stdout
// with the configured level and sets it as the default logger.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	return SetupWithWriter(cfg, os.Stdout), nil
}

// SetupWithWriter is Setup with an explicit destination.
func SetupWithWriter(cfg config.ServerConfig, w io.Writer) *slog.Logger {
	level, ok := ParseLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}
	logger := slog.New(slog.NewJSONHandler(w, opts))

	if !ok {
		logger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	slog.SetDefault(logger)
	return logger
}
