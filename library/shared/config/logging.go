package config

import (
	"io"
	"log/slog"
	"strings"
)

const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// LogConfig selects level and output format of the process logger.
type LogConfig struct {
	Level     string `env:"LENDING_LOG_LEVEL"      envDefault:"info"`
	Format    string `env:"LENDING_LOG_FORMAT"     envDefault:"json"`
	AddSource bool   `env:"LENDING_LOG_ADD_SOURCE" envDefault:"false"`
}

// SlogLevel maps the configured level name to a slog.Level, unknown names map to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
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

// NewLogger builds a slog.Logger writing to w.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.SlogLevel(),
		AddSource: cfg.AddSource,
	}

	if strings.ToLower(cfg.Format) == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}

	return slog.New(slog.NewJSONHandler(w, opts))
}
