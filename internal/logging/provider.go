// Package logging builds the service's slog.Logger: a tint-colorized text
// handler or a JSON handler depending on configuration, wrapped in a
// ContextHandler so every log line picks up whatever trace/request/firing
// id the call site attached to its context.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cronmasterd/core/internal/logging/tint"
)

// NewLogger builds a slog.Logger from cfg and sets it as slog's default.
func NewLogger(cfg *Config) *slog.Logger {
	return NewLoggerWithWriter(cfg, resolveOutput(cfg))
}

// NewLoggerWithWriter builds a slog.Logger writing to w — used by tests and
// anywhere the destination isn't one of cfg.Output's named targets.
func NewLoggerWithWriter(cfg *Config, w io.Writer) *slog.Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(cfg.Level)

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			AddSource:  cfg.AddSource,
			TimeFormat: "15:04:05.000",
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     lvl,
			AddSource: cfg.AddSource,
		})
	}

	handler = NewContextHandler(handler)

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func resolveOutput(cfg *Config) io.Writer {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging: failed to open %s: %v, falling back to stdout\n", cfg.Output, err)
			return os.Stdout
		}
		return f
	}
}
