package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/use-agent/pricewatch/config"
)

// LogFileName is the log file inside the log directory.
const LogFileName = "scrape.log"

// initLogger configures slog based on the LogConfig. Output goes to stderr
// and, when cfg.Dir is set, is appended to <dir>/scrape.log. The returned
// file is nil when no log file was opened.
func initLogger(cfg config.LogConfig) (*os.File, error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	var f *os.File
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir %s: %w", cfg.Dir, err)
		}
		var err error
		f, err = os.OpenFile(filepath.Join(cfg.Dir, LogFileName), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
	return f, nil
}
