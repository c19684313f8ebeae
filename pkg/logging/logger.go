// Package logging provides the process-wide structured logger.
//
// Loggers handed out by ForComponent are safe to create as package-level
// variables: they resolve the real handler at log time, so anything created
// before Init still writes to the configured destination afterwards.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Component names used across the repo.
const (
	CompAdapter   = "adapter"
	CompReconcile = "reconcile"
	CompTmux      = "tmux"
	CompDaemon    = "daemon"
	CompSidebar   = "sidebar"
	CompConfig    = "config"
	CompPerf      = "perf"
)

// Config holds logging configuration.
type Config struct {
	// Dir is where tabsync.log is written. Empty with Debug false discards logs.
	Dir string

	// Level is "debug", "info", "warn" or "error".
	Level string

	// Format is "json" (default) or "text".
	Format string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Debug mirrors log output to stderr when no Dir is given.
	Debug bool
}

var (
	globalMu     sync.RWMutex
	globalLogger *slog.Logger
	rotator      *lumberjack.Logger
)

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Init configures the global logger. Calling it again replaces the previous
// configuration and closes the previous log file.
func Init(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if rotator != nil {
		rotator.Close()
		rotator = nil
	}

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 7
	}

	var w io.Writer
	switch {
	case cfg.Dir != "":
		rotator = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "tabsync.log"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		w = rotator
	case cfg.Debug:
		w = os.Stderr
	default:
		globalLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		return
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Debug && cfg.Level == "" {
		opts.Level = slog.LevelDebug
	}
	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	globalLogger = slog.New(h)
}

// Logger returns the global logger; a discarding logger before Init.
func Logger() *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return globalLogger
}

// ForComponent returns a logger tagged with component=name.
func ForComponent(name string) *slog.Logger {
	return slog.New(&dynamicHandler{component: name})
}

// Shutdown closes the log file and resets to the discarding logger.
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if rotator != nil {
		rotator.Close()
		rotator = nil
	}
	globalLogger = nil
}

type dynamicHandler struct {
	component string
	attrs     []slog.Attr
	group     string
}

func (h *dynamicHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Logger().Handler().Enabled(ctx, level)
}

func (h *dynamicHandler) Handle(ctx context.Context, r slog.Record) error {
	handler := Logger().Handler().WithAttrs([]slog.Attr{slog.String("component", h.component)})
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	if h.group != "" {
		handler = handler.WithGroup(h.group)
	}
	return handler.Handle(ctx, r)
}

func (h *dynamicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &dynamicHandler{component: h.component, attrs: merged, group: h.group}
}

func (h *dynamicHandler) WithGroup(name string) slog.Handler {
	return &dynamicHandler{component: h.component, attrs: h.attrs, group: name}
}
