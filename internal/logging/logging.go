// Package logging provides structured logging for the heatwatch application.
//
// This package wraps the standard library's log/slog package to provide
// consistent logging across all components. It supports text and JSON
// output, configurable log levels, and component-based loggers.
//
// Usage:
//
//	// Initialize at startup
//	logging.Init(slog.LevelInfo, false) // Text format
//	logging.Init(slog.LevelDebug, true) // JSON format for production
//
//	// Get a component logger
//	log := logging.Component("loop")
//	log.Info("loop started", "interval", interval)
//
//	// Tick and sensor carried by ctx are added to every *Context call
//	ctx = logging.ContextWithTick(ctx, seq)
//	log.WarnContext(ctx, "sensor read failed", "kind", kind)
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/xtxerr/heatwatch/internal/constants"
	"golang.org/x/term"
)

// global is the process logger. Component loggers resolve it on every
// call, so it is swapped atomically.
var global atomic.Pointer[slog.Logger]

// current returns the global logger, installing an info-level text logger
// on stdout if none has been set yet.
func current() *slog.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	global.CompareAndSwap(nil, newLogger(os.Stdout, slog.LevelInfo, false))
	return global.Load()
}

// Init initializes the global logger with the specified level and format.
// If jsonFormat is true, logs are output as JSON; otherwise, human-readable text.
func Init(level slog.Level, jsonFormat bool) {
	InitWriter(os.Stdout, level, jsonFormat)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level slog.Level, jsonFormat bool) {
	logger := newLogger(w, level, jsonFormat)
	global.Store(logger)
	slog.SetDefault(logger)
}

func newLogger(w io.Writer, level slog.Level, jsonFormat bool) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// Setup initializes the global logger from config strings.
//
// level is one of debug, info, warn, error. format is text, json or auto;
// auto writes text when stdout is a terminal and JSON otherwise.
func Setup(level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	var jsonFormat bool
	switch strings.ToLower(format) {
	case "", constants.LogFormatAuto:
		jsonFormat = !term.IsTerminal(int(os.Stdout.Fd()))
	case constants.LogFormatText:
		jsonFormat = false
	case constants.LogFormatJSON:
		jsonFormat = true
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	Init(lvl, jsonFormat)
	return nil
}

// ParseLevel converts a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Component returns a logger for a specific component.
// The component name is added as an attribute to all log entries.
//
// Package-level component loggers are created before main runs Init, so the
// returned logger resolves the global handler on every call.
//
// Example:
//
//	log := logging.Component("loop")
//	log.Info("started") // Output: time=... level=INFO component=loop msg=started
func Component(name string) *slog.Logger {
	return slog.New(&componentHandler{attrs: []slog.Attr{slog.String("component", name)}})
}

// Context key types for type-safe context value extraction.
type contextKey int

const (
	contextKeyTick contextKey = iota
	contextKeySensor
)

// ContextWithTick adds a tick sequence number to the context for logging.
func ContextWithTick(ctx context.Context, tick uint64) context.Context {
	return context.WithValue(ctx, contextKeyTick, tick)
}

// ContextWithSensor adds a sensor name to the context for logging.
func ContextWithSensor(ctx context.Context, sensor string) context.Context {
	return context.WithValue(ctx, contextKeySensor, sensor)
}

// TickFromContext returns the tick sequence number stored in ctx.
func TickFromContext(ctx context.Context) (uint64, bool) {
	tick, ok := ctx.Value(contextKeyTick).(uint64)
	return tick, ok
}

// =============================================================================
// Component Handler
// =============================================================================

// componentHandler forwards to the current global handler, adding its own
// attributes and groups.
type componentHandler struct {
	attrs  []slog.Attr
	groups []string
}

func (h *componentHandler) target() slog.Handler {
	th := current().Handler()
	if len(h.attrs) > 0 {
		th = th.WithAttrs(h.attrs)
	}
	for _, g := range h.groups {
		th = th.WithGroup(g)
	}
	return th
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.target().Enabled(ctx, level)
}

// Handle adds the tick and sensor carried by ctx, so *Context logging
// calls made inside a tick are attributed to it.
func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if tick, ok := ctx.Value(contextKeyTick).(uint64); ok {
			r.AddAttrs(slog.Uint64("tick", tick))
		}
		if sensor, ok := ctx.Value(contextKeySensor).(string); ok {
			r.AddAttrs(slog.String("sensor", sensor))
		}
	}
	return h.target().Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(h.groups) > 0 {
		// Attributes added after a group belong to that group; resolve eagerly.
		return h.target().WithAttrs(attrs)
	}
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &componentHandler{attrs: merged}
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	groups := append(append([]string(nil), h.groups...), name)
	return &componentHandler{attrs: h.attrs, groups: groups}
}
