// Package logger holds the process-wide structured logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Config controls where log records go and how verbose they are.
type Config struct {
	// Debug enables debug level records and source locations
	Debug bool

	// JSON switches the handler from text to JSON
	JSON bool

	// Writer receives the records. Defaults to os.Stderr.
	Writer io.Writer
}

var (
	mu     sync.RWMutex
	global = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// Setup installs a logger built from cfg and returns it.
func Setup(cfg Config) *slog.Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.Debug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	l := slog.New(h)

	mu.Lock()
	global = l
	mu.Unlock()

	return l
}

// L returns the current logger. Before Setup it discards everything.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Discard resets the global logger to a no-op one.
func Discard() {
	mu.Lock()
	defer mu.Unlock()
	global = slog.New(slog.NewTextHandler(io.Discard, nil))
}
