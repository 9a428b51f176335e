package common

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// NewLogger builds the process logger. format is "json" or "text"; debug lowers the level.
// Extra writers (the run log file) receive the same records as JSON.
func NewLogger(w io.Writer, format string, debug bool, extra ...io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}

	var primary slog.Handler = slog.NewJSONHandler(w, opts)
	if format == "text" {
		primary = slog.NewTextHandler(w, opts)
	}
	if len(extra) == 0 {
		return slog.New(primary)
	}

	handlers := []slog.Handler{primary}
	for _, x := range extra {
		handlers = append(handlers, slog.NewJSONHandler(x, opts))
	}
	return slog.New(FanOut(handlers...))
}

// FanOut sends every record to each handler that is enabled for its level.
func FanOut(handlers ...slog.Handler) slog.Handler {
	return fanOut(handlers)
}

type fanOut []slog.Handler

func (f fanOut) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanOut) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanOut) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanOut, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanOut) WithGroup(name string) slog.Handler {
	out := make(fanOut, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
