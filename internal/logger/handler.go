package logger

import (
	"context"
	"io"
	"log/slog"
)

// ColorTextHandler wraps slog.TextHandler to add ANSI color codes per level.
type ColorTextHandler struct {
	*slog.TextHandler
}

// NewColorTextHandler creates a new ColorTextHandler writing to w.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *ColorTextHandler {
	return &ColorTextHandler{TextHandler: slog.NewTextHandler(w, opts)}
}

// Handle implements slog.Handler.
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	var colorCode string
	switch r.Level {
	case slog.LevelDebug:
		colorCode = "\033[36m" // Cyan
	case slog.LevelInfo:
		colorCode = "\033[32m" // Green
	case slog.LevelWarn:
		colorCode = "\033[33m" // Yellow
	case slog.LevelError:
		colorCode = "\033[31m" // Red
	default:
		colorCode = "\033[0m"
	}
	r.Message = colorCode + r.Level.String() + "\033[0m  " + r.Message
	return h.TextHandler.Handle(ctx, r)
}

// fanoutHandler duplicates records to several handlers (console + file).
type fanoutHandler struct {
	handlers []slog.Handler
}

func newFanoutHandler(hs ...slog.Handler) slog.Handler {
	if len(hs) == 1 {
		return hs[0]
	}
	return &fanoutHandler{handlers: hs}
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: hs}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &fanoutHandler{handlers: hs}
}
