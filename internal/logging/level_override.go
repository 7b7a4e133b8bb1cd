package logging

import (
	"context"
	"log/slog"
)

// minLevelHandler drops records below level before they reach next. The
// wrapped handler is expected to be configured with the most verbose level
// any component needs.
type minLevelHandler struct {
	next  slog.Handler
	level slog.Level
}

func (h *minLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level && h.next.Enabled(ctx, level)
}

func (h *minLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.level {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *minLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &minLevelHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h *minLevelHandler) WithGroup(name string) slog.Handler {
	return &minLevelHandler{next: h.next.WithGroup(name), level: h.level}
}

// WithLevelOverride returns a logger that enforces level as its minimum while
// keeping the attributes and outputs of logger. Applying it twice replaces the
// earlier override instead of stacking.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	next := logger.Handler()
	if existing, ok := next.(*minLevelHandler); ok {
		next = existing.next
	}
	return slog.New(&minLevelHandler{next: next, level: level})
}
