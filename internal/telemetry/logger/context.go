package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	loggerKey contextKey = "worldsave.logger"
	slotKey   contextKey = "worldsave.slot"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger in ctx, or the default logger.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithSlot records the slot an operation works on.
func WithSlot(ctx context.Context, slot string) context.Context {
	return context.WithValue(ctx, slotKey, slot)
}

// SlotFromContext returns the slot recorded by WithSlot.
func SlotFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(slotKey).(string); ok {
		return s
	}
	return ""
}

// L returns the context logger, tagged with the slot and the active
// trace when set.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if slot := SlotFromContext(ctx); slot != "" {
		l = l.With("slot", slot)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	return l.WithContext(ctx)
}
