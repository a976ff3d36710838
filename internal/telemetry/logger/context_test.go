package logger

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) != Default() {
		t.Error("FromContext(empty) is not the default logger")
	}

	l, _ := newJSON(t, "info")
	ctx := WithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("FromContext() did not return the stored logger")
	}
}

func TestWithSlot(t *testing.T) {
	ctx := context.Background()
	if got := SlotFromContext(ctx); got != "" {
		t.Errorf("SlotFromContext(empty) = %q", got)
	}
	ctx = WithSlot(ctx, "autosave-1")
	if got := SlotFromContext(ctx); got != "autosave-1" {
		t.Errorf("SlotFromContext() = %q, want autosave-1", got)
	}
}

func TestL(t *testing.T) {
	l, buf := newJSON(t, "info")
	ctx := WithSlot(WithLogger(context.Background(), l), "quick")

	L(ctx).Info("loading")
	if got := decode(t, buf)["slot"]; got != "quick" {
		t.Errorf("slot = %v, want quick", got)
	}

	buf.Reset()
	L(WithLogger(context.Background(), l)).Info("no slot")
	if _, ok := decode(t, buf)["slot"]; ok {
		t.Error("slot attribute present without WithSlot")
	}
}

func TestL_TraceID(t *testing.T) {
	l, buf := newJSON(t, "info")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(WithLogger(context.Background(), l), sc)

	L(ctx).Info("traced")
	rec := decode(t, buf)
	if got := rec["trace_id"]; got != sc.TraceID().String() {
		t.Errorf("trace_id = %v, want %s", got, sc.TraceID())
	}
	if got := rec["span_id"]; got != sc.SpanID().String() {
		t.Errorf("span_id = %v, want %s", got, sc.SpanID())
	}
}
