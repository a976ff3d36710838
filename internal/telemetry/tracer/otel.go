package tracer

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used by worldsave packages.
const InstrumentationName = "github.com/yndnr/worldsave"

// Config configures a Provider.
type Config struct {
	ServiceName string
	// Endpoint is an OTLP/HTTP collector URL, e.g. http://localhost:4318.
	Endpoint string
	// SampleRatio is the fraction of root spans kept.
	// Default: 1
	SampleRatio float64
}

// Provider owns the tracer provider registered as the global one.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// New exports spans to cfg.Endpoint over OTLP/HTTP. The exporter connects
// lazily, so New succeeds even when the collector is down.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("tracer: endpoint is required")
	}
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("tracer: create exporter: %w", err)
	}
	return NewWithExporter(ctx, cfg, exporter, sdktrace.WithBatcher(exporter))
}

// NewWithExporter builds a Provider around exporter. Extra options are
// appended after the defaults; pass sdktrace.WithSyncer(exporter) to export
// each span as it ends.
func NewWithExporter(ctx context.Context, cfg Config, exporter sdktrace.SpanExporter, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	if exporter == nil {
		return nil, errors.New("tracer: exporter is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "worldsave"
	}
	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("tracer: build resource: %w", err)
	}

	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}
	tp := sdktrace.NewTracerProvider(append(base, opts...)...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return &Provider{tp: tp}, nil
}

// Tracer returns a tracer from this provider.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tp == nil {
		return Tracer()
	}
	return p.tp.Tracer(InstrumentationName)
}

// Shutdown flushes pending spans and stops the provider. A nil or
// already shut down Provider returns nil.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	tp := p.tp
	p.tp = nil
	return tp.Shutdown(ctx)
}

// Tracer returns the worldsave tracer of the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartSpan starts a span on the global tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, when set, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TraceID returns the trace ID carried by ctx, or "" when there is none.
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}
