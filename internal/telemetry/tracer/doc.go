// Package tracer provides OpenTelemetry tracing for worldsave.
//
//   - otel.go: tracer provider setup and span helpers
//
// Tracing is opt-in. Without a Provider the global OpenTelemetry tracer is
// a no-op, so StartSpan is safe to call unconditionally.
package tracer
