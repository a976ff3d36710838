// Package logger provides structured logging over log/slog.
//
//   - logger.go: Logger interface, construction and dynamic level
//   - context.go: logger and slot propagation through context
//   - redact.go: masking of sensitive attributes
//
// Long-lived components take the *slog.Logger returned by Slog; request
// paths use L(ctx).
package logger
