// Package logger provides structured logging for minikv.
//
// It wraps log/slog:
//
//   - logger.go: handler construction, dynamic level, global default
//   - context.go: loggers and connection ids carried in a context
//   - redact.go: masking of stored values and secrets
//
// Servers take a *slog.Logger built by NewSlog; command-line code uses the
// Logger interface and the package-level helpers.
package logger
