// Package logger builds the process *slog.Logger.
//
//   - logger.go: handler setup (JSON or text), global dynamic level
//   - context.go: logger and request id propagation through context
//   - redact.go: redaction of secret-bearing keys and URL credentials
//
// Components receive a *slog.Logger by injection; the level can be
// changed at runtime with SetLevel (the config watcher does this).
package logger
