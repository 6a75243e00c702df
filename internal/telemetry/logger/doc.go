// Package logger builds the structured loggers used across filekv.
//
// Loggers are plain *slog.Logger values. The package adds:
//
//   - JSON and text handlers selected by name
//   - a process-wide level that can be changed at runtime
//   - redaction of attributes whose key names a secret
//   - context propagation for command handlers
package logger
