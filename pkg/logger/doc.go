// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package: text output while developing, JSON
// output in production, and the environment name on every record.
package logger
