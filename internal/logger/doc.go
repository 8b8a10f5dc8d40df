// Package logger wraps a process-wide zap logger with an adjustable level.
// Loggers travel in contexts: WithKV and WithName derive request or job scoped loggers,
// and the package-level helpers log through whatever logger the context carries.
package logger
