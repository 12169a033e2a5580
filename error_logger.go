package fetchlist

import (
	"log/slog"
)

// ErrorLogger records a failure once, where it is handled.
// Implementations must not panic and must not block for long.
type ErrorLogger interface {
	LogError(tag, message string, cause error)
}

// ErrorLoggerFunc adapts an ordinary function to the ErrorLogger interface.
type ErrorLoggerFunc func(tag, message string, cause error)

// LogError calls f(tag, message, cause).
func (f ErrorLoggerFunc) LogError(tag, message string, cause error) {
	f(tag, message, cause)
}

// SlogErrorLogger writes errors to a slog.Logger.
type SlogErrorLogger struct {
	logger *slog.Logger
}

// NewSlogErrorLogger creates an ErrorLogger backed by logger. Nil means slog.Default().
func NewSlogErrorLogger(logger *slog.Logger) *SlogErrorLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogErrorLogger{logger: logger}
}

// LogError writes an error record with the tag and cause as attributes.
// A panicking handler is swallowed; logging is fire-and-forget.
func (l *SlogErrorLogger) LogError(tag, message string, cause error) {
	defer func() {
		_ = recover()
	}()

	attrs := []any{"tag", tag}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	l.logger.Error(message, attrs...)
}
