package logger

import "github.com/jsaowji/d2vsource/pkg/ports"

// NoopLogger discards all messages. Used for quiet mode and as the default
// logger of library callers that pass none.
type NoopLogger struct{}

// NewNoop creates a new no-op logger.
func NewNoop() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(msg string, args ...interface{}) {}
func (l *NoopLogger) Info(msg string, args ...interface{})  {}
func (l *NoopLogger) Warn(msg string, args ...interface{})  {}
func (l *NoopLogger) Error(msg string, args ...interface{}) {}

// WithComponent returns the same no-op logger.
func (l *NoopLogger) WithComponent(component string) ports.Logger {
	return l
}

// OrNoop returns log, or a NoopLogger when log is nil.
func OrNoop(log ports.Logger) ports.Logger {
	if log == nil {
		return NewNoop()
	}
	return log
}
