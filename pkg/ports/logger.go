// Package ports defines the interfaces between the decode engine and its
// external collaborators: byte sources, decode backends, frame sinks, the file
// system and logging.
package ports

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LevelDebug is for per-component detail such as seeks and decode steps.
	LevelDebug LogLevel = iota
	// LevelInfo is for command-level progress.
	LevelInfo
	// LevelWarn is for rejected requests that do not stop processing.
	LevelWarn
	// LevelError is for failures surfaced to the user.
	LevelError
	// LevelQuiet suppresses all log output.
	LevelQuiet
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// ParseLogLevel parses a string into a LogLevel. Unknown strings map to LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "quiet":
		return LevelQuiet
	default:
		return LevelInfo
	}
}

// Logger abstracts logging operations with translatable message keys.
type Logger interface {
	// Debug logs a message key with format arguments at debug level.
	Debug(msg string, args ...interface{})

	// Info logs at info level.
	Info(msg string, args ...interface{})

	// Warn logs at warn level.
	Warn(msg string, args ...interface{})

	// Error logs at error level.
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that prefixes messages with the component name.
	WithComponent(component string) Logger
}
