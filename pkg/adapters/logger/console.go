// Package logger provides logging implementations.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/ideamans/go-l10n"
	"github.com/mattn/go-isatty"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// ConsoleLogger logs messages to the console with color support.
type ConsoleLogger struct {
	level     ports.LogLevel
	component string
	color     bool
	out       io.Writer
	errOut    io.Writer
}

// NewConsole creates a new console logger with the specified level.
// Color output is automatically enabled when stderr is a terminal.
// Frames may be written to stdout, so all log lines go to stderr.
func NewConsole(level ports.LogLevel) *ConsoleLogger {
	return &ConsoleLogger{
		level:  level,
		color:  isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
		out:    os.Stderr,
		errOut: os.Stderr,
	}
}

// NewWriter creates a logger without color that writes every level to w.
func NewWriter(level ports.LogLevel, w io.Writer) *ConsoleLogger {
	return &ConsoleLogger{
		level:  level,
		out:    w,
		errOut: w,
	}
}

// Debug logs a debug message.
func (l *ConsoleLogger) Debug(msg string, args ...interface{}) {
	if l.level > ports.LevelDebug {
		return
	}
	l.log(ports.LevelDebug, msg, args...)
}

// Info logs an informational message.
func (l *ConsoleLogger) Info(msg string, args ...interface{}) {
	if l.level > ports.LevelInfo {
		return
	}
	l.log(ports.LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *ConsoleLogger) Warn(msg string, args ...interface{}) {
	if l.level > ports.LevelWarn {
		return
	}
	l.log(ports.LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *ConsoleLogger) Error(msg string, args ...interface{}) {
	if l.level > ports.LevelError {
		return
	}
	l.log(ports.LevelError, msg, args...)
}

// WithComponent returns a new logger with the specified component name.
func (l *ConsoleLogger) WithComponent(component string) ports.Logger {
	return &ConsoleLogger{
		level:     l.level,
		component: component,
		color:     l.color,
		out:       l.out,
		errOut:    l.errOut,
	}
}

func (l *ConsoleLogger) log(level ports.LogLevel, msg string, args ...interface{}) {
	translated := l10n.F(msg, args...)

	var output string
	if l.component != "" {
		if l.color {
			output = fmt.Sprintf("%s[%s]%s %s", colorCyan, l.component, colorReset, translated)
		} else {
			output = fmt.Sprintf("[%s] %s", l.component, translated)
		}
	} else {
		output = translated
	}

	if l.color {
		switch level {
		case ports.LevelDebug:
			output = colorGray + output + colorReset
		case ports.LevelWarn:
			output = colorYellow + output + colorReset
		case ports.LevelError:
			output = colorRed + output + colorReset
		}
	}

	if level >= ports.LevelWarn {
		fmt.Fprintln(l.errOut, output)
	} else {
		fmt.Fprintln(l.out, output)
	}
}

var _ ports.Logger = (*ConsoleLogger)(nil)
