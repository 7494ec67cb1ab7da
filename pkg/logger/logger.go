// pkg/logger/logger.go
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Logger is a wrapper around the standard log.Logger
type Logger struct {
	*log.Logger
	debug bool
}

// New creates a new logger instance writing to stdout with a standard prefix.
func New(prefix string) *Logger {
	return NewWithWriter(os.Stdout, prefix, false)
}

// NewWithWriter creates a logger writing to w. Debug lines are dropped unless debug is set.
func NewWithWriter(w io.Writer, prefix string, debug bool) *Logger {
	return &Logger{
		Logger: log.New(w, prefix, log.LstdFlags|log.Lmsgprefix),
		debug:  debug,
	}
}

// Discard returns a logger that writes nowhere. Handy in tests.
func Discard() *Logger {
	return NewWithWriter(io.Discard, "", false)
}

// With derives a logger whose lines carry an extra component tag.
func (l *Logger) With(component string) *Logger {
	prefix := l.Prefix()
	if component != "" {
		prefix = strings.TrimSpace(prefix+" ["+component+"]") + " "
	}
	return &Logger{
		Logger: log.New(l.Writer(), prefix, l.Flags()),
		debug:  l.debug,
	}
}

// SetDebug toggles debug output.
func (l *Logger) SetDebug(on bool) { l.debug = on }

func (l *Logger) output(level string, msg string) {
	_ = l.Output(3, level+": "+strings.TrimRight(msg, "\n"))
}

// Info logs an informational message.
func (l *Logger) Info(v ...interface{}) { l.output("INFO", fmt.Sprintln(v...)) }

// Error logs an error message.
func (l *Logger) Error(v ...interface{}) { l.output("ERROR", fmt.Sprintln(v...)) }

// Warn logs a warning message.
func (l *Logger) Warn(v ...interface{}) { l.output("WARN", fmt.Sprintln(v...)) }

// Debug logs only when debug output is enabled.
func (l *Logger) Debug(v ...interface{}) {
	if l.debug {
		l.output("DEBUG", fmt.Sprintln(v...))
	}
}

func (l *Logger) Infof(format string, v ...interface{}) { l.output("INFO", fmt.Sprintf(format, v...)) }
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.output("ERROR", fmt.Sprintf(format, v...))
}
func (l *Logger) Warnf(format string, v ...interface{}) { l.output("WARN", fmt.Sprintf(format, v...)) }

func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.output("DEBUG", fmt.Sprintf(format, v...))
	}
}
