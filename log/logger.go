package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// LogLevel represents logging severity
type LogLevel int

const (
	// LogLevelDebug for request-level tracing such as prompt sizes and timings
	LogLevelDebug LogLevel = iota
	// LogLevelInfo for normal operation events
	LogLevelInfo
	// LogLevelWarn for recovered failures (degraded retrieval, router fallback)
	LogLevelWarn
	// LogLevelError for failures surfaced to the caller or swallowed by triggers
	LogLevelError
	// LogLevelNone disables all logging
	LogLevelNone
)

const defaultPrefix = "[campusrag] "

// Logger is the printf-style logger every component accepts.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// DefaultLogger implements Logger using Go's standard log package
type DefaultLogger struct {
	logger *log.Logger
	level  LogLevel
}

// NewDefaultLogger creates a logger writing to stderr
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	return NewCustomLogger(os.Stderr, level)
}

// NewCustomLogger creates a logger with custom output
func NewCustomLogger(out io.Writer, level LogLevel) *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(out, defaultPrefix, log.LstdFlags),
		level:  level,
	}
}

func (l *DefaultLogger) printf(level LogLevel, format string, v ...any) {
	if l.level <= level {
		l.logger.Printf("["+level.String()+"] "+format, v...)
	}
}

// Debug logs debug messages
func (l *DefaultLogger) Debug(format string, v ...any) { l.printf(LogLevelDebug, format, v...) }

// Info logs informational messages
func (l *DefaultLogger) Info(format string, v ...any) { l.printf(LogLevelInfo, format, v...) }

// Warn logs warning messages
func (l *DefaultLogger) Warn(format string, v ...any) { l.printf(LogLevelWarn, format, v...) }

// Error logs error messages
func (l *DefaultLogger) Error(format string, v ...any) { l.printf(LogLevelError, format, v...) }

// NoOpLogger discards everything. Handy in tests.
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(format string, v ...any) {}
func (l *NoOpLogger) Info(format string, v ...any)  {}
func (l *NoOpLogger) Warn(format string, v ...any)  {}
func (l *NoOpLogger) Error(format string, v ...any) {}

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// ParseLevel maps a config string ("debug", "info", "warn", "error", "none")
// to a LogLevel. Matching is case-insensitive; "warning" and "off" are accepted.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	case "none", "off", "disable":
		return LogLevelNone, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

var defaultLogger Logger = NewDefaultLogger(LogLevelInfo)

// SetDefaultLogger sets the package-level logger
func SetDefaultLogger(logger Logger) {
	defaultLogger = logger
}

// GetDefaultLogger returns the current package-level logger
func GetDefaultLogger() Logger {
	return defaultLogger
}

// SetLogLevel replaces the package-level logger with a DefaultLogger at level
func SetLogLevel(level LogLevel) {
	defaultLogger = NewDefaultLogger(level)
}

// OrDefault returns l, or the package-level logger when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return defaultLogger
	}
	return l
}

// Debug logs a debug message using the package-level logger
func Debug(format string, v ...any) {
	defaultLogger.Debug(format, v...)
}

// Info logs an informational message using the package-level logger
func Info(format string, v ...any) {
	defaultLogger.Info(format, v...)
}

// Warn logs a warning message using the package-level logger
func Warn(format string, v ...any) {
	defaultLogger.Warn(format, v...)
}

// Error logs an error message using the package-level logger
func Error(format string, v ...any) {
	defaultLogger.Error(format, v...)
}
