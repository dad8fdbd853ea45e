// Package log provides centralized logging for the agent using charmbracelet/log.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Logger is the global logger instance.
var Logger *log.Logger

func init() {
	Logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: true,
		Level:           log.InfoLevel,
	})
}

// SetLevel sets the logging level.
func SetLevel(level log.Level) {
	Logger.SetLevel(level)
}

// SetLevelFromString sets the logging level from a config value such as
// "debug" or "warn". Unknown values leave the level unchanged and return false.
func SetLevelFromString(level string) bool {
	if strings.TrimSpace(level) == "" {
		return false
	}
	parsed, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return false
	}
	Logger.SetLevel(parsed)
	return true
}

// SetOutput redirects log output. The TUI uses this to keep the alt screen clean.
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// With returns a child logger that always carries the given key/value pairs.
func With(keyvals ...interface{}) *log.Logger {
	return Logger.With(keyvals...)
}

// Debug logs a debug message.
func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

// Info logs an info message.
func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

// Warn logs a warning message.
func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

// Error logs an error message.
func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}

// Fatal logs a fatal message and exits.
func Fatal(msg interface{}, keyvals ...interface{}) {
	Logger.Fatal(msg, keyvals...)
}

// CloseError logs an error from a close operation if the error is not nil.
// This is useful for handling deferred close errors.
func CloseError(resource string, err error) {
	if err != nil {
		Logger.Warn("failed to close resource", "resource", resource, "error", err)
	}
}
