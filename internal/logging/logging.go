// Package logging provides the leveled console logger used across the service.
package logging

import (
	"fmt"
	"log"
	"os"
)

// Logger is a simple leveled logger that writes to the console.
type Logger struct {
	*log.Logger
}

// NewLogger creates a new Logger.
func NewLogger() *Logger {
	return &Logger{
		Logger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

// Info logs an informational message with optional key-value pairs.
func (l *Logger) Info(msg string, kv ...interface{}) {
	l.Printf("INFO: %s%s", msg, formatKV(kv))
}

// Warn logs a warning message with optional key-value pairs.
func (l *Logger) Warn(msg string, kv ...interface{}) {
	l.Printf("WARN: %s%s", msg, formatKV(kv))
}

// Error logs an error message with optional key-value pairs.
func (l *Logger) Error(msg string, kv ...interface{}) {
	l.Printf("ERROR: %s%s", msg, formatKV(kv))
}

// Debug logs a debug message with optional key-value pairs.
func (l *Logger) Debug(msg string, kv ...interface{}) {
	l.Printf("DEBUG: %s%s", msg, formatKV(kv))
}

func formatKV(kv []interface{}) string {
	if len(kv) == 0 {
		return ""
	}
	out := ""
	for i := 0; i+1 < len(kv); i += 2 {
		out += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	if len(kv)%2 != 0 {
		out += fmt.Sprintf(" %v", kv[len(kv)-1])
	}
	return out
}
