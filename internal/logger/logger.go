// Package logger provides leveled logging for the pulse service.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger writes leveled messages to stderr.
type Logger struct {
	level  Level
	logger *log.Logger
}

var defaultLogger *Logger

// Init initializes the default logger with the given level and format.
// The "text" format adds source locations, "json" keeps timestamps only.
func Init(level string, format string) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}
	defaultLogger = &Logger{
		level:  parseLevel(level),
		logger: log.New(os.Stderr, "", flags),
	}
}

func logf(level Level, tag, format string, args ...any) {
	if defaultLogger == nil || defaultLogger.level > level {
		return
	}
	_ = defaultLogger.logger.Output(3, fmt.Sprintf(tag+" "+format, args...))
}

func Debug(format string, args ...any) {
	logf(DebugLevel, "[DEBUG]", format, args...)
}

func Info(format string, args ...any) {
	logf(InfoLevel, "[INFO]", format, args...)
}

func Warn(format string, args ...any) {
	logf(WarnLevel, "[WARN]", format, args...)
}

func Error(format string, args ...any) {
	logf(ErrorLevel, "[ERROR]", format, args...)
}

// Fatal logs the message regardless of level and exits.
func Fatal(format string, args ...any) {
	if defaultLogger != nil {
		_ = defaultLogger.logger.Output(3, fmt.Sprintf("[FATAL] "+format, args...))
	}
	os.Exit(1)
}
