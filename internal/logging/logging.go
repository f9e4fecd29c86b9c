// Package logging provides the leveled logger shared by all pipeline
// components. It is constructed once at startup and injected.
package logging

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level. Unknown values fall back
// to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes timestamped, leveled, component-tagged lines.
type Logger struct {
	logger *log.Logger
	level  Level
}

func New(w io.Writer, level Level) *Logger {
	return &Logger{
		logger: log.New(w, "", 0),
		level:  level,
	}
}

func (l *Logger) Debugf(component, format string, args ...any) {
	l.logf(LevelDebug, component, format, args...)
}

func (l *Logger) Infof(component, format string, args ...any) {
	l.logf(LevelInfo, component, format, args...)
}

func (l *Logger) Warnf(component, format string, args ...any) {
	l.logf(LevelWarn, component, format, args...)
}

func (l *Logger) Errorf(component, format string, args ...any) {
	l.logf(LevelError, component, format, args...)
}

func (l *Logger) logf(level Level, component, format string, args ...any) {
	if level < l.level {
		return
	}
	levelStr := "INFO"
	switch level {
	case LevelDebug:
		levelStr = "DEBUG"
	case LevelWarn:
		levelStr = "WARN"
	case LevelError:
		levelStr = "ERROR"
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("%s %s %s: %s", time.Now().Format(time.RFC3339), levelStr, component, msg)
}
