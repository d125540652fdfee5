// Package logging provides the single *log.Logger the server command and
// its accept loop write through, so verbosity stays consistent no matter
// which part is talking. The store does not log.
package logging

import (
	"log"
	"os"
	"strings"
)

// Level mirrors the teacher's log_level config values. Anything below the
// configured level is dropped.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Logger wraps a stdlib *log.Logger with a minimum level.
type Logger struct {
	level Level
	base  *log.Logger
}

// New builds a Logger writing to stderr with the teacher's line prefix
// style (flags only, no structured fields — this repo never reaches for a
// structured logging library, matching the teacher's own use of "log").
func New(level Level) *Logger {
	return &Logger{level: level, base: log.New(os.Stderr, "", log.LstdFlags)}
}

// SetLevel changes the minimum level at runtime, used by the config
// file's live-reload path.
func (l *Logger) SetLevel(level Level) {
	l.level = level
}

func (l *Logger) log(level Level, prefix, format string, args ...any) {
	if level < l.level {
		return
	}
	l.base.Printf(prefix+" "+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, "[debug]", format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, "[info]", format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, "[warn]", format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, "[error]", format, args...) }

func (l *Logger) Fatalf(format string, args ...any) {
	l.base.Fatalf("[fatal] "+format, args...)
}
