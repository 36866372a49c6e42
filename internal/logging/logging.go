// Package logging wraps the standard logger with a LOG_LEVEL gate, matching
// the teacher's plain log.Printf idiom rather than pulling in a structured
// logging library the rest of the corpus never reaches for on its own.
package logging

import (
	"log"
	"os"
	"strings"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func parseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return Debug
	case "WARN", "WARNING":
		return Warn
	case "ERROR":
		return Error
	default:
		return Info
	}
}

// Logger gates log.Logger output by a minimum level read once at
// construction, the same "read env once at startup" shape as the teacher's
// config loading.
type Logger struct {
	min Level
	out *log.Logger
}

// New builds a Logger from the LOG_LEVEL environment variable, defaulting
// to Info when unset or unrecognized.
func New() *Logger {
	return &Logger{min: parseLevel(os.Getenv("LOG_LEVEL")), out: log.Default()}
}

func (l *Logger) log(level Level, prefix, format string, args []any) {
	if level < l.min {
		return
	}
	l.out.Printf(prefix+": "+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(Debug, "DEBUG", format, args) }
func (l *Logger) Infof(format string, args ...any)  { l.log(Info, "INFO", format, args) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(Warn, "WARN", format, args) }
func (l *Logger) Errorf(format string, args ...any) { l.log(Error, "ERROR", format, args) }
