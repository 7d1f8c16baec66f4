package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Package logger is a small printf-style facade over zerolog so call
// sites can stay as logger.Info("[Tag] ...", args...) regardless of the
// configured level or output format.

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().
	Timestamp().
	Logger()

// ParseLevel converts a level name into a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	case "panic":
		return zerolog.PanicLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level: %q", s)
}

// SetLevel sets the global minimum level.
func SetLevel(level zerolog.Level) {
	log = log.Level(level)
}

func Trace(format string, args ...any) {
	log.Trace().Msgf(format, args...)
}

func Debug(format string, args ...any) {
	log.Debug().Msgf(format, args...)
}

func Info(format string, args ...any) {
	log.Info().Msgf(format, args...)
}

func Warn(format string, args ...any) {
	log.Warn().Msgf(format, args...)
}

func Error(format string, args ...any) {
	log.Error().Msgf(format, args...)
}
