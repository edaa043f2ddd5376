// Package logging builds the structured zerolog.Logger every component
// in this module logs through. Two output shapes are supported: JSON for
// production and a colorized console writer for local development,
// selected the same way the teacher's server does.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level is the subset of zerolog levels this module exposes at
// configuration time.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects how log lines are rendered.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Config configures New.
type Config struct {
	Level   Level
	Format  Format
	Service string
}

// New builds a zerolog.Logger per cfg and sets zerolog's global level to
// cfg.Level. The logger is returned to the caller; it is not installed
// as a global logger.
func New(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var writer = os.Stderr
	var logger zerolog.Logger
	if cfg.Format == FormatConsole {
		console := zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
		logger = zerolog.New(console)
	} else {
		logger = zerolog.New(writer)
	}

	logger = logger.With().
		Timestamp().
		Str("service", cfg.Service).
		Logger()

	return logger
}

func parseLevel(l Level) zerolog.Level {
	switch strings.ToLower(string(l)) {
	case string(LevelDebug):
		return zerolog.DebugLevel
	case string(LevelWarn):
		return zerolog.WarnLevel
	case string(LevelError):
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
