// Package logging builds the zerolog logger shared by every component.
//
// Components derive their own logger with a "component" field:
//
//	log := logger.With().Str("component", "supervisor").Logger()
//
// Never log keys or passwords.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/sesame-bridge/internal/config"
)

// New creates the root logger from the logging config.
func New(cfg config.LoggingConfig, version string) zerolog.Logger {
	return NewWithWriter(cfg, version, os.Stdout)
}

// NewWithWriter is New with an explicit output, for tests.
func NewWithWriter(cfg config.LoggingConfig, version string, out io.Writer) zerolog.Logger {
	if strings.ToLower(cfg.Format) == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "sesame-bridge").
		Str("version", version).
		Logger()
}

// ParseLevel converts a config level to a zerolog level.
// Defaults to info if unrecognised.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
