// Package logging builds the structured logger every node program uses.
// Grounded on ws/internal/shared/monitoring/logger.go, with one change
// forced by this domain: stdout carries the wire protocol, so all log
// output goes to stderr instead.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is the minimum severity a logger emits.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format is the logger's output encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

// Config controls logger construction.
type Config struct {
	Level  Level
	Format Format
	// Component names this node program in every log line (e.g. "echo",
	// "unique-id", "broadcast").
	Component string
}

// New builds a zerolog.Logger writing to stderr with a timestamp and a
// "component" field identifying which node program produced the line.
func New(cfg Config) zerolog.Logger {
	var level zerolog.Level
	switch cfg.Level {
	case LevelDebug:
		level = zerolog.DebugLevel
	case LevelWarn:
		level = zerolog.WarnLevel
	case LevelError:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stderr
	if cfg.Format == FormatPretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Str("component", cfg.Component).
		Logger()
}
