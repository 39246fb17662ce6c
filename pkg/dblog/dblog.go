// Package dblog is the engine's structured logging wrapper over
// zerolog, giving every component (catalog, WAL, replicated log,
// backup) a consistently-shaped logger instead of ad-hoc fmt output.
package dblog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, configured once at process
// start by Init.
var Logger zerolog.Logger

// Level names the configurable log levels.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration read from the CLI / config file.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init configures the global logger. Until Init is called Logger is
// zerolog's zero value, which discards everything.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent returns a child logger tagging every entry with the
// owning component (catalog, wal, planner, replicate, backup, ...).
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithTable returns a child logger tagging every entry with a table
// name, used by the catalog and executor around row mutations.
func WithTable(table string) zerolog.Logger {
	return Logger.With().Str("table", table).Logger()
}

// WithReplica returns a child logger tagging every entry with a
// replicated-log node id.
func WithReplica(nodeID string) zerolog.Logger {
	return Logger.With().Str("replica", nodeID).Logger()
}

func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }

// Errorf logs err against a contextual message, the shape most call
// sites that wrap a returned error use.
func Errorf(msg string, err error) {
	Logger.Error().Err(err).Msg(msg)
}
