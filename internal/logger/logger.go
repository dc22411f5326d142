// Package logger builds the slog loggers used across normgraph.
//
// Records are rendered by a charmbracelet/log handler so the CLI gets
// readable text output on a terminal and JSON lines when asked.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Level is a log level name.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Format is an output format name.
type Format string

const (
	TextFormat Format = "text"
	JSONFormat Format = "json"
)

// Config configures New.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer

	// TimeFormat is used by the text format. Empty disables timestamps.
	TimeFormat string
}

// DefaultConfig returns text output at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Format:     TextFormat,
		Output:     os.Stderr,
		TimeFormat: "15:04:05",
	}
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return l, nil
	default:
		return "", fmt.Errorf("invalid log level %q: must be debug, info, warn, or error", s)
	}
}

func (l Level) charm() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// New returns a slog.Logger backed by a charmbracelet/log handler.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	handler := charmlog.NewWithOptions(out, charmlog.Options{
		Level:           cfg.Level.charm(),
		ReportTimestamp: cfg.TimeFormat != "",
		TimeFormat:      cfg.TimeFormat,
	})
	if cfg.Format == JSONFormat {
		handler.SetFormatter(charmlog.JSONFormatter)
	} else {
		handler.SetFormatter(charmlog.TextFormatter)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
