// Package logging builds the structured loggers used across termframe.
// Everything logs through log/slog; this package only decides the handler,
// the level and the attributes every record carries.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Category names the subsystem generating a record.
type Category string

const (
	CategoryRender   Category = "render"
	CategoryTerminal Category = "terminal"
	CategoryLayout   Category = "layout"
	CategoryConfig   Category = "config"
)

// ParseLevel maps a config string to a Level. Empty means info.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return LevelInfo, nil
	case LevelDebug:
		return LevelDebug, nil
	case LevelInfo:
		return LevelInfo, nil
	case LevelWarn, "warning":
		return LevelWarn, nil
	case LevelError:
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// SlogLevel converts to the slog level.
func (l Level) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options configures New.
type Options struct {
	Level     Level
	Format    Format
	Component string
	// SessionID tags every record; a fresh ULID is used when empty.
	SessionID string
}

// New creates a logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level.SlogLevel()}

	var handler slog.Handler
	if opts.Format == FormatText {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}

	session := opts.SessionID
	if session == "" {
		session = NewSessionID()
	}

	logger := slog.New(handler).With(slog.String("session", session))
	if opts.Component != "" {
		logger = logger.With(slog.String("component", opts.Component))
	}
	return logger
}

// Open creates a logger appending to the file at path, creating parent
// directories as needed. The returned closer releases the file.
func Open(path string, opts Options) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return New(f, opts), f, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewSessionID returns a sortable unique id for one process run.
func NewSessionID() string {
	return ulid.Make().String()
}

// WithCategory returns a logger tagged with a subsystem category.
func WithCategory(l *slog.Logger, c Category) *slog.Logger {
	return l.With(slog.String("category", string(c)))
}
