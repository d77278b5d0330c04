package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

var (
	ErrUnknownLevel  = errors.New("unknown log level")
	ErrUnknownFormat = errors.New("unknown log format")
)

// ParseLevel maps debug, info, warn and error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

// ValidateFormat accepts json and text.
func ValidateFormat(s string) error {
	switch strings.ToLower(s) {
	case FormatJSON, FormatText:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// New builds the process logger on stdout and sets it as the slog default.
// Unknown values fall back to json at info.
func New(logFormat, logLevel string) *slog.Logger {
	logger := NewWithWriter(os.Stdout, logFormat, logLevel)

	slog.SetDefault(logger)

	return logger
}

// NewWithWriter builds a logger writing to w without touching the default.
func NewWithWriter(w io.Writer, logFormat, logLevel string) *slog.Logger {
	level, _ := ParseLevel(logLevel)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler

	switch strings.ToLower(logFormat) {
	case FormatText:
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", "toolmanager")
}
