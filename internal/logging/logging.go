// Package logging builds the process logger on [log/slog] and carries
// request-scoped loggers through context values ([WithLogger],
// [FromContext]).
//
// Environment variables:
//
//	LOG_LEVEL  = debug | info | warn | error  (default: info)
//	LOG_FORMAT = json | text                  (default: json)
//	LOG_SOURCE = true adds file:line to every record
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/54b3r/prepai-go/internal/config"
)

// contextKey is an unexported type for context keys in this package.
type contextKey struct{}

// New returns the process logger, writing to stderr. Every record carries
// service=prepai so logs from the server and one-off CLI runs can be told
// apart from co-located services.
func New() *slog.Logger {
	return NewWriter(os.Stderr)
}

// NewWriter is [New] writing to w.
func NewWriter(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(os.Getenv("LOG_LEVEL")),
		AddSource: config.Bool("LOG_SOURCE"),
	}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("service", "prepai"))
}

// Discard returns a logger that drops every record. Tests and library
// constructors use it when no logger is supplied.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the [*slog.Logger] stored in ctx.
// If no logger is present it returns [slog.Default] so callers never
// need to nil-check.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// FromContextOr returns the logger stored in ctx, or fallback when ctx
// carries none.
func FromContextOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// parseLevel converts a string to a [slog.Level], defaulting to Info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
