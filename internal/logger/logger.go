// Package logger builds the zerolog loggers used across the service and
// plumbs them through request contexts.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys used by the logger
type ContextKey string

const (
	// LoggerKey is the context key for the logger instance
	LoggerKey ContextKey = "logger"

	defaultService = "txnflow"
)

// New creates a structured console logger tagged with the service name.
func New(service string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().
		Timestamp().
		Caller().
		Str("service", serviceOrDefault(service)).
		Logger()
}

// NewWithLevel creates a service logger at the given level. Unknown level
// names fall back to info.
func NewWithLevel(service, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return New(service).Level(lvl)
}

// NewWithWriter creates a service logger writing to a custom writer.
func NewWithWriter(service string, w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().
		Timestamp().
		Caller().
		Str("service", serviceOrDefault(service)).
		Logger()
}

// WithContext adds the logger to the context
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from the context or returns a default logger
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return New(defaultService)
}

// WithFields adds structured fields to a logger
func WithFields(logger zerolog.Logger, fields map[string]interface{}) zerolog.Logger {
	ctx := logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return ctx.Logger()
}

func serviceOrDefault(service string) string {
	if service == "" {
		return defaultService
	}
	return service
}
