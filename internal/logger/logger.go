// Package logger configures the global zerolog logger and carries request
// ids through contexts.
package logger

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

const milliTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Options controls logger output.
type Options struct {
	Level string
	File  string
	Dev   bool
}

// Init configures the global logger. Unknown levels fall back to info.
func Init(opts Options) {
	zerolog.TimeFieldFormat = milliTimeFormat
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	zerolog.CallerMarshalFunc = padCaller

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = log.Output(output(opts)).With().Caller().Logger()
	log.Info().Str("level", level.String()).Bool("dev", opts.Dev).Msg("Logger initialized")
}

// padCaller renders file:line in a fixed-width column so messages line up.
func padCaller(_ uintptr, file string, line int) string {
	const width = 30
	path := fmt.Sprintf("%s:%d", filepath.Base(file), line)
	if len(path) >= width {
		return path[len(path)-width:]
	}
	return path + strings.Repeat(" ", width-len(path))
}

func output(opts Options) io.Writer {
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: milliTimeFormat, NoColor: !opts.Dev}
	if opts.File == "" {
		return console
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log file %s: %v\n", opts.File, err)
		return console
	}
	return zerolog.MultiLevelWriter(console, f)
}

// NewRequestID generates a random 8-character alphanumeric id.
func NewRequestID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req%06d", time.Now().UnixNano()%1000000)
	}
	for i := range b {
		b[i] = charset[b[i]%byte(len(charset))]
	}
	return string(b)
}

// WithRequestID returns a new context with the given request ID stored.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the request ID from context, or empty string.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ForRequest returns a logger enriched with the request ID from context.
func ForRequest(ctx context.Context) zerolog.Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return log.Logger
	}
	return log.Logger.With().Str("requestId", id).Logger()
}

// ForGame returns a logger tagged with a game id.
func ForGame(gameID string) zerolog.Logger {
	return log.Logger.With().Str("gameId", gameID).Logger()
}

// LogBody logs a request or response body at debug level, truncated to 1000 bytes.
func LogBody(logger zerolog.Logger, field string, body []byte) {
	if len(body) == 0 {
		return
	}
	ev := logger.Debug()
	if len(body) > 1000 {
		body = body[:1000]
		ev = ev.Bool("truncated", true)
	}
	ev.Str(field, string(body)).Msg("Body")
}
