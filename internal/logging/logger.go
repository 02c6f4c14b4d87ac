// Package logging configures the router's slog logger and carries the
// per-route trace ID through context so every log line of a route can be
// joined with its response and its route.completed event.
package logging

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
)

type ctxKey struct{}

// TraceIDPrefix marks router-generated trace IDs.
const TraceIDPrefix = "trc_"

// TraceIDHeader carries the trace ID in and out of routerd.
const TraceIDHeader = "X-Request-ID"

// maxTraceIDLen bounds caller-supplied trace IDs.
const maxTraceIDLen = 128

// Logger is the process logger. Route code should log through
// FromContext(ctx) so lines carry the trace_id.
var Logger *slog.Logger

func init() {
	Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// Setup points Logger at stdout. level is debug, info, warn or error
// (anything else means info); format is json (default) or text.
func Setup(level, format string) {
	SetupWriter(os.Stdout, level, format)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	}
	Logger = slog.New(h)
	slog.SetDefault(Logger)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewTraceID returns "trc_" followed by a random UUID.
func NewTraceID() string {
	return TraceIDPrefix + uuid.NewString()
}

// WithTraceID returns a copy of ctx carrying id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// TraceIDFromContext returns the trace ID in ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// FromContext returns Logger with ctx's trace_id attached, if any.
func FromContext(ctx context.Context) *slog.Logger {
	id := TraceIDFromContext(ctx)
	if id == "" {
		return Logger
	}
	return Logger.With("trace_id", id)
}

// Middleware assigns each request a trace ID and echoes it in the
// X-Request-ID response header. A caller-supplied X-Request-ID is reused
// when it is a usable ID; anything else is replaced with a fresh one, so
// the value that reaches logs and route results is always safe to print.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(TraceIDHeader)
		if !validTraceID(id) {
			id = NewTraceID()
		}
		w.Header().Set(TraceIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithTraceID(r.Context(), id)))
	})
}

// validTraceID accepts non-empty IDs of at most maxTraceIDLen characters
// drawn from letters, digits and "-_.:".
func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}
