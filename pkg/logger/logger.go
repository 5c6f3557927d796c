package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// New returns the process-wide structured logger.
// Records at error level go to stderr, everything else to stdout.
func New(level string) *slog.Logger {
	return NewWithWriters(os.Stdout, os.Stderr, ParseLevel(level))
}

// NewWithWriters builds the same logger against arbitrary sinks.
func NewWithWriters(out, errOut io.Writer, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{
		// Filtering happens in the router; the inner handlers accept everything.
		Level:       slog.LevelDebug,
		ReplaceAttr: replaceAttr,
	}
	return slog.New(&levelRouter{
		out:    slog.NewJSONHandler(out, opts),
		errOut: slog.NewJSONHandler(errOut, opts),
		level:  level,
	})
}

// ParseLevel maps error|warn|info|debug to a slog level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		if t, ok := a.Value.Any().(time.Time); ok {
			return slog.String("timestamp", t.UTC().Format(timestampLayout))
		}
		a.Key = "timestamp"
	case slog.LevelKey:
		if l, ok := a.Value.Any().(slog.Level); ok {
			return slog.String(slog.LevelKey, strings.ToLower(l.String()))
		}
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

// levelRouter applies the minimum level and splits records between the two sinks.
type levelRouter struct {
	out    slog.Handler
	errOut slog.Handler
	level  slog.Leveler
}

func (h *levelRouter) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return h.errOut.Handle(ctx, r)
	}
	return h.out.Handle(ctx, r)
}

func (h *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{out: h.out.WithAttrs(attrs), errOut: h.errOut.WithAttrs(attrs), level: h.level}
}

func (h *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{out: h.out.WithGroup(name), errOut: h.errOut.WithGroup(name), level: h.level}
}

type ctxKey struct{}

type requestIDKey struct{}

// WithRequestID stores the request id in context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id set by Middleware, or "".
func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey{}).(string)
	return s
}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
