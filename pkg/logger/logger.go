package logger

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// New returns the process-wide structured logger. Output is JSON on
// stdout so the collector can index webhook and call ids without
// parsing free text.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With(slog.String("service", "dialdesk"))
}

type ctxKey struct{}

// With stores a logger in context. The gin middleware uses this to hand
// request-scoped loggers down to the reconciler and pipelines.
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

// ShutdownFlush is a no-op until a buffered handler replaces the direct
// stdout writer. Kept in the shutdown path so the call site does not
// change when that happens.
func ShutdownFlush(_ context.Context, _ time.Duration) error { return nil }
