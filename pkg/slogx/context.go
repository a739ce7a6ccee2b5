package slogx

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// WithContext stores logger in ctx for FromContext.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// With narrows the context logger with args. Handlers further down the
// chain, and the access log line, see the extra attributes.
func With(ctx context.Context, args ...any) context.Context {
	if a, ok := ctx.Value(accessKey{}).(*access); ok {
		a.attrs = append(a.attrs, args...)
	}
	return WithContext(ctx, FromContext(ctx).With(args...))
}
