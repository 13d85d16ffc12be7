package logctx

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	loggerKey contextKey = "logger"
	attrsKey  contextKey = "attrs"
)

// WithLogger returns a new context with the provided slog.Logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves the slog.Logger from the context, or returns slog.Default() if not found.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}

	return slog.Default()
}

// WithAttrs stores correlation attributes (batch_id, url) in the context.
// ContextHandler appends them to every record logged with that context.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	existing := AttrsFromContext(ctx)

	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)

	for _, a := range attrs {
		replaced := false

		for i := range merged {
			if merged[i].Key == a.Key {
				merged[i] = a
				replaced = true

				break
			}
		}

		if !replaced {
			merged = append(merged, a)
		}
	}

	return context.WithValue(ctx, attrsKey, merged)
}

// AttrsFromContext returns the correlation attributes stored with WithAttrs.
func AttrsFromContext(ctx context.Context) []slog.Attr {
	if attrs, ok := ctx.Value(attrsKey).([]slog.Attr); ok {
		return attrs
	}

	return nil
}
