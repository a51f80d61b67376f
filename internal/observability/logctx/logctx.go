package logctx

import (
	"context"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
)

type loggerKey struct{}

// With returns ctx carrying logger. A nil logger leaves ctx unchanged.
func With(ctx context.Context, logger observability.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// From returns the logger carried by ctx, or nil.
func From(ctx context.Context) observability.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey{}).(observability.Logger)
	return logger
}

func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if logger := From(ctx); logger != nil {
		return logger
	}
	return fallback
}

// Enrich stores a child of the context logger (or fallback) that carries fields.
func Enrich(ctx context.Context, fallback observability.Logger, fields ...observability.Field) context.Context {
	base := FromOr(ctx, fallback)
	if base == nil {
		base = observability.NopLogger()
	}
	return With(ctx, base.With(fields...))
}
