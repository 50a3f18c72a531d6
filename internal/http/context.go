package http

import (
	"context"
	"log/slog"

	"github.com/example/alarmd/internal/logging"
)

type contextKey string

const alarmIDContextKey contextKey = "alarm_id"

// ContextWithAlarmID injects the alarm identifier resolved from the request path.
func ContextWithAlarmID(ctx context.Context, alarmID int64) context.Context {
	return context.WithValue(ctx, alarmIDContextKey, alarmID)
}

// AlarmIDFromContext extracts an alarm identifier previously associated with the context.
func AlarmIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(alarmIDContextKey).(int64)
	return id, ok
}

// ContextWithLogger returns a derived context that carries the provided logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts a logger previously attached to the context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
