package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const RunIDKey contextKey = "run_id"
const EnvironmentIDKey contextKey = "environment_id"

func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}

func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

func WithEnvironmentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, EnvironmentIDKey, id)
}

func GetEnvironmentID(ctx context.Context) string {
	if id, ok := ctx.Value(EnvironmentIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns the default logger annotated with whatever run and
// environment identifiers ctx carries.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := GetRunID(ctx); id != "" {
		l = l.With("run_id", id)
	}
	if id := GetEnvironmentID(ctx); id != "" {
		l = l.With("environment_id", id)
	}
	return l
}
