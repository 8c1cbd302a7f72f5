// Package obs provides the ambient logging and metrics handles threaded
// through the detection core. Replaces the teacher's bare log.Printf calls
// with structured zap fields (vessel_id, run_id, step) that the pipeline
// orchestrator and every detector attach.
package obs

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

var base *zap.Logger

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	base = l
}

// SetBase overrides the process-wide base logger (used by cmd/radiancefleet
// to swap in a development logger or a test logger).
func SetBase(l *zap.Logger) {
	base = l
}

// With returns a context carrying a logger annotated with the given fields,
// for later retrieval via From.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, ctxKey{}, From(ctx).With(fields...))
}

// From returns the logger attached to ctx, or the base logger if none was
// attached.
func From(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return base
}

// Sugar returns a sugared logger for call sites that prefer printf-style
// formatting over structured fields.
func Sugar(ctx context.Context) *zap.SugaredLogger {
	return From(ctx).Sugar()
}
