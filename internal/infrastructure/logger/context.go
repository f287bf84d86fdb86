package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey struct{}

// WithContext attaches log to ctx. The sync orchestrator and webhook
// pipeline use this to hand provider adapters a logger already scoped
// to the integration being worked.
func WithContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the logger attached to ctx, or a nop logger when
// the caller arrived without one.
func FromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return log
	}
	return zap.NewNop()
}

// WithTraceContext returns log enriched with the active span's trace and
// span IDs, or log unchanged when no span is recording.
func WithTraceContext(ctx context.Context, log *zap.Logger) *zap.Logger {
	if fields := traceFields(ctx); fields != nil {
		return log.With(fields...)
	}
	return log
}

func traceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
