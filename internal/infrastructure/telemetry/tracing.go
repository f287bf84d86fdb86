package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies spans opened by the engine's own code, as opposed
// to those from instrumentation libraries (otelgin, otelgorm).
const tracerName = "syncbridge/engine"

// StartSpan opens an internal span on the engine tracer. The global
// provider is consulted at call time, so this works no matter when the
// trace pipeline was installed, and degrades to a no-op span without one.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return startSpan(ctx, name, trace.SpanKindInternal, attrs)
}

// StartClientSpan opens a client span for an outbound call to a provider
// API. Span kind matters here: collectors use it to build service maps.
func StartClientSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return startSpan(ctx, name, trace.SpanKindClient, attrs)
}

func startSpan(ctx context.Context, name string, kind trace.SpanKind, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(kind)}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return otel.GetTracerProvider().Tracer(tracerName).Start(ctx, name, opts...)
}

// EndSpan closes the span, marking it failed when err is non-nil. Meant
// for the deferred call at the top of a traced operation.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
