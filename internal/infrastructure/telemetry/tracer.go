// Package telemetry wires the engine into an OpenTelemetry collector. The
// trace, metric and log pipelines share one OTLP gRPC endpoint, and the
// continuous profiler ships to Pyroscope alongside them.
package telemetry

import (
	"context"
	"fmt"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds the trace pipeline settings.
type Config struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool

	// SpanProfiles links spans to Pyroscope CPU profiles by stamping the
	// span ID as a pprof label. Requires the profiler to be running.
	SpanProfiles bool
}

// TracerProvider owns the trace pipeline lifecycle. When tracing is
// disabled every method is a no-op and the global provider stays no-op too.
type TracerProvider struct {
	sdk *sdktrace.TracerProvider
	log *zap.Logger
	cfg Config
}

// NewTracerProvider builds the OTLP trace pipeline and installs it as the
// global tracer provider, including the W3C trace-context propagator.
func NewTracerProvider(ctx context.Context, cfg Config, log *zap.Logger) (*TracerProvider, error) {
	tp := &TracerProvider{log: log, cfg: cfg}
	if !cfg.Enabled {
		log.Info("Tracing disabled; spans will not be exported")
		return tp, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := serviceResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	tp.sdk = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplingRatio)),
	)

	// Downstream spans inherit the sampling decision via the propagated
	// context, so remote children of a dropped span are dropped too.
	var provider trace.TracerProvider = tp.sdk
	if cfg.SpanProfiles {
		provider = otelpyroscope.NewTracerProvider(tp.sdk)
	}
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("Trace pipeline ready",
		zap.String("endpoint", cfg.CollectorEndpoint),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
		zap.Bool("span_profiles", cfg.SpanProfiles),
	)
	return tp, nil
}

// samplerFor maps the configured ratio onto a parent-based sampler so a
// sampled inbound request always produces a complete local trace.
func samplerFor(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1.0:
		return sdktrace.AlwaysSample()
	case ratio <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Tracer returns a named tracer. With tracing disabled this delegates to
// the global no-op provider, so callers never need to nil-check.
func (tp *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if tp.sdk == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return tp.sdk.Tracer(name, opts...)
}

// IsEnabled reports whether spans are actually exported.
func (tp *TracerProvider) IsEnabled() bool {
	return tp.cfg.Enabled && tp.sdk != nil
}

// Shutdown flushes buffered spans and stops the exporter.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.sdk == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, providerShutdownTimeout)
	defer cancel()

	if err := tp.sdk.Shutdown(ctx); err != nil {
		tp.log.Error("Trace pipeline shutdown failed", zap.Error(err))
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	tp.log.Info("Trace pipeline stopped")
	return nil
}
