// Package middleware provides the HTTP middleware for the engine's API.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/syncbridge/backend/internal/infrastructure/telemetry"
)

// HTTPMetricsConfig configures the request metrics middleware.
type HTTPMetricsConfig struct {
	MeterProvider *telemetry.MeterProvider
	ServiceName   string
	Enabled       bool
}

// httpInstruments holds the per-request instruments.
type httpInstruments struct {
	requests       *telemetry.Counter
	duration       *telemetry.Histogram
	requestSize    *telemetry.Histogram
	responseSize   *telemetry.Histogram
	activeRequests metric.Int64UpDownCounter
}

var sizeBuckets = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	requests, err := telemetry.NewCounter(meter,
		"syncbridge_http_requests_total",
		"Total HTTP requests served",
		"{request}",
	)
	if err != nil {
		return nil, err
	}

	duration, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "syncbridge_http_request_duration_seconds",
		Description: "HTTP request latency",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	requestSize, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "syncbridge_http_request_size_bytes",
		Description: "HTTP request body size",
		Unit:        "By",
		Boundaries:  sizeBuckets,
	})
	if err != nil {
		return nil, err
	}

	responseSize, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "syncbridge_http_response_size_bytes",
		Description: "HTTP response body size",
		Unit:        "By",
		Boundaries:  sizeBuckets,
	})
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"syncbridge_http_active_requests",
		metric.WithDescription("In-flight HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &httpInstruments{
		requests:       requests,
		duration:       duration,
		requestSize:    requestSize,
		responseSize:   responseSize,
		activeRequests: activeRequests,
	}, nil
}

// HTTPMetrics records request count, latency, body sizes, and in-flight
// requests. Routes are labelled by pattern, not raw path, so webhook
// endpoints with per-provider IDs stay low-cardinality.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passthrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("syncbridge.http"), true)
}

// HTTPMetricsWithMeter builds the middleware on an explicit meter.
func HTTPMetricsWithMeter(meter metric.Meter, enabled bool) gin.HandlerFunc {
	if !enabled {
		return passthrough
	}
	inst, err := newHTTPInstruments(meter)
	if err != nil {
		return passthrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		requestSize := c.Request.ContentLength

		inst.activeRequests.Add(ctx, 1)
		c.Next()
		inst.activeRequests.Add(ctx, -1)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		baseAttrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
		}

		countAttrs := append(baseAttrs, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))
		if provider := c.Param("provider"); provider != "" {
			countAttrs = append(countAttrs, telemetry.AttrProvider.String(provider))
		}
		inst.requests.Inc(ctx, countAttrs...)

		inst.duration.RecordDuration(ctx, time.Since(start), baseAttrs...)
		if requestSize > 0 {
			inst.requestSize.Record(ctx, float64(requestSize), baseAttrs...)
		}
		if size := c.Writer.Size(); size > 0 {
			inst.responseSize.Record(ctx, float64(size), baseAttrs...)
		}
	}
}

func passthrough(c *gin.Context) {
	c.Next()
}
