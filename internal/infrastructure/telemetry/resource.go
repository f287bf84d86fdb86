package telemetry

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// providerShutdownTimeout bounds how long a signal pipeline may spend
// flushing on shutdown before we give up on it.
const providerShutdownTimeout = 10 * time.Second

// serviceResource builds the resource shared by the trace, metric and log
// pipelines so the collector attributes all three signals to the same
// service instance.
func serviceResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build service resource: %w", err)
	}
	return res, nil
}

const serviceVersion = "1.0.0"
