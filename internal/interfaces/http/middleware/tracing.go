package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxRequestIDLength caps the request_id span attribute so an abusive
// X-Request-ID header cannot inflate trace storage.
const maxRequestIDLength = 128

// TracingConfig configures the server span middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// TracingWithConfig opens a server span per request via otelgin. Register
// SpanAnnotations directly after it; otelgin ends the span when the chain
// unwinds, so annotations must run inside the chain, not after it.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanAnnotations enriches the live server span with the request ID and
// webhook provider, and marks 5xx responses as span errors.
func SpanAnnotations() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if id := spanRequestID(c); id != "" {
				span.SetAttributes(attribute.String("request_id", id))
			}
			if provider := c.Param("provider"); provider != "" {
				span.SetAttributes(attribute.String("provider", provider))
			}
		}

		c.Next()

		if span.IsRecording() {
			if status := c.Writer.Status(); status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
				span.SetAttributes(attribute.Int("http.response.status_code", status))
			}
		}
	}
}

func spanRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	id := c.GetHeader("X-Request-ID")
	if len(id) > maxRequestIDLength {
		id = id[:maxRequestIDLength]
	}
	return id
}
