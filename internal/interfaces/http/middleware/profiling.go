package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/syncbridge/backend/internal/infrastructure/telemetry"
)

// ProfilingConfig configures the continuous-profiling label middleware.
type ProfilingConfig struct {
	Enabled bool
	// SkipPaths are exact paths that never get labels, typically health
	// probes that would dominate the profile stream.
	SkipPaths []string
}

// ProfilingWithConfig tags request goroutines with pprof labels so the
// profiler can slice flame graphs by route, method, and provider.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		telemetry.WithProfilingLabels(c.Request.Context(), requestLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// requestLabels builds the label set for a request. Everything here is
// route-pattern derived, so cardinality stays bounded by the route table.
func requestLabels(c *gin.Context) map[string]string {
	labels := map[string]string{
		telemetry.ProfilingLabelMethod: c.Request.Method,
	}
	route := c.FullPath()
	if route != "" {
		labels[telemetry.ProfilingLabelRoute] = route
	}
	if resource := routeResource(route); resource != "" {
		labels[telemetry.ProfilingLabelController] = resource
	}
	if provider := c.Param("provider"); provider != "" {
		labels[telemetry.ProfilingLabelProvider] = provider
	}
	return labels
}

// routeResource picks the resource segment out of a route pattern:
// "/api/v1/integrations/:id/logs" yields "integrations",
// "/webhooks/:provider" yields "webhooks".
func routeResource(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || strings.HasPrefix(part, ":") || versionSegment(part) {
			continue
		}
		return part
	}
	return ""
}

func versionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
