package telemetry

import (
	"context"
	"maps"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Label keys attached to profiles on the request path. Values must stay
// low-cardinality: Pyroscope holds one series per label combination.
const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelProvider   = "provider"
)

// maxLabelValueLength caps label values so a runaway route or header can't
// blow up series memory.
const maxLabelValueLength = 128

// highCardinalityKeys are per-request identifiers that must never become
// profile labels. Silently dropped rather than logged; this runs per request.
var highCardinalityKeys = map[string]bool{
	"request_id":  true,
	"external_id": true,
	"event_id":    true,
	"trace_id":    true,
	"span_id":     true,
	"session_id":  true,
}

// WithProfilingLabels runs fn with the labels applied to the goroutine's
// pprof label set, so samples taken inside fn carry them. The map is copied
// before use; callers may reuse it.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := labelPairs(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// labelPairs flattens a label map into pyroscope's pair form: sanitized
// keys, truncated values, sorted for deterministic series identity.
func labelPairs(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}
	copied := make(map[string]string, len(labels))
	maps.Copy(copied, labels)

	keys := make([]string, 0, len(copied))
	for k := range copied {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(copied)*2)
	for _, key := range keys {
		value := copied[key]
		if key == "" || value == "" || highCardinalityKeys[key] {
			continue
		}
		if len(value) > maxLabelValueLength {
			value = value[:maxLabelValueLength]
		}
		if sanitized := sanitizeLabelKey(key); sanitized != "" {
			pairs = append(pairs, sanitized, value)
		}
	}
	return pairs
}

// sanitizeLabelKey normalizes a key to snake_case ASCII.
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		switch c := key[i]; {
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_':
			b.WriteByte(c)
		case c == ' ' || c == '-':
			b.WriteByte('_')
		}
	}
	return b.String()
}
