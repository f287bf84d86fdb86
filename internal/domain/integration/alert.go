package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AlertSeverity ranks how urgently an operator should look at an alert.
type AlertSeverity string

const (
	AlertSeverityMedium AlertSeverity = "MEDIUM"
	AlertSeverityHigh   AlertSeverity = "HIGH"
)

// AlertKind names the condition an alert reports.
type AlertKind string

const (
	// AlertKindConsecutiveFailures fires on >=N consecutive failed syncs
	AlertKindConsecutiveFailures AlertKind = "CONSECUTIVE_SYNC_FAILURES"
	// AlertKindSlowHealthCheck fires when a successful probe exceeds the
	// latency threshold
	AlertKindSlowHealthCheck AlertKind = "SLOW_HEALTH_CHECK"
	// AlertKindStaleIntegration fires when no probe has passed in N hours
	AlertKindStaleIntegration AlertKind = "STALE_INTEGRATION"
	// AlertKindStuckWebhooks fires on a backlog of unprocessed events
	AlertKindStuckWebhooks AlertKind = "STUCK_WEBHOOKS"
)

// Alert is a pure computation over persisted history; the only hidden state
// is a per-key cooldown that stops the same condition re-notifying every
// cycle.
type Alert struct {
	Kind     AlertKind
	Severity AlertSeverity
	Provider Provider
	// IntegrationID is nil for provider-scoped alerts (stuck webhooks).
	IntegrationID *uuid.UUID
	Message       string
	RaisedAt      time.Time
}

// Key identifies the alert condition for cooldown purposes.
func (a Alert) Key() string {
	key := string(a.Kind) + ":" + string(a.Provider)
	if a.IntegrationID != nil {
		key += ":" + a.IntegrationID.String()
	}
	return key
}

// Notifier is the outbound notification channel (collaborator, out of
// scope). Implementations must not block the monitoring cycle on delivery
// failures.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}
