package integration

import (
	"time"

	"github.com/google/uuid"
)

// MaxWebhookAttempts bounds retry storms from malformed payloads: after this
// many failed processing attempts an event is permanently parked for manual
// triage.
const MaxWebhookAttempts = 3

// WebhookEvent is one inbound push notification. The row is created
// atomically on receipt, before any interpretation, so no notification is
// lost even if processing fails. Events are owned by provider scope, not by
// a specific integration.
type WebhookEvent struct {
	ID       uuid.UUID
	Provider Provider
	// Topic is the provider's event type (e.g. "orders/updated").
	Topic string
	// ExternalEventID is the provider-assigned delivery id, used for
	// duplicate-delivery suppression where the provider sends one.
	ExternalEventID string
	Payload         []byte
	Headers         map[string]string

	Processed    bool
	ProcessedAt  *time.Time
	RetryCount   int
	ErrorMessage string

	ReceivedAt time.Time
	UpdatedAt  time.Time
}

// NewWebhookEvent creates an unprocessed event from a raw delivery.
func NewWebhookEvent(provider Provider, topic, externalEventID string, payload []byte, headers map[string]string) (*WebhookEvent, error) {
	if !provider.IsValid() {
		return nil, ErrProviderInvalid
	}
	now := time.Now()
	return &WebhookEvent{
		ID:              uuid.New(),
		Provider:        provider,
		Topic:           topic,
		ExternalEventID: externalEventID,
		Payload:         payload,
		Headers:         headers,
		ReceivedAt:      now,
		UpdatedAt:       now,
	}, nil
}

// CanRetry returns true while the event is unprocessed and under the attempt
// bound.
func (e *WebhookEvent) CanRetry() bool {
	return !e.Processed && e.RetryCount < MaxWebhookAttempts
}

// MarkProcessed finalizes the event after successful interpretation.
func (e *WebhookEvent) MarkProcessed(now time.Time) {
	e.Processed = true
	e.ProcessedAt = &now
	e.ErrorMessage = ""
	e.UpdatedAt = now
}

// RecordFailure increments the retry counter and keeps the event unprocessed
// for the next sweep (or for manual triage once CanRetry is false).
func (e *WebhookEvent) RecordFailure(message string) {
	const maxErrorLen = 500
	if len(message) > maxErrorLen {
		message = message[:maxErrorLen]
	}
	e.RetryCount++
	e.ErrorMessage = message
	e.UpdatedAt = time.Now()
}

// Terminal returns true once the event needs no further automatic work:
// either processed, or parked after exhausting its attempts.
func (e *WebhookEvent) Terminal() bool {
	return e.Processed || e.RetryCount >= MaxWebhookAttempts
}
