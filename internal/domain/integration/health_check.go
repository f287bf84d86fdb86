package integration

import (
	"time"

	"github.com/google/uuid"
)

// HealthCheck records one connectivity probe against an integration. Rows are
// purely additive and time-ordered; rolling statistics and staleness alerts
// are computed over them.
type HealthCheck struct {
	ID            uuid.UUID
	IntegrationID uuid.UUID
	Passed        bool
	Latency       time.Duration
	StatusCode    int
	Message       string
	CheckedAt     time.Time
}

// PassedHealthCheck builds a successful probe record.
func PassedHealthCheck(integrationID uuid.UUID, latency time.Duration, statusCode int) *HealthCheck {
	return &HealthCheck{
		ID:            uuid.New(),
		IntegrationID: integrationID,
		Passed:        true,
		Latency:       latency,
		StatusCode:    statusCode,
		CheckedAt:     time.Now(),
	}
}

// FailedHealthCheck builds a failed probe record with a message. A zero
// statusCode means the failure happened below HTTP (DNS, dial, timeout).
func FailedHealthCheck(integrationID uuid.UUID, latency time.Duration, statusCode int, message string) *HealthCheck {
	return &HealthCheck{
		ID:            uuid.New(),
		IntegrationID: integrationID,
		Passed:        false,
		Latency:       latency,
		StatusCode:    statusCode,
		Message:       message,
		CheckedAt:     time.Now(),
	}
}
