package integration

import (
	"time"

	"github.com/google/uuid"
)

// SyncLogStatus is the lifecycle status of one sync attempt.
type SyncLogStatus string

const (
	SyncLogStatusRunning   SyncLogStatus = "RUNNING"
	SyncLogStatusCompleted SyncLogStatus = "COMPLETED"
	SyncLogStatusPartial   SyncLogStatus = "PARTIAL"
	SyncLogStatusFailed    SyncLogStatus = "FAILED"
)

// IsValid returns true if the status is valid
func (s SyncLogStatus) IsValid() bool {
	switch s {
	case SyncLogStatusRunning, SyncLogStatusCompleted, SyncLogStatusPartial, SyncLogStatusFailed:
		return true
	default:
		return false
	}
}

// IsFinal returns true once the attempt can no longer change.
func (s SyncLogStatus) IsFinal() bool {
	return s != SyncLogStatusRunning
}

// SyncLog records one sync attempt against an integration. Created at sync
// start, finalized at sync end, immutable afterwards.
type SyncLog struct {
	ID            uuid.UUID
	IntegrationID uuid.UUID
	Kind          SyncKind
	Status        SyncLogStatus
	StartedAt     time.Time
	CompletedAt   *time.Time

	RecordsProcessed int
	RecordsSucceeded int
	RecordsFailed    int

	ErrorMessage string
}

// StartSyncLog opens a running log row for a new attempt.
func StartSyncLog(integrationID uuid.UUID, kind SyncKind) *SyncLog {
	return &SyncLog{
		ID:            uuid.New(),
		IntegrationID: integrationID,
		Kind:          kind,
		Status:        SyncLogStatusRunning,
		StartedAt:     time.Now(),
	}
}

// Complete finalizes the log from record counts. Any failed record makes the
// attempt PARTIAL rather than COMPLETED; zero successes with failures is
// FAILED.
func (l *SyncLog) Complete(processed, succeeded, failed int) {
	now := time.Now()
	l.RecordsProcessed = processed
	l.RecordsSucceeded = succeeded
	l.RecordsFailed = failed
	l.CompletedAt = &now

	switch {
	case failed == 0:
		l.Status = SyncLogStatusCompleted
	case succeeded > 0:
		l.Status = SyncLogStatusPartial
	default:
		l.Status = SyncLogStatusFailed
	}
}

// Fail finalizes the log as FAILED with a truncated error message.
func (l *SyncLog) Fail(message string) {
	const maxErrorLen = 500
	if len(message) > maxErrorLen {
		message = message[:maxErrorLen]
	}
	now := time.Now()
	l.Status = SyncLogStatusFailed
	l.ErrorMessage = message
	l.CompletedAt = &now
}

// Duration returns how long the attempt ran, zero while still running.
func (l *SyncLog) Duration() time.Duration {
	if l.CompletedAt == nil {
		return 0
	}
	return l.CompletedAt.Sub(l.StartedAt)
}
