package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CredentialRepository persists provider credentials.
type CredentialRepository interface {
	Save(ctx context.Context, cred *Credential) error
	FindByID(ctx context.Context, id uuid.UUID) (*Credential, error)
	FindActive(ctx context.Context, provider Provider, name string) (*Credential, error)
	FindAllActive(ctx context.Context) ([]*Credential, error)
}

// IntegrationFilter narrows integration queries.
type IntegrationFilter struct {
	Provider *Provider
	Status   *IntegrationStatus
	IsActive *bool
}

// IntegrationRepository persists integrations.
type IntegrationRepository interface {
	Save(ctx context.Context, integ *Integration) error
	FindByID(ctx context.Context, id uuid.UUID) (*Integration, error)
	FindAll(ctx context.Context, filter IntegrationFilter) ([]*Integration, error)
	// FindDue returns active integrations whose next_sync_at has elapsed
	// and whose status is not ERROR, in due-query order.
	FindDue(ctx context.Context, now time.Time) ([]*Integration, error)
	// FindActive returns integrations eligible for health probing.
	FindActive(ctx context.Context) ([]*Integration, error)
	FindByCredential(ctx context.Context, credentialID uuid.UUID) ([]*Integration, error)
}

// SyncLogRepository persists sync attempts.
type SyncLogRepository interface {
	Save(ctx context.Context, log *SyncLog) error
	FindByID(ctx context.Context, id uuid.UUID) (*SyncLog, error)
	// FindRecent returns the integration's latest attempts, newest first.
	FindRecent(ctx context.Context, integrationID uuid.UUID, limit int) ([]*SyncLog, error)
	// FindSince returns attempts within the rolling window, newest first.
	FindSince(ctx context.Context, integrationID uuid.UUID, since time.Time) ([]*SyncLog, error)
	// Delete discards a single attempt record. Used when an attempt turns
	// out not to be a failure worth keeping (provider throttling).
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// WebhookEventRepository persists inbound push notifications.
type WebhookEventRepository interface {
	Save(ctx context.Context, event *WebhookEvent) error
	FindByID(ctx context.Context, id uuid.UUID) (*WebhookEvent, error)
	// FindPending selects unprocessed events received before graceBefore
	// (avoids racing an in-flight delivery) and after retentionAfter, with
	// retry_count below the attempt bound, oldest first.
	FindPending(ctx context.Context, graceBefore, retentionAfter time.Time, limit int) ([]*WebhookEvent, error)
	// CountStuck counts unprocessed events older than the delay threshold,
	// including permanently parked ones.
	CountStuck(ctx context.Context, olderThan time.Time) (int64, error)
	// FindTerminalOlderThan returns processed or parked events past the
	// retention cutoff, for archival and deletion.
	FindTerminalOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*WebhookEvent, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// HealthCheckRepository persists connectivity probes.
type HealthCheckRepository interface {
	Save(ctx context.Context, check *HealthCheck) error
	// FindSince returns probes within the rolling window, newest first.
	FindSince(ctx context.Context, integrationID uuid.UUID, since time.Time) ([]*HealthCheck, error)
	// LastPassed returns the most recent successful probe, or nil.
	LastPassed(ctx context.Context, integrationID uuid.UUID) (*HealthCheck, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
