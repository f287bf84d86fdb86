package integration

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Value objects exchanged with provider adapters
// ---------------------------------------------------------------------------

// ExternalRecord is one object fetched from a provider, keyed by
// (provider, external id). Downstream mapping into internal business records
// is a collaborator concern; the engine only guarantees upsert-by-external-id
// idempotency.
type ExternalRecord struct {
	Provider   Provider
	Category   DataCategory
	ExternalID string
	// NaturalKey disambiguates sub-records (e.g. order id + line item id)
	// so webhook redelivery upserts instead of duplicating.
	NaturalKey string
	Amount     decimal.Decimal
	Currency   string
	ModifiedAt time.Time
	// Payload is the provider's raw object, handed to the downstream
	// import pipeline untouched.
	Payload []byte
}

// SyncReport aggregates one adapter sync run over the configured categories.
type SyncReport struct {
	Processed int
	Succeeded int
	Failed    int
	// Failures lists per-record validation failures; they never abort the
	// run.
	Failures []ValidationError
}

// Add folds another category's counts into the report.
func (r *SyncReport) Add(other SyncReport) {
	r.Processed += other.Processed
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Failures = append(r.Failures, other.Failures...)
}

// ProbeResult is the outcome of a connectivity probe. Adapters never let an
// error escape TestConnection; failures come back as a failed result.
type ProbeResult struct {
	Passed     bool
	Latency    time.Duration
	StatusCode int
	Message    string
}

// TokenGrant is the outcome of a provider token exchange.
type TokenGrant struct {
	AccessToken string
	// RefreshToken is non-empty only when the provider rotated it.
	RefreshToken string
	ExpiresAt    time.Time
}

// SyncWindow bounds what a sync pulls. Incremental syncs set Since from the
// last successful cursor; full syncs use the configured lookback window.
type SyncWindow struct {
	Kind  SyncKind
	Since time.Time
	Until time.Time
}

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// ProviderClient is the capability interface every provider adapter
// implements. One implementation exists per member of the Provider enum;
// the registry resolves them at startup.
type ProviderClient interface {
	// Provider returns the provider this adapter handles
	Provider() Provider

	// TestConnection issues one lightweight authenticated request and
	// returns a structured pass/fail result. It never returns a non-nil
	// error for provider-side failures; the error return covers only
	// local misconfiguration.
	TestConnection(ctx context.Context, integ *Integration, cred *Credential) (*ProbeResult, error)

	// Sync pulls the integration's configured data categories within the
	// window and upserts them downstream. Re-entrant: running twice over
	// the same upstream objects must not create duplicates.
	Sync(ctx context.Context, integ *Integration, cred *Credential, window SyncWindow) (*SyncReport, error)

	// RefreshToken performs the provider-specific OAuth exchange:
	// refresh-token grant when a refresh token is stored, client
	// credentials otherwise. A permanent AuthenticationError means the
	// credential must be marked unusable.
	RefreshToken(ctx context.Context, cred *Credential) (*TokenGrant, error)

	// VerifyWebhook authenticates an inbound push before it is persisted.
	// Shopify-style HMAC over the raw body where the provider signs;
	// payload-embedded event ids otherwise.
	VerifyWebhook(payload []byte, headers http.Header) error

	// ProcessWebhook interprets a persisted event and applies it
	// downstream, upserting by the event's natural key so redelivery is a
	// no-op past the first successful application.
	ProcessWebhook(ctx context.Context, event *WebhookEvent) error
}

// Registry resolves the closed provider set to adapter instances. Built once
// at startup; a missing adapter is a construction error, not a runtime
// lookup failure.
type Registry interface {
	// Get returns the adapter for the provider
	Get(p Provider) (ProviderClient, error)
	// List returns all registered adapters
	List() []ProviderClient
}

// RecordImporter is the downstream import/validation pipeline (collaborator,
// out of this engine's scope). Upsert is keyed by (provider, external id).
type RecordImporter interface {
	Upsert(ctx context.Context, records []ExternalRecord) (succeeded int, failures []ValidationError, err error)
}
