package integration

import (
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// IntegrationStatus
// ---------------------------------------------------------------------------

// IntegrationStatus is the operational state of an integration.
//
// Transitions: INACTIVE -> ACTIVE <-> ERROR, ACTIVE <-> RATE_LIMITED, and
// ACTIVE/ERROR/RATE_LIMITED -> AUTHENTICATING (transient, during a token
// refresh). No state is terminal: health checks and manual resync recover
// everything except a credential-level auth failure, which needs an operator.
type IntegrationStatus string

const (
	StatusInactive       IntegrationStatus = "INACTIVE"
	StatusActive         IntegrationStatus = "ACTIVE"
	StatusError          IntegrationStatus = "ERROR"
	StatusRateLimited    IntegrationStatus = "RATE_LIMITED"
	StatusAuthenticating IntegrationStatus = "AUTHENTICATING"
)

// IsValid returns true if the status is valid
func (s IntegrationStatus) IsValid() bool {
	switch s {
	case StatusInactive, StatusActive, StatusError, StatusRateLimited, StatusAuthenticating:
		return true
	default:
		return false
	}
}

// String returns the string representation of IntegrationStatus
func (s IntegrationStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// IntegrationKind
// ---------------------------------------------------------------------------

// IntegrationKind names what a configured integration is for.
type IntegrationKind string

const (
	IntegrationKindStorefront  IntegrationKind = "storefront"
	IntegrationKindFulfillment IntegrationKind = "fulfillment"
	IntegrationKindAccounting  IntegrationKind = "accounting"
)

// IsValid returns true if the integration kind is valid
func (k IntegrationKind) IsValid() bool {
	switch k {
	case IntegrationKindStorefront, IntegrationKindFulfillment, IntegrationKindAccounting:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Integration
// ---------------------------------------------------------------------------

// Integration is one configured sync relationship with a provider account.
type Integration struct {
	ID           uuid.UUID
	CredentialID uuid.UUID
	Provider     Provider
	Kind         IntegrationKind
	Name         string

	SyncFrequency time.Duration
	LastSyncAt    *time.Time
	NextSyncAt    *time.Time

	Status       IntegrationStatus
	ErrorMessage string
	RetryCount   int

	RateLimitRemaining *int
	RateLimitResetAt   *time.Time

	// Categories selects which data classes this integration syncs.
	Categories []DataCategory
	// Config carries free-form per-integration settings (shop domain,
	// marketplace id, realm id, etc.).
	Config map[string]string

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewIntegration creates an integration in the INACTIVE state.
func NewIntegration(credentialID uuid.UUID, provider Provider, kind IntegrationKind, name string, frequency time.Duration, categories []DataCategory) (*Integration, error) {
	if !provider.IsValid() {
		return nil, ErrProviderInvalid
	}
	if frequency <= 0 {
		return nil, ErrInvalidSyncFrequency
	}
	now := time.Now()
	return &Integration{
		ID:            uuid.New(),
		CredentialID:  credentialID,
		Provider:      provider,
		Kind:          kind,
		Name:          name,
		SyncFrequency: frequency,
		Status:        StatusInactive,
		Categories:    categories,
		Config:        make(map[string]string),
		IsActive:      false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CanSyncNow reports whether the integration may attempt a sync right now:
// it must be active, not in ERROR, and past any rate-limit reset.
func (i *Integration) CanSyncNow() bool {
	return i.CanSyncAt(time.Now())
}

// CanSyncAt is the clock-injected form of CanSyncNow.
func (i *Integration) CanSyncAt(now time.Time) bool {
	if !i.IsActive {
		return false
	}
	if i.Status == StatusError {
		return false
	}
	if i.Status == StatusRateLimited {
		if i.RateLimitResetAt == nil {
			return false
		}
		return !now.Before(*i.RateLimitResetAt)
	}
	// An observed zero-remaining budget pre-emptively skips the call a 429
	// would otherwise reject, until the known reset passes.
	if i.RateLimitRemaining != nil && *i.RateLimitRemaining == 0 &&
		i.RateLimitResetAt != nil && now.Before(*i.RateLimitResetAt) {
		return false
	}
	return true
}

// IsDue reports whether next_sync_at has elapsed. Integrations with no
// next_sync_at yet (never synced) are due immediately once activated.
func (i *Integration) IsDue(now time.Time) bool {
	if !i.IsActive {
		return false
	}
	if i.NextSyncAt == nil {
		return true
	}
	return !now.Before(*i.NextSyncAt)
}

// Activate enables the integration and makes it due immediately.
func (i *Integration) Activate() {
	now := time.Now()
	i.IsActive = true
	i.Status = StatusActive
	if i.NextSyncAt == nil {
		i.NextSyncAt = &now
	}
	i.UpdatedAt = now
}

// Deactivate disables the integration without clearing its history.
func (i *Integration) Deactivate() {
	i.IsActive = false
	i.Status = StatusInactive
	i.UpdatedAt = time.Now()
}

// BeginSync optimistically marks the integration ACTIVE for the attempt.
func (i *Integration) BeginSync() {
	i.Status = StatusActive
	i.UpdatedAt = time.Now()
}

// CompleteSync records a successful attempt: error state clears and the next
// due time derives from last_sync_at + sync_frequency.
func (i *Integration) CompleteSync(now time.Time) {
	i.Status = StatusActive
	i.ErrorMessage = ""
	i.RetryCount = 0
	i.LastSyncAt = &now
	next := now.Add(i.SyncFrequency)
	i.NextSyncAt = &next
	i.UpdatedAt = now
}

// MarkError transitions to ERROR and increments the retry counter. The
// message is truncated so oversized provider responses do not bloat the row.
func (i *Integration) MarkError(message string) {
	const maxErrorLen = 500
	if len(message) > maxErrorLen {
		message = message[:maxErrorLen]
	}
	i.Status = StatusError
	i.ErrorMessage = message
	i.RetryCount++
	i.UpdatedAt = time.Now()
}

// MarkRateLimited transitions to RATE_LIMITED until resetAt.
func (i *Integration) MarkRateLimited(resetAt time.Time) {
	i.Status = StatusRateLimited
	i.RateLimitResetAt = &resetAt
	i.UpdatedAt = time.Now()
}

// ClearRateLimit returns a rate-limited integration to ACTIVE once the reset
// time has passed. No-op in any other state.
func (i *Integration) ClearRateLimit(now time.Time) {
	if i.Status != StatusRateLimited {
		return
	}
	if i.RateLimitResetAt != nil && now.Before(*i.RateLimitResetAt) {
		return
	}
	i.Status = StatusActive
	i.RateLimitResetAt = nil
	i.UpdatedAt = now
}

// BeginAuthentication marks the transient AUTHENTICATING state used while a
// token refresh is in flight.
func (i *Integration) BeginAuthentication() {
	i.Status = StatusAuthenticating
	i.UpdatedAt = time.Now()
}

// RecordHealth flips ERROR<->ACTIVE from a health-check result without
// waiting for a sync attempt: self-healing on recovery, self-degrading on
// failure. Rate-limited and inactive integrations are left alone.
func (i *Integration) RecordHealth(passed bool, message string) {
	if !i.IsActive || i.Status == StatusRateLimited {
		return
	}
	if passed {
		if i.Status == StatusError {
			i.Status = StatusActive
			i.ErrorMessage = ""
			i.RetryCount = 0
			i.UpdatedAt = time.Now()
		}
		return
	}
	i.MarkError(message)
}

// ObserveRateLimit persists the remaining/reset signals extracted from a
// provider response so the orchestrator can skip calls pre-emptively.
func (i *Integration) ObserveRateLimit(remaining int, resetAt *time.Time) {
	i.RateLimitRemaining = &remaining
	if resetAt != nil {
		i.RateLimitResetAt = resetAt
	}
	i.UpdatedAt = time.Now()
}

// SyncsCategory returns true if the integration is configured to sync the
// given data category.
func (i *Integration) SyncsCategory(c DataCategory) bool {
	for _, have := range i.Categories {
		if have == c {
			return true
		}
	}
	return false
}
