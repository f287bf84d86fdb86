package integration

import (
	"errors"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	// Credential errors
	ErrCredentialNotFound   = errors.New("integration: credential not found")
	ErrCredentialInactive   = errors.New("integration: credential is inactive")
	ErrCredentialUnusable   = errors.New("integration: credential requires operator re-authorization")
	ErrNoRefreshToken       = errors.New("integration: credential has no refresh token")
	ErrDuplicateCredential  = errors.New("integration: active credential already exists for provider and name")
	ErrCredentialInvalidEnv = errors.New("integration: invalid credential environment")

	// Integration errors
	ErrIntegrationNotFound  = errors.New("integration: integration not found")
	ErrIntegrationInactive  = errors.New("integration: integration is not active")
	ErrIntegrationNotDue    = errors.New("integration: integration is not due for sync")
	ErrSyncNotPermitted     = errors.New("integration: integration state does not permit syncing")
	ErrInvalidSyncFrequency = errors.New("integration: sync frequency must be positive")

	// Sync log errors
	ErrSyncLogNotFound = errors.New("integration: sync log not found")

	// Provider errors
	ErrProviderNotConfigured  = errors.New("integration: provider not configured")
	ErrProviderInvalid        = errors.New("integration: unknown provider")
	ErrProviderInvalidPayload = errors.New("integration: invalid provider response payload")

	// Webhook errors
	ErrWebhookEventNotFound   = errors.New("integration: webhook event not found")
	ErrWebhookInvalidSig      = errors.New("integration: invalid webhook signature")
	ErrWebhookRetriesExceeded = errors.New("integration: webhook retry limit exhausted")
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// RateLimitError is raised when a provider returns an explicit 429. It carries
// the timestamp at which calls may resume; the orchestrator skips the
// integration until then instead of retrying.
type RateLimitError struct {
	Provider Provider
	ResetAt  time.Time
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("integration: %s rate limited until %s", e.Provider, e.ResetAt.Format(time.RFC3339))
}

// AuthenticationError is raised on 401/403 responses or failed token
// exchanges. It is never retried automatically: the credential needs a
// refresh or operator re-authorization.
type AuthenticationError struct {
	Provider Provider
	// Permanent is true for invalid_grant/invalid_client responses, which a
	// token refresh cannot fix.
	Permanent bool
	Reason    string
}

// Error implements the error interface
func (e *AuthenticationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("integration: %s authentication failed", e.Provider)
	}
	return fmt.Sprintf("integration: %s authentication failed: %s", e.Provider, e.Reason)
}

// TransientRequestError is raised after retries are exhausted on network
// failures, timeouts and 5xx responses. The sync attempt fails but the
// integration stays eligible for the next due cycle.
type TransientRequestError struct {
	Provider   Provider
	StatusCode int
	Attempts   int
	Err        error
}

// Error implements the error interface
func (e *TransientRequestError) Error() string {
	return fmt.Sprintf("integration: %s request failed after %d attempts (status %d): %v",
		e.Provider, e.Attempts, e.StatusCode, e.Err)
}

// Unwrap returns the underlying transport error
func (e *TransientRequestError) Unwrap() error {
	return e.Err
}

// ValidationError is raised by downstream record mapping for a single record.
// It is logged per record and never aborts the sync; partial success is a
// first-class SyncLog status.
type ValidationError struct {
	Provider   Provider
	ExternalID string
	Field      string
	Reason     string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("integration: invalid %s record %s: %s %s",
		e.Provider, e.ExternalID, e.Field, e.Reason)
}

// IsRateLimit reports whether err is a RateLimitError, returning it if so.
func IsRateLimit(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) (*AuthenticationError, bool) {
	var ae *AuthenticationError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsTransient reports whether err is a TransientRequestError.
func IsTransient(err error) (*TransientRequestError, bool) {
	var te *TransientRequestError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
