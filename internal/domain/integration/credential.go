package integration

import (
	"time"

	"github.com/google/uuid"
)

// CredentialEnvironment tags a credential set as production or sandbox.
type CredentialEnvironment string

const (
	CredentialEnvProduction CredentialEnvironment = "production"
	CredentialEnvSandbox    CredentialEnvironment = "sandbox"
)

// IsValid returns true if the environment tag is valid
func (e CredentialEnvironment) IsValid() bool {
	switch e {
	case CredentialEnvProduction, CredentialEnvSandbox:
		return true
	default:
		return false
	}
}

// Credential holds one provider account's secrets and OAuth token state.
// Exactly one active credential exists per (provider, name); credentials are
// never hard-deleted, only deactivated.
type Credential struct {
	ID           uuid.UUID
	Provider     Provider
	Name         string
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	// ExpiresAt is when the current access token expires. Zero means the
	// provider issued a non-expiring token.
	ExpiresAt   time.Time
	Environment CredentialEnvironment
	IsActive    bool
	// Unusable is set when the provider rejects the refresh token
	// (invalid_grant/invalid_client). Cleared only by operator
	// re-authorization.
	Unusable      bool
	UnusableCause string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewCredential creates an active credential for a provider account.
func NewCredential(provider Provider, name, clientID, clientSecret string, env CredentialEnvironment) (*Credential, error) {
	if !provider.IsValid() {
		return nil, ErrProviderInvalid
	}
	if !env.IsValid() {
		return nil, ErrCredentialInvalidEnv
	}
	now := time.Now()
	return &Credential{
		ID:           uuid.New(),
		Provider:     provider,
		Name:         name,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Environment:  env,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsTokenExpired returns true when the access token has already expired.
func (c *Credential) IsTokenExpired() bool {
	return c.IsTokenExpiredAt(time.Now())
}

// IsTokenExpiredAt is the clock-injected form of IsTokenExpired.
func (c *Credential) IsTokenExpiredAt(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// NeedsRefresh returns true when the token expires within the given buffer,
// so a refresh can happen before in-flight calls race a 401.
func (c *Credential) NeedsRefresh(buffer time.Duration) bool {
	return c.NeedsRefreshAt(time.Now(), buffer)
}

// NeedsRefreshAt is the clock-injected form of NeedsRefresh.
func (c *Credential) NeedsRefreshAt(now time.Time, buffer time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt.Add(-buffer))
}

// Usable returns true if the credential can authenticate requests.
func (c *Credential) Usable() bool {
	return c.IsActive && !c.Unusable
}

// ApplyRefresh replaces the token fields after a successful token exchange.
// Writes are last-writer-wins: tokens are idempotent secrets, so a concurrent
// refresh overwriting this one leaves the credential valid either way.
func (c *Credential) ApplyRefresh(accessToken, rotatedRefreshToken string, expiresAt time.Time) {
	c.AccessToken = accessToken
	if rotatedRefreshToken != "" {
		c.RefreshToken = rotatedRefreshToken
	}
	c.ExpiresAt = expiresAt
	c.Unusable = false
	c.UnusableCause = ""
	c.UpdatedAt = time.Now()
}

// MarkUnusable records a permanent auth failure. Integrations using this
// credential transition to ERROR and are not retried until an operator
// re-authorizes.
func (c *Credential) MarkUnusable(cause string) {
	c.Unusable = true
	c.UnusableCause = cause
	c.UpdatedAt = time.Now()
}

// Deactivate retires the credential without deleting it.
func (c *Credential) Deactivate() {
	c.IsActive = false
	c.UpdatedAt = time.Now()
}
