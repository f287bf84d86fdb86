package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// ErrQuickBooksMissingRealmID indicates the integration config carries no
// company realm id
var ErrQuickBooksMissingRealmID = errors.New("quickbooks: missing realm id")

// QuickBooksConfig holds the adapter-level settings for the QuickBooks
// Online API.
type QuickBooksConfig struct {
	// Endpoint is the API base, e.g. https://quickbooks.api.intuit.com
	Endpoint string
	// AuthURL is the OAuth2 bearer token endpoint
	AuthURL string
	// MinorVersion pins the API minor version query parameter
	MinorVersion string
	// WebhookVerifier signs inbound webhook deliveries
	WebhookVerifier string
	// PageSize bounds one page of a query
	PageSize int
	// Timeout bounds each outbound request
	Timeout time.Duration
	// MaxRetries is the retry budget for idempotent requests
	MaxRetries int
}

// Validate checks the configuration
func (c *QuickBooksConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("quickbooks: endpoint is required")
	}
	if c.AuthURL == "" {
		return errors.New("quickbooks: auth url is required")
	}
	if c.PageSize <= 0 || c.PageSize > 1000 {
		return fmt.Errorf("quickbooks: page size must be within (0,1000], got %d", c.PageSize)
	}
	if c.Timeout <= 0 {
		return errors.New("quickbooks: timeout must be positive")
	}
	return nil
}

// SignWebhook computes the base64 HMAC-SHA256 digest Intuit sends in the
// intuit-signature header
func (c *QuickBooksConfig) SignWebhook(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(c.WebhookVerifier))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks a delivery signature in constant time
func (c *QuickBooksConfig) VerifyWebhookSignature(payload []byte, signature string) bool {
	if c.WebhookVerifier == "" || signature == "" {
		return false
	}
	expected := c.SignWebhook(payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
