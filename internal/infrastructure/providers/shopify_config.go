package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// ErrShopifyMissingShopDomain indicates no shop domain could be resolved for
// the request
var ErrShopifyMissingShopDomain = errors.New("shopify: missing shop domain")

// ShopifyConfig holds the adapter-level settings for the Shopify Admin API.
// Per-account settings (shop domain, access token) live on the credential
// and integration; this struct carries what is common to every account.
type ShopifyConfig struct {
	// APIVersion is the Admin API version segment, e.g. "2024-10"
	APIVersion string
	// EndpointOverride, when set, replaces the https://{shop} base URL.
	// Used for sandbox gateways.
	EndpointOverride string
	// WebhookSecret signs inbound webhook deliveries
	WebhookSecret string
	// PageSize bounds one page of a list request
	PageSize int
	// Timeout bounds each outbound request
	Timeout time.Duration
	// MaxRetries is the retry budget for idempotent requests
	MaxRetries int
}

// Validate checks the configuration
func (c *ShopifyConfig) Validate() error {
	if c.APIVersion == "" {
		return errors.New("shopify: api version is required")
	}
	if c.PageSize <= 0 || c.PageSize > 250 {
		return fmt.Errorf("shopify: page size must be within (0,250], got %d", c.PageSize)
	}
	if c.Timeout <= 0 {
		return errors.New("shopify: timeout must be positive")
	}
	return nil
}

// SignWebhook computes the base64 HMAC-SHA256 digest Shopify sends in
// X-Shopify-Hmac-Sha256
func (c *ShopifyConfig) SignWebhook(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(c.WebhookSecret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks a delivery signature in constant time
func (c *ShopifyConfig) VerifyWebhookSignature(payload []byte, signature string) bool {
	if c.WebhookSecret == "" || signature == "" {
		return false
	}
	expected := c.SignWebhook(payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
