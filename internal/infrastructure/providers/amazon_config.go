package providers

import (
	"errors"
	"fmt"
	"time"
)

// AmazonConfig holds the adapter-level settings for the Amazon Selling
// Partner API.
type AmazonConfig struct {
	// Endpoint is the regional SP-API base, e.g.
	// https://sellingpartnerapi-na.amazon.com
	Endpoint string
	// AuthURL is the LWA token endpoint
	AuthURL string
	// PageSize bounds one page of a list request
	PageSize int
	// Timeout bounds each outbound request
	Timeout time.Duration
	// MaxRetries is the retry budget for idempotent requests
	MaxRetries int
}

// Validate checks the configuration
func (c *AmazonConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("amazon: endpoint is required")
	}
	if c.AuthURL == "" {
		return errors.New("amazon: auth url is required")
	}
	if c.PageSize <= 0 || c.PageSize > 100 {
		return fmt.Errorf("amazon: page size must be within (0,100], got %d", c.PageSize)
	}
	if c.Timeout <= 0 {
		return errors.New("amazon: timeout must be positive")
	}
	return nil
}
