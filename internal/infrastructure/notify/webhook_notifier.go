package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// Ensure WebhookNotifier implements Notifier
var _ integration.Notifier = (*WebhookNotifier)(nil)

const defaultNotifyTimeout = 10 * time.Second

// WebhookNotifier POSTs alerts as JSON to an operator-configured endpoint
// (Slack-compatible relay, PagerDuty bridge, etc.). Delivery is best-effort:
// the caller logs failures and moves on.
type WebhookNotifier struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhookNotifier creates a new WebhookNotifier for the given endpoint
func NewWebhookNotifier(endpoint string, logger *zap.Logger) (*WebhookNotifier, error) {
	if endpoint == "" {
		return nil, errors.New("notify endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookNotifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultNotifyTimeout},
		logger:     logger,
	}, nil
}

// alertPayload is the wire form of an outbound alert
type alertPayload struct {
	Kind          string    `json:"kind"`
	Severity      string    `json:"severity"`
	Provider      string    `json:"provider,omitempty"`
	IntegrationID string    `json:"integration_id,omitempty"`
	Message       string    `json:"message"`
	RaisedAt      time.Time `json:"raised_at"`
}

// Notify delivers one alert. A non-2xx response is an error; the monitoring
// cycle logs it and continues.
func (n *WebhookNotifier) Notify(ctx context.Context, alert integration.Alert) error {
	payload := alertPayload{
		Kind:     string(alert.Kind),
		Severity: string(alert.Severity),
		Provider: string(alert.Provider),
		Message:  alert.Message,
		RaisedAt: alert.RaisedAt,
	}
	if alert.IntegrationID != nil {
		payload.IntegrationID = alert.IntegrationID.String()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver alert: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert endpoint returned status %d", resp.StatusCode)
	}

	n.logger.Debug("alert delivered",
		zap.String("kind", string(alert.Kind)),
		zap.String("endpoint", n.endpoint),
	)
	return nil
}
