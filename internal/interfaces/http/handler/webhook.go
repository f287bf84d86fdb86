package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// WebhookReceiver accepts inbound push notifications.
type WebhookReceiver interface {
	Receive(ctx context.Context, provider integration.Provider, topic, externalEventID string, payload []byte, headers http.Header) (*integration.WebhookEvent, error)
}

// WebhookHandler terminates the per-provider webhook endpoints. Signature
// verification, dedup and persistence happen in the webhook service; the
// handler's job is to read the raw body and name the delivery.
type WebhookHandler struct {
	BaseHandler
	receiver WebhookReceiver
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(receiver WebhookReceiver) *WebhookHandler {
	return &WebhookHandler{receiver: receiver}
}

// WebhookReceiptResponse acknowledges a stored delivery
type WebhookReceiptResponse struct {
	EventID   string `json:"event_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Receive handles POST /webhooks/:provider. Providers expect a fast 2xx:
// any response besides success triggers their redelivery machinery, so the
// handler acknowledges as soon as the row is persisted.
func (h *WebhookHandler) Receive(c *gin.Context) {
	provider := integration.Provider(strings.ToUpper(c.Param("provider")))
	if !provider.IsValid() {
		h.NotFound(c, "unknown webhook provider")
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		h.BadRequest(c, "unreadable request body")
		return
	}

	topic, externalEventID := deliveryIdentity(provider, payload, c.Request.Header)

	event, err := h.receiver.Receive(c.Request.Context(), provider, topic, externalEventID, payload, c.Request.Header)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if event == nil {
		// Duplicate delivery. Acknowledge so the provider stops resending.
		h.Success(c, WebhookReceiptResponse{Duplicate: true})
		return
	}

	h.Success(c, WebhookReceiptResponse{EventID: event.ID.String()})
}

// deliveryIdentity extracts the topic and provider-assigned delivery id from
// wherever the provider puts them.
func deliveryIdentity(provider integration.Provider, payload []byte, headers http.Header) (topic, externalEventID string) {
	switch provider {
	case integration.ProviderShopify:
		return headers.Get("X-Shopify-Topic"), headers.Get("X-Shopify-Webhook-Id")

	case integration.ProviderQuickBooks:
		// Intuit carries the delivery id in a header; the topic lives in
		// the entity list and is resolved during interpretation.
		return "eventNotifications", headers.Get("Intuit-T-Id")

	case integration.ProviderAmazon:
		// SP-API puts both in the notification envelope.
		var envelope struct {
			NotificationType     string `json:"notificationType"`
			NotificationMetadata struct {
				NotificationID string `json:"notificationId"`
			} `json:"notificationMetadata"`
		}
		if err := json.Unmarshal(payload, &envelope); err == nil {
			return envelope.NotificationType, envelope.NotificationMetadata.NotificationID
		}
	}
	return "", ""
}
