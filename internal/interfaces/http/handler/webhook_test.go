package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/interfaces/http/dto"
)

type fakeReceiver struct {
	provider integration.Provider
	topic    string
	eventID  string
	payload  []byte

	event *integration.WebhookEvent
	err   error
}

func (f *fakeReceiver) Receive(_ context.Context, provider integration.Provider, topic, externalEventID string, payload []byte, _ http.Header) (*integration.WebhookEvent, error) {
	f.provider = provider
	f.topic = topic
	f.eventID = externalEventID
	f.payload = payload
	return f.event, f.err
}

func webhookRouter(receiver WebhookReceiver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewWebhookHandler(receiver)
	router.POST("/webhooks/:provider", h.Receive)
	return router
}

func TestWebhookHandler_Receive_Shopify(t *testing.T) {
	event, err := integration.NewWebhookEvent(
		integration.ProviderShopify, "orders/updated", "wh-1", []byte(`{}`), nil)
	require.NoError(t, err)

	receiver := &fakeReceiver{event: event}
	router := webhookRouter(receiver)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhooks/shopify", strings.NewReader(`{"id":42}`))
	req.Header.Set("X-Shopify-Topic", "orders/updated")
	req.Header.Set("X-Shopify-Webhook-Id", "wh-1")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, integration.ProviderShopify, receiver.provider)
	assert.Equal(t, "orders/updated", receiver.topic)
	assert.Equal(t, "wh-1", receiver.eventID)
	assert.Equal(t, `{"id":42}`, string(receiver.payload))

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, event.ID.String(), data["event_id"])
}

func TestWebhookHandler_Receive_AmazonEnvelope(t *testing.T) {
	payload := `{"notificationType":"ORDER_CHANGE","notificationMetadata":{"notificationId":"n-77"}}`
	event, err := integration.NewWebhookEvent(
		integration.ProviderAmazon, "ORDER_CHANGE", "n-77", []byte(payload), nil)
	require.NoError(t, err)

	receiver := &fakeReceiver{event: event}
	router := webhookRouter(receiver)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhooks/amazon", strings.NewReader(payload))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ORDER_CHANGE", receiver.topic)
	assert.Equal(t, "n-77", receiver.eventID)
}

func TestWebhookHandler_Receive_QuickBooksHeader(t *testing.T) {
	event, err := integration.NewWebhookEvent(
		integration.ProviderQuickBooks, "eventNotifications", "t-9", []byte(`{}`), nil)
	require.NoError(t, err)

	receiver := &fakeReceiver{event: event}
	router := webhookRouter(receiver)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhooks/quickbooks", strings.NewReader(`{}`))
	req.Header.Set("Intuit-T-Id", "t-9")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "eventNotifications", receiver.topic)
	assert.Equal(t, "t-9", receiver.eventID)
}

func TestWebhookHandler_Receive_UnknownProvider(t *testing.T) {
	receiver := &fakeReceiver{}
	router := webhookRouter(receiver)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhooks/ebay", strings.NewReader(`{}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, receiver.provider)
}

func TestWebhookHandler_Receive_InvalidSignature(t *testing.T) {
	receiver := &fakeReceiver{err: integration.ErrWebhookInvalidSig}
	router := webhookRouter(receiver)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhooks/shopify", strings.NewReader(`{}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeUnauthorized, resp.Error.Code)
}

func TestWebhookHandler_Receive_DuplicateSuppressed(t *testing.T) {
	// nil event, nil error means the delivery was already seen
	receiver := &fakeReceiver{}
	router := webhookRouter(receiver)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhooks/shopify", strings.NewReader(`{}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["duplicate"])
}

func TestDeliveryIdentity_MalformedAmazonPayload(t *testing.T) {
	topic, eventID := deliveryIdentity(integration.ProviderAmazon, []byte("not json"), http.Header{})
	assert.Empty(t, topic)
	assert.Empty(t, eventID)
}
