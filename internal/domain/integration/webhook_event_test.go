package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookEvent_RetryBound(t *testing.T) {
	event, err := NewWebhookEvent(ProviderShopify, "orders/updated", "evt-1",
		[]byte(`{"id":1}`), map[string]string{"X-Shopify-Topic": "orders/updated"})
	require.NoError(t, err)

	assert.True(t, event.CanRetry())

	event.RecordFailure("parse error")
	event.RecordFailure("parse error")
	assert.True(t, event.CanRetry())
	assert.Equal(t, 2, event.RetryCount)

	event.RecordFailure("parse error")
	assert.Equal(t, MaxWebhookAttempts, event.RetryCount)
	assert.False(t, event.CanRetry())
	assert.True(t, event.Terminal())
	assert.False(t, event.Processed)
}

func TestWebhookEvent_MarkProcessed(t *testing.T) {
	event, err := NewWebhookEvent(ProviderQuickBooks, "Invoice.Update", "evt-2", []byte(`{}`), nil)
	require.NoError(t, err)
	event.RecordFailure("first attempt failed")

	now := time.Now()
	event.MarkProcessed(now)

	assert.True(t, event.Processed)
	require.NotNil(t, event.ProcessedAt)
	assert.Equal(t, now, *event.ProcessedAt)
	assert.Empty(t, event.ErrorMessage)
	assert.False(t, event.CanRetry())
	assert.True(t, event.Terminal())
}

func TestNewWebhookEvent_RejectsUnknownProvider(t *testing.T) {
	_, err := NewWebhookEvent(Provider("WOOCOMMERCE"), "topic", "", nil, nil)
	assert.ErrorIs(t, err, ErrProviderInvalid)
}

func TestSyncLog_StatusFromCounts(t *testing.T) {
	log := StartSyncLog(newTestIntegration(t).ID, SyncKindIncremental)
	assert.Equal(t, SyncLogStatusRunning, log.Status)
	assert.False(t, log.Status.IsFinal())

	log.Complete(10, 10, 0)
	assert.Equal(t, SyncLogStatusCompleted, log.Status)

	log = StartSyncLog(newTestIntegration(t).ID, SyncKindFull)
	log.Complete(10, 7, 3)
	assert.Equal(t, SyncLogStatusPartial, log.Status)

	log = StartSyncLog(newTestIntegration(t).ID, SyncKindFull)
	log.Complete(5, 0, 5)
	assert.Equal(t, SyncLogStatusFailed, log.Status)
	assert.True(t, log.Status.IsFinal())
}

func TestSyncLog_Fail(t *testing.T) {
	log := StartSyncLog(newTestIntegration(t).ID, SyncKindIncremental)
	log.Fail("provider unreachable")

	assert.Equal(t, SyncLogStatusFailed, log.Status)
	assert.Equal(t, "provider unreachable", log.ErrorMessage)
	require.NotNil(t, log.CompletedAt)
	assert.GreaterOrEqual(t, log.Duration(), time.Duration(0))
}
