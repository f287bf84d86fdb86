package webhook

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/cache"
	"github.com/syncbridge/backend/internal/infrastructure/config"
)

// MockWebhookEventRepository is a mock implementation of WebhookEventRepository
type MockWebhookEventRepository struct {
	mock.Mock
}

func (m *MockWebhookEventRepository) Save(ctx context.Context, event *integration.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockWebhookEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.WebhookEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.WebhookEvent), args.Error(1)
}

func (m *MockWebhookEventRepository) FindPending(ctx context.Context, graceBefore, retentionAfter time.Time, limit int) ([]*integration.WebhookEvent, error) {
	args := m.Called(ctx, graceBefore, retentionAfter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.WebhookEvent), args.Error(1)
}

func (m *MockWebhookEventRepository) CountStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWebhookEventRepository) FindTerminalOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*integration.WebhookEvent, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.WebhookEvent), args.Error(1)
}

func (m *MockWebhookEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProviderClient is a mock implementation of ProviderClient
type MockProviderClient struct {
	mock.Mock
	provider integration.Provider
}

func (m *MockProviderClient) Provider() integration.Provider {
	return m.provider
}

func (m *MockProviderClient) TestConnection(ctx context.Context, integ *integration.Integration, cred *integration.Credential) (*integration.ProbeResult, error) {
	args := m.Called(ctx, integ, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProbeResult), args.Error(1)
}

func (m *MockProviderClient) Sync(ctx context.Context, integ *integration.Integration, cred *integration.Credential, window integration.SyncWindow) (*integration.SyncReport, error) {
	args := m.Called(ctx, integ, cred, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SyncReport), args.Error(1)
}

func (m *MockProviderClient) RefreshToken(ctx context.Context, cred *integration.Credential) (*integration.TokenGrant, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenGrant), args.Error(1)
}

func (m *MockProviderClient) VerifyWebhook(payload []byte, headers http.Header) error {
	args := m.Called(payload, headers)
	return args.Error(0)
}

func (m *MockProviderClient) ProcessWebhook(ctx context.Context, event *integration.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockRegistry is a mock implementation of Registry
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Get(p integration.Provider) (integration.ProviderClient, error) {
	args := m.Called(p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(integration.ProviderClient), args.Error(1)
}

func (m *MockRegistry) List() []integration.ProviderClient {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]integration.ProviderClient)
}

func testWebhookConfig() config.WebhookConfig {
	return config.WebhookConfig{
		GraceWindow:      30 * time.Second,
		RetentionCeiling: 7 * 24 * time.Hour,
		SweepBatchSize:   100,
		DedupTTL:         24 * time.Hour,
	}
}

type serviceFixture struct {
	events   *MockWebhookEventRepository
	registry *MockRegistry
	client   *MockProviderClient
	dedup    *cache.InMemoryTTLStore
	service  *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		events:   new(MockWebhookEventRepository),
		registry: new(MockRegistry),
		client:   &MockProviderClient{provider: integration.ProviderShopify},
		dedup:    cache.NewInMemoryTTLStore(),
	}
	t.Cleanup(func() { _ = f.dedup.Close() })
	f.service = NewService(f.events, f.registry, f.dedup, testWebhookConfig(), zap.NewNop())
	return f
}

func TestService_Receive(t *testing.T) {
	ctx := context.Background()
	payload := []byte(`{"id":42}`)

	t.Run("persists then processes a verified delivery", func(t *testing.T) {
		f := newServiceFixture(t)
		var savedBeforeProcessing bool

		f.registry.On("Get", integration.ProviderShopify).Return(f.client, nil)
		f.client.On("VerifyWebhook", payload, mock.Anything).Return(nil)
		f.events.On("Save", mock.Anything, mock.AnythingOfType("*integration.WebhookEvent")).Return(nil)
		f.client.On("ProcessWebhook", mock.Anything, mock.AnythingOfType("*integration.WebhookEvent")).
			Run(func(args mock.Arguments) {
				// The row must be durable before interpretation starts.
				savedBeforeProcessing = len(f.events.Calls) > 0
			}).Return(nil)

		event, err := f.service.Receive(ctx, integration.ProviderShopify, "orders/updated", "evt-1", payload, http.Header{})

		require.NoError(t, err)
		require.NotNil(t, event)
		assert.True(t, savedBeforeProcessing)
		assert.True(t, event.Processed)
		f.client.AssertExpectations(t)
	})

	t.Run("invalid signature stores nothing", func(t *testing.T) {
		f := newServiceFixture(t)

		f.registry.On("Get", integration.ProviderShopify).Return(f.client, nil)
		f.client.On("VerifyWebhook", payload, mock.Anything).Return(integration.ErrWebhookInvalidSig)

		event, err := f.service.Receive(ctx, integration.ProviderShopify, "orders/updated", "evt-2", payload, http.Header{})

		assert.ErrorIs(t, err, integration.ErrWebhookInvalidSig)
		assert.Nil(t, event)
		f.events.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("processing failure still acknowledges the delivery", func(t *testing.T) {
		f := newServiceFixture(t)

		f.registry.On("Get", integration.ProviderShopify).Return(f.client, nil)
		f.client.On("VerifyWebhook", payload, mock.Anything).Return(nil)
		f.events.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.client.On("ProcessWebhook", mock.Anything, mock.Anything).Return(assert.AnError)

		event, err := f.service.Receive(ctx, integration.ProviderShopify, "orders/updated", "evt-3", payload, http.Header{})

		require.NoError(t, err, "a persisted delivery is acknowledged even when interpretation fails")
		require.NotNil(t, event)
		assert.False(t, event.Processed)
		assert.Equal(t, 1, event.RetryCount)
	})

	t.Run("duplicate delivery ids are suppressed", func(t *testing.T) {
		f := newServiceFixture(t)

		f.registry.On("Get", integration.ProviderShopify).Return(f.client, nil)
		f.client.On("VerifyWebhook", payload, mock.Anything).Return(nil)
		f.events.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.client.On("ProcessWebhook", mock.Anything, mock.Anything).Return(nil)

		first, err := f.service.Receive(ctx, integration.ProviderShopify, "orders/updated", "evt-4", payload, http.Header{})
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := f.service.Receive(ctx, integration.ProviderShopify, "orders/updated", "evt-4", payload, http.Header{})
		require.NoError(t, err)
		assert.Nil(t, second, "second delivery with the same id is suppressed")
		f.events.AssertNumberOfCalls(t, "Save", 2) // create + mark processed, once
	})

	t.Run("deliveries without an id bypass dedup", func(t *testing.T) {
		f := newServiceFixture(t)

		f.registry.On("Get", integration.ProviderShopify).Return(f.client, nil)
		f.client.On("VerifyWebhook", payload, mock.Anything).Return(nil)
		f.events.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.client.On("ProcessWebhook", mock.Anything, mock.Anything).Return(nil)

		first, err := f.service.Receive(ctx, integration.ProviderShopify, "orders/updated", "", payload, http.Header{})
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := f.service.Receive(ctx, integration.ProviderShopify, "orders/updated", "", payload, http.Header{})
		require.NoError(t, err)
		require.NotNil(t, second, "interpretation idempotency is the fallback, not suppression")
	})
}

func TestService_ProcessPending(t *testing.T) {
	ctx := context.Background()

	newPendingEvent := func(t *testing.T, retryCount int) *integration.WebhookEvent {
		t.Helper()
		event, err := integration.NewWebhookEvent(
			integration.ProviderShopify, "orders/updated", uuid.NewString(), []byte(`{"id":1}`), nil,
		)
		require.NoError(t, err)
		event.RetryCount = retryCount
		return event
	}

	t.Run("sweeps within the grace and retention bounds", func(t *testing.T) {
		f := newServiceFixture(t)
		event := newPendingEvent(t, 0)

		f.events.On("FindPending", mock.Anything, mock.MatchedBy(func(graceBefore time.Time) bool {
			return time.Since(graceBefore) >= 29*time.Second
		}), mock.MatchedBy(func(retentionAfter time.Time) bool {
			return time.Since(retentionAfter) >= 7*24*time.Hour-time.Minute
		}), 100).Return([]*integration.WebhookEvent{event}, nil)
		f.registry.On("Get", integration.ProviderShopify).Return(f.client, nil)
		f.client.On("ProcessWebhook", mock.Anything, event).Return(nil)
		f.events.On("Save", mock.Anything, event).Return(nil)

		stats, err := f.service.ProcessPending(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, stats.Found)
		assert.Equal(t, 1, stats.Succeeded)
		assert.True(t, event.Processed)
		f.events.AssertExpectations(t)
	})

	t.Run("third failure parks the event", func(t *testing.T) {
		f := newServiceFixture(t)
		event := newPendingEvent(t, integration.MaxWebhookAttempts-1)

		f.events.On("FindPending", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return([]*integration.WebhookEvent{event}, nil)
		f.registry.On("Get", integration.ProviderShopify).Return(f.client, nil)
		f.client.On("ProcessWebhook", mock.Anything, event).Return(assert.AnError)
		f.events.On("Save", mock.Anything, event).Return(nil)

		stats, err := f.service.ProcessPending(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, stats.Failed)
		assert.Equal(t, 1, stats.Parked)
		assert.False(t, event.CanRetry())
		assert.True(t, event.Terminal())
	})

	t.Run("one event's failure never aborts the sweep", func(t *testing.T) {
		f := newServiceFixture(t)
		bad := newPendingEvent(t, 0)
		good := newPendingEvent(t, 1)

		f.events.On("FindPending", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return([]*integration.WebhookEvent{bad, good}, nil)
		f.registry.On("Get", integration.ProviderShopify).Return(f.client, nil)
		f.client.On("ProcessWebhook", mock.Anything, bad).Return(assert.AnError)
		f.client.On("ProcessWebhook", mock.Anything, good).Return(nil)
		f.events.On("Save", mock.Anything, mock.Anything).Return(nil)

		stats, err := f.service.ProcessPending(ctx)

		require.NoError(t, err)
		assert.Equal(t, 2, stats.Found)
		assert.Equal(t, 1, stats.Succeeded)
		assert.Equal(t, 1, stats.Failed)
		assert.Equal(t, 0, stats.Parked)
	})

	t.Run("empty sweep is a no-op", func(t *testing.T) {
		f := newServiceFixture(t)
		f.events.On("FindPending", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return([]*integration.WebhookEvent{}, nil)

		stats, err := f.service.ProcessPending(ctx)

		require.NoError(t, err)
		assert.Equal(t, 0, stats.Found)
	})
}
