package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// MockCredentialRepository is a mock implementation of CredentialRepository
type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) Save(ctx context.Context, cred *integration.Credential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

func (m *MockCredentialRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Credential, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Credential), args.Error(1)
}

func (m *MockCredentialRepository) FindActive(ctx context.Context, provider integration.Provider, name string) (*integration.Credential, error) {
	args := m.Called(ctx, provider, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Credential), args.Error(1)
}

func (m *MockCredentialRepository) FindAllActive(ctx context.Context) ([]*integration.Credential, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.Credential), args.Error(1)
}

// MockIntegrationRepository is a mock implementation of IntegrationRepository
type MockIntegrationRepository struct {
	mock.Mock
}

func (m *MockIntegrationRepository) Save(ctx context.Context, integ *integration.Integration) error {
	args := m.Called(ctx, integ)
	return args.Error(0)
}

func (m *MockIntegrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) FindAll(ctx context.Context, filter integration.IntegrationFilter) ([]*integration.Integration, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) FindDue(ctx context.Context, now time.Time) ([]*integration.Integration, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) FindActive(ctx context.Context) ([]*integration.Integration, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) FindByCredential(ctx context.Context, credentialID uuid.UUID) ([]*integration.Integration, error) {
	args := m.Called(ctx, credentialID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.Integration), args.Error(1)
}

// MockSyncLogRepository is a mock implementation of SyncLogRepository
type MockSyncLogRepository struct {
	mock.Mock
}

func (m *MockSyncLogRepository) Save(ctx context.Context, log *integration.SyncLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockSyncLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SyncLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SyncLog), args.Error(1)
}

func (m *MockSyncLogRepository) FindRecent(ctx context.Context, integrationID uuid.UUID, limit int) ([]*integration.SyncLog, error) {
	args := m.Called(ctx, integrationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.SyncLog), args.Error(1)
}

func (m *MockSyncLogRepository) FindSince(ctx context.Context, integrationID uuid.UUID, since time.Time) ([]*integration.SyncLog, error) {
	args := m.Called(ctx, integrationID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.SyncLog), args.Error(1)
}

func (m *MockSyncLogRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSyncLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockHealthCheckRepository is a mock implementation of HealthCheckRepository
type MockHealthCheckRepository struct {
	mock.Mock
}

func (m *MockHealthCheckRepository) Save(ctx context.Context, check *integration.HealthCheck) error {
	args := m.Called(ctx, check)
	return args.Error(0)
}

func (m *MockHealthCheckRepository) FindSince(ctx context.Context, integrationID uuid.UUID, since time.Time) ([]*integration.HealthCheck, error) {
	args := m.Called(ctx, integrationID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.HealthCheck), args.Error(1)
}

func (m *MockHealthCheckRepository) LastPassed(ctx context.Context, integrationID uuid.UUID) (*integration.HealthCheck, error) {
	args := m.Called(ctx, integrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.HealthCheck), args.Error(1)
}

func (m *MockHealthCheckRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

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

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, alert integration.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

// MockEventArchiver is a mock implementation of EventArchiver
type MockEventArchiver struct {
	mock.Mock
}

func (m *MockEventArchiver) Archive(ctx context.Context, event *integration.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
