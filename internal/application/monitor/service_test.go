package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	syncapp "github.com/syncbridge/backend/internal/application/sync"
	webhookapp "github.com/syncbridge/backend/internal/application/webhook"
	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/infrastructure/cache"
	"github.com/syncbridge/backend/internal/infrastructure/config"
)

func testMonitorConfig() config.MonitorConfig {
	return config.MonitorConfig{
		Enabled:                     true,
		CycleInterval:               time.Minute,
		AlertWindow:                 24 * time.Hour,
		ConsecutiveFailureThreshold: 3,
		LatencyThreshold:            10 * time.Second,
		StaleAfter:                  6 * time.Hour,
		StuckWebhookDelay:           15 * time.Minute,
		StuckWebhookThreshold:       10,
		AlertCooldown:               time.Hour,
		LogRetention:                30 * 24 * time.Hour,
	}
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
	integrations  *MockIntegrationRepository
	credentials   *MockCredentialRepository
	syncLogs      *MockSyncLogRepository
	healthChecks  *MockHealthCheckRepository
	webhookEvents *MockWebhookEventRepository
	registry      *MockRegistry
	client        *MockProviderClient
	notifier      *MockNotifier
	archiver      *MockEventArchiver
	service       *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		integrations:  new(MockIntegrationRepository),
		credentials:   new(MockCredentialRepository),
		syncLogs:      new(MockSyncLogRepository),
		healthChecks:  new(MockHealthCheckRepository),
		webhookEvents: new(MockWebhookEventRepository),
		registry:      new(MockRegistry),
		client:        &MockProviderClient{provider: integration.ProviderShopify},
		notifier:      new(MockNotifier),
		archiver:      new(MockEventArchiver),
	}

	cooldown := cache.NewInMemoryTTLStore()
	t.Cleanup(func() { _ = cooldown.Close() })
	dedup := cache.NewInMemoryTTLStore()
	t.Cleanup(func() { _ = dedup.Close() })

	orchestrator := syncapp.NewOrchestrator(
		f.credentials, f.integrations, f.syncLogs, f.registry,
		config.SyncConfig{TokenRefreshBuffer: 5 * time.Minute, FullSyncLookback: 30 * 24 * time.Hour},
		zap.NewNop(),
	)
	webhooks := webhookapp.NewService(f.webhookEvents, f.registry, dedup, testWebhookConfig(), zap.NewNop())

	f.service = NewService(
		f.integrations, f.credentials, f.syncLogs, f.healthChecks, f.webhookEvents,
		f.registry, orchestrator, webhooks, f.notifier, cooldown, f.archiver,
		testMonitorConfig(), testWebhookConfig(), zap.NewNop(),
	)
	return f
}

func monitoredIntegration(t *testing.T, credentialID uuid.UUID) *integration.Integration {
	t.Helper()
	integ, err := integration.NewIntegration(
		credentialID, integration.ProviderShopify, integration.IntegrationKindStorefront,
		"main store", time.Hour, []integration.DataCategory{integration.DataCategoryOrders},
	)
	require.NoError(t, err)
	integ.Activate()
	return integ
}

func monitoredCredential(t *testing.T) *integration.Credential {
	t.Helper()
	cred, err := integration.NewCredential(
		integration.ProviderShopify, "acme.myshopify.com",
		"client-id", "client-secret", integration.CredentialEnvProduction,
	)
	require.NoError(t, err)
	cred.AccessToken = "token"
	return cred
}

func failedSyncLog(integrationID uuid.UUID, message string) *integration.SyncLog {
	log := integration.StartSyncLog(integrationID, integration.SyncKindIncremental)
	log.Fail(message)
	return log
}

func TestService_RunHealthChecks_RecordsPassAndFail(t *testing.T) {
	f := newServiceFixture(t)
	credA := monitoredCredential(t)
	credB := monitoredCredential(t)
	healthy := monitoredIntegration(t, credA.ID)
	degraded := monitoredIntegration(t, credB.ID)

	f.integrations.On("FindActive", mock.Anything).
		Return([]*integration.Integration{healthy, degraded}, nil)
	f.credentials.On("FindByID", mock.Anything, credA.ID).Return(credA, nil)
	f.credentials.On("FindByID", mock.Anything, credB.ID).Return(credB, nil)
	f.registry.On("Get", integration.ProviderShopify).Return(f.client, nil)
	f.client.On("TestConnection", mock.Anything, healthy, credA).
		Return(&integration.ProbeResult{Passed: true, Latency: 40 * time.Millisecond, StatusCode: 200}, nil)
	f.client.On("TestConnection", mock.Anything, degraded, credB).
		Return(&integration.ProbeResult{Passed: false, StatusCode: 503, Message: "service unavailable"}, nil)
	f.healthChecks.On("Save", mock.Anything, mock.AnythingOfType("*integration.HealthCheck")).Return(nil)
	f.integrations.On("Save", mock.Anything, mock.AnythingOfType("*integration.Integration")).Return(nil)

	stats, err := f.service.RunHealthChecks(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Checked)
	assert.Equal(t, 1, stats.Passed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, integration.StatusActive, healthy.Status)
	assert.Equal(t, integration.StatusError, degraded.Status)
	assert.Equal(t, "service unavailable", degraded.ErrorMessage)
	f.healthChecks.AssertNumberOfCalls(t, "Save", 2)
}

func TestService_RunHealthChecks_SelfHealsErroredIntegration(t *testing.T) {
	f := newServiceFixture(t)
	cred := monitoredCredential(t)
	integ := monitoredIntegration(t, cred.ID)
	integ.MarkError("previous sync exploded")
	require.Equal(t, integration.StatusError, integ.Status)

	f.integrations.On("FindActive", mock.Anything).Return([]*integration.Integration{integ}, nil)
	f.credentials.On("FindByID", mock.Anything, cred.ID).Return(cred, nil)
	f.registry.On("Get", integration.ProviderShopify).Return(f.client, nil)
	f.client.On("TestConnection", mock.Anything, integ, cred).
		Return(&integration.ProbeResult{Passed: true, Latency: 20 * time.Millisecond, StatusCode: 200}, nil)
	f.healthChecks.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.integrations.On("Save", mock.Anything, integ).Return(nil)

	_, err := f.service.RunHealthChecks(context.Background())

	require.NoError(t, err)
	assert.Equal(t, integration.StatusActive, integ.Status)
	assert.Empty(t, integ.ErrorMessage)
}

func TestService_RunHealthChecks_UnusableCredentialFailsProbe(t *testing.T) {
	f := newServiceFixture(t)
	cred := monitoredCredential(t)
	cred.MarkUnusable("token revoked")
	integ := monitoredIntegration(t, cred.ID)

	f.integrations.On("FindActive", mock.Anything).Return([]*integration.Integration{integ}, nil)
	f.credentials.On("FindByID", mock.Anything, cred.ID).Return(cred, nil)
	f.healthChecks.On("Save", mock.Anything, mock.MatchedBy(func(c *integration.HealthCheck) bool {
		return !c.Passed && c.Message == "credential requires re-authorization"
	})).Return(nil)
	f.integrations.On("Save", mock.Anything, integ).Return(nil)

	stats, err := f.service.RunHealthChecks(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	f.client.AssertNotCalled(t, "TestConnection", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_RunHealthChecks_SkipsRateLimited(t *testing.T) {
	f := newServiceFixture(t)
	cred := monitoredCredential(t)
	healthy := monitoredIntegration(t, cred.ID)
	throttled := monitoredIntegration(t, cred.ID)
	throttled.MarkRateLimited(time.Now().Add(10 * time.Minute))

	f.integrations.On("FindActive", mock.Anything).
		Return([]*integration.Integration{healthy, throttled}, nil)
	f.credentials.On("FindByID", mock.Anything, cred.ID).Return(cred, nil)
	f.registry.On("Get", integration.ProviderShopify).Return(f.client, nil)
	f.client.On("TestConnection", mock.Anything, healthy, cred).
		Return(&integration.ProbeResult{Passed: true, Latency: 40 * time.Millisecond, StatusCode: 200}, nil)
	f.healthChecks.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.integrations.On("Save", mock.Anything, healthy).Return(nil)

	stats, err := f.service.RunHealthChecks(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Checked)
	f.client.AssertNotCalled(t, "TestConnection", mock.Anything, throttled, mock.Anything)
	f.healthChecks.AssertNumberOfCalls(t, "Save", 1)
	assert.Equal(t, integration.StatusRateLimited, throttled.Status)
}

func TestService_GenerateAlerts_ConsecutiveFailures(t *testing.T) {
	f := newServiceFixture(t)
	cred := monitoredCredential(t)
	integ := monitoredIntegration(t, cred.ID)

	logs := []*integration.SyncLog{
		failedSyncLog(integ.ID, "502 from provider"),
		failedSyncLog(integ.ID, "502 from provider"),
		failedSyncLog(integ.ID, "timeout"),
	}
	f.integrations.On("FindActive", mock.Anything).Return([]*integration.Integration{integ}, nil)
	f.syncLogs.On("FindRecent", mock.Anything, integ.ID, 3).Return(logs, nil)
	f.healthChecks.On("LastPassed", mock.Anything, integ.ID).
		Return(integration.PassedHealthCheck(integ.ID, 30*time.Millisecond, 200), nil)
	f.webhookEvents.On("CountStuck", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(a integration.Alert) bool {
		return a.Kind == integration.AlertKindConsecutiveFailures &&
			a.Severity == integration.AlertSeverityHigh &&
			a.IntegrationID != nil && *a.IntegrationID == integ.ID
	})).Return(nil)

	alerts, err := f.service.GenerateAlerts(context.Background())

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Message, "main store")
	assert.Contains(t, alerts[0].Message, "502 from provider")
	f.notifier.AssertExpectations(t)
}

func TestService_GenerateAlerts_MixedOutcomesRaiseNothing(t *testing.T) {
	f := newServiceFixture(t)
	cred := monitoredCredential(t)
	integ := monitoredIntegration(t, cred.ID)

	healed := integration.StartSyncLog(integ.ID, integration.SyncKindIncremental)
	healed.Complete(5, 5, 0)
	logs := []*integration.SyncLog{failedSyncLog(integ.ID, "timeout"), healed, failedSyncLog(integ.ID, "timeout")}

	f.integrations.On("FindActive", mock.Anything).Return([]*integration.Integration{integ}, nil)
	f.syncLogs.On("FindRecent", mock.Anything, integ.ID, 3).Return(logs, nil)
	f.healthChecks.On("LastPassed", mock.Anything, integ.ID).
		Return(integration.PassedHealthCheck(integ.ID, 30*time.Millisecond, 200), nil)
	f.webhookEvents.On("CountStuck", mock.Anything, mock.Anything).Return(int64(0), nil)

	alerts, err := f.service.GenerateAlerts(context.Background())

	require.NoError(t, err)
	assert.Empty(t, alerts)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestService_GenerateAlerts_StaleIntegration(t *testing.T) {
	f := newServiceFixture(t)
	cred := monitoredCredential(t)
	integ := monitoredIntegration(t, cred.ID)

	stale := integration.PassedHealthCheck(integ.ID, 30*time.Millisecond, 200)
	stale.CheckedAt = time.Now().Add(-7 * time.Hour)

	f.integrations.On("FindActive", mock.Anything).Return([]*integration.Integration{integ}, nil)
	f.syncLogs.On("FindRecent", mock.Anything, integ.ID, 3).Return([]*integration.SyncLog{}, nil)
	f.healthChecks.On("LastPassed", mock.Anything, integ.ID).Return(stale, nil)
	f.webhookEvents.On("CountStuck", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(a integration.Alert) bool {
		return a.Kind == integration.AlertKindStaleIntegration
	})).Return(nil)

	alerts, err := f.service.GenerateAlerts(context.Background())

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, integration.AlertKindStaleIntegration, alerts[0].Kind)
}

func TestService_GenerateAlerts_NeverProbedIsStale(t *testing.T) {
	f := newServiceFixture(t)
	cred := monitoredCredential(t)
	integ := monitoredIntegration(t, cred.ID)

	f.integrations.On("FindActive", mock.Anything).Return([]*integration.Integration{integ}, nil)
	f.syncLogs.On("FindRecent", mock.Anything, integ.ID, 3).Return([]*integration.SyncLog{}, nil)
	f.healthChecks.On("LastPassed", mock.Anything, integ.ID).Return(nil, nil)
	f.webhookEvents.On("CountStuck", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	alerts, err := f.service.GenerateAlerts(context.Background())

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, integration.AlertKindStaleIntegration, alerts[0].Kind)
}

func TestService_GenerateAlerts_SlowHealthCheck(t *testing.T) {
	f := newServiceFixture(t)
	cred := monitoredCredential(t)
	integ := monitoredIntegration(t, cred.ID)

	f.integrations.On("FindActive", mock.Anything).Return([]*integration.Integration{integ}, nil)
	f.syncLogs.On("FindRecent", mock.Anything, integ.ID, 3).Return([]*integration.SyncLog{}, nil)
	f.healthChecks.On("LastPassed", mock.Anything, integ.ID).
		Return(integration.PassedHealthCheck(integ.ID, 12*time.Second, 200), nil)
	f.webhookEvents.On("CountStuck", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(a integration.Alert) bool {
		return a.Kind == integration.AlertKindSlowHealthCheck &&
			a.Severity == integration.AlertSeverityMedium
	})).Return(nil)

	alerts, err := f.service.GenerateAlerts(context.Background())

	require.NoError(t, err)
	require.Len(t, alerts, 1)
}

func TestService_GenerateAlerts_StuckWebhookBacklog(t *testing.T) {
	f := newServiceFixture(t)

	f.integrations.On("FindActive", mock.Anything).Return([]*integration.Integration{}, nil)
	f.webhookEvents.On("CountStuck", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return time.Since(cutoff) >= 14*time.Minute
	})).Return(int64(25), nil)
	f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(a integration.Alert) bool {
		return a.Kind == integration.AlertKindStuckWebhooks &&
			a.Severity == integration.AlertSeverityMedium &&
			a.IntegrationID == nil
	})).Return(nil)

	alerts, err := f.service.GenerateAlerts(context.Background())

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, integration.AlertSeverityMedium, alerts[0].Severity)
	f.notifier.AssertExpectations(t)
}

func TestService_GenerateAlerts_BacklogBelowThresholdIsQuiet(t *testing.T) {
	f := newServiceFixture(t)

	f.integrations.On("FindActive", mock.Anything).Return([]*integration.Integration{}, nil)
	f.webhookEvents.On("CountStuck", mock.Anything, mock.Anything).Return(int64(9), nil)

	alerts, err := f.service.GenerateAlerts(context.Background())

	require.NoError(t, err)
	assert.Empty(t, alerts)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestService_GenerateAlerts_CooldownSuppressesRepeat(t *testing.T) {
	f := newServiceFixture(t)

	f.integrations.On("FindActive", mock.Anything).Return([]*integration.Integration{}, nil)
	f.webhookEvents.On("CountStuck", mock.Anything, mock.Anything).Return(int64(25), nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	first, err := f.service.GenerateAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := f.service.GenerateAlerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second)
	f.notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestService_GenerateAlerts_NotifierFailureStillReturnsAlert(t *testing.T) {
	f := newServiceFixture(t)

	f.integrations.On("FindActive", mock.Anything).Return([]*integration.Integration{}, nil)
	f.webhookEvents.On("CountStuck", mock.Anything, mock.Anything).Return(int64(25), nil)
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("webhook endpoint down"))

	alerts, err := f.service.GenerateAlerts(context.Background())

	require.NoError(t, err)
	require.Len(t, alerts, 1)
}

func TestService_CleanupRetention_DeletesAndArchives(t *testing.T) {
	f := newServiceFixture(t)

	event, err := integration.NewWebhookEvent(integration.ProviderShopify, "orders/create", "evt-1", []byte(`{}`), nil)
	require.NoError(t, err)
	event.MarkProcessed(time.Now().Add(-8 * 24 * time.Hour))

	f.syncLogs.On("DeleteOlderThan", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return time.Since(cutoff) >= 29*24*time.Hour
	})).Return(int64(12), nil)
	f.healthChecks.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(48), nil)
	f.webhookEvents.On("FindTerminalOlderThan", mock.Anything, mock.Anything, 100).
		Return([]*integration.WebhookEvent{event}, nil)
	f.archiver.On("Archive", mock.Anything, event).Return(nil)
	f.webhookEvents.On("Delete", mock.Anything, event.ID).Return(nil)

	stats, err := f.service.CleanupRetention(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.SyncLogsDeleted)
	assert.Equal(t, int64(48), stats.HealthChecksDeleted)
	assert.Equal(t, 1, stats.WebhookEventsArchived)
	assert.Equal(t, 1, stats.WebhookEventsDeleted)
	f.archiver.AssertExpectations(t)
	f.webhookEvents.AssertExpectations(t)
}

func TestService_CleanupRetention_ArchivalFailureKeepsEvent(t *testing.T) {
	f := newServiceFixture(t)

	kept, err := integration.NewWebhookEvent(integration.ProviderShopify, "orders/create", "evt-1", []byte(`{}`), nil)
	require.NoError(t, err)
	dropped, err := integration.NewWebhookEvent(integration.ProviderShopify, "orders/create", "evt-2", []byte(`{}`), nil)
	require.NoError(t, err)

	f.syncLogs.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.healthChecks.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.webhookEvents.On("FindTerminalOlderThan", mock.Anything, mock.Anything, 100).
		Return([]*integration.WebhookEvent{kept, dropped}, nil)
	f.archiver.On("Archive", mock.Anything, kept).Return(errors.New("bucket unavailable"))
	f.archiver.On("Archive", mock.Anything, dropped).Return(nil)
	f.webhookEvents.On("Delete", mock.Anything, dropped.ID).Return(nil)

	stats, err := f.service.CleanupRetention(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.WebhookEventsArchived)
	assert.Equal(t, 1, stats.WebhookEventsDeleted)
	f.webhookEvents.AssertNotCalled(t, "Delete", mock.Anything, kept.ID)
}

func TestService_CleanupRetention_NoArchiverDeletesDirectly(t *testing.T) {
	f := newServiceFixture(t)
	f.service.archiver = nil

	event, err := integration.NewWebhookEvent(integration.ProviderShopify, "orders/create", "evt-1", []byte(`{}`), nil)
	require.NoError(t, err)

	f.syncLogs.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.healthChecks.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.webhookEvents.On("FindTerminalOlderThan", mock.Anything, mock.Anything, 100).
		Return([]*integration.WebhookEvent{event}, nil)
	f.webhookEvents.On("Delete", mock.Anything, event.ID).Return(nil)

	stats, err := f.service.CleanupRetention(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, stats.WebhookEventsArchived)
	assert.Equal(t, 1, stats.WebhookEventsDeleted)
}

func TestService_Statistics_ComputesRates(t *testing.T) {
	f := newServiceFixture(t)
	cred := monitoredCredential(t)
	integ := monitoredIntegration(t, cred.ID)
	lastSync := time.Now().Add(-time.Hour)
	integ.LastSyncAt = &lastSync

	completed := integration.StartSyncLog(integ.ID, integration.SyncKindIncremental)
	completed.Complete(10, 10, 0)
	partial := integration.StartSyncLog(integ.ID, integration.SyncKindIncremental)
	partial.Complete(10, 7, 3)
	failed := failedSyncLog(integ.ID, "timeout")
	running := integration.StartSyncLog(integ.ID, integration.SyncKindIncremental)

	f.integrations.On("FindActive", mock.Anything).Return([]*integration.Integration{integ}, nil)
	f.syncLogs.On("FindSince", mock.Anything, integ.ID, mock.Anything).
		Return([]*integration.SyncLog{completed, partial, failed, running}, nil)
	f.healthChecks.On("FindSince", mock.Anything, integ.ID, mock.Anything).
		Return([]*integration.HealthCheck{
			integration.PassedHealthCheck(integ.ID, 100*time.Millisecond, 200),
			integration.PassedHealthCheck(integ.ID, 300*time.Millisecond, 200),
			integration.FailedHealthCheck(integ.ID, 5*time.Second, 503, "unavailable"),
		}, nil)
	f.webhookEvents.On("CountStuck", mock.Anything, mock.Anything).Return(int64(4), nil)

	stats, err := f.service.Statistics(context.Background())

	require.NoError(t, err)
	require.Len(t, stats.Integrations, 1)
	entry := stats.Integrations[0]
	assert.Equal(t, integ.ID, entry.IntegrationID)
	assert.Equal(t, "SHOPIFY", entry.Provider)
	assert.Equal(t, 3, entry.SyncAttempts)
	assert.InDelta(t, 2.0/3.0, entry.SyncSuccessRate, 0.0001)
	assert.Equal(t, "200ms", entry.AvgProbeLatency)
	assert.Equal(t, int64(4), stats.StuckWebhooks)
}

func TestService_Statistics_NoHistory(t *testing.T) {
	f := newServiceFixture(t)
	cred := monitoredCredential(t)
	integ := monitoredIntegration(t, cred.ID)

	f.integrations.On("FindActive", mock.Anything).Return([]*integration.Integration{integ}, nil)
	f.syncLogs.On("FindSince", mock.Anything, integ.ID, mock.Anything).Return([]*integration.SyncLog{}, nil)
	f.healthChecks.On("FindSince", mock.Anything, integ.ID, mock.Anything).Return([]*integration.HealthCheck{}, nil)
	f.webhookEvents.On("CountStuck", mock.Anything, mock.Anything).Return(int64(0), nil)

	stats, err := f.service.Statistics(context.Background())

	require.NoError(t, err)
	require.Len(t, stats.Integrations, 1)
	assert.Zero(t, stats.Integrations[0].SyncAttempts)
	assert.Zero(t, stats.Integrations[0].SyncSuccessRate)
	assert.Empty(t, stats.Integrations[0].AvgProbeLatency)
}

func TestService_RunMonitoringCycle_StageFailureNeverAborts(t *testing.T) {
	f := newServiceFixture(t)

	// Health, alerts and statistics all fail on the same query; the later
	// stages still run and the report collects every error.
	f.integrations.On("FindActive", mock.Anything).Return(nil, errors.New("db down"))
	f.integrations.On("FindDue", mock.Anything, mock.Anything).Return([]*integration.Integration{}, nil)
	f.webhookEvents.On("FindPending", mock.Anything, mock.Anything, mock.Anything, 100).
		Return([]*integration.WebhookEvent{}, nil)
	f.webhookEvents.On("CountStuck", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.syncLogs.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.healthChecks.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.webhookEvents.On("FindTerminalOlderThan", mock.Anything, mock.Anything, 100).
		Return([]*integration.WebhookEvent{}, nil)

	report := f.service.RunMonitoringCycle(context.Background())

	require.NotNil(t, report)
	assert.Len(t, report.Errors, 3)
	assert.NotNil(t, report.Syncs)
	assert.NotNil(t, report.Webhooks)
	assert.NotNil(t, report.Cleanup)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestService_RunMonitoringCycle_CleanupOncePerDay(t *testing.T) {
	f := newServiceFixture(t)

	f.integrations.On("FindActive", mock.Anything).Return([]*integration.Integration{}, nil)
	f.integrations.On("FindDue", mock.Anything, mock.Anything).Return([]*integration.Integration{}, nil)
	f.webhookEvents.On("FindPending", mock.Anything, mock.Anything, mock.Anything, 100).
		Return([]*integration.WebhookEvent{}, nil)
	f.webhookEvents.On("CountStuck", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.syncLogs.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.healthChecks.On("DeleteOlderThan", mock.Anything, mock.Anything).Return(int64(0), nil)
	f.webhookEvents.On("FindTerminalOlderThan", mock.Anything, mock.Anything, 100).
		Return([]*integration.WebhookEvent{}, nil)

	first := f.service.RunMonitoringCycle(context.Background())
	second := f.service.RunMonitoringCycle(context.Background())

	assert.NotNil(t, first.Cleanup)
	assert.Nil(t, second.Cleanup)
	f.syncLogs.AssertNumberOfCalls(t, "DeleteOlderThan", 1)
}
