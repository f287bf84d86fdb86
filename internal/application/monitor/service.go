package monitor

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	syncapp "github.com/syncbridge/backend/internal/application/sync"
	webhookapp "github.com/syncbridge/backend/internal/application/webhook"
	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/infrastructure/config"
)

// EventArchiver stores expired webhook payloads outside the database before
// retention cleanup deletes them
type EventArchiver interface {
	Archive(ctx context.Context, event *integration.WebhookEvent) error
}

// Service runs the periodic monitoring cycle: connectivity probes, due syncs,
// pending webhook sweeps, alert evaluation and retention cleanup.
type Service struct {
	integrations  integration.IntegrationRepository
	credentials   integration.CredentialRepository
	syncLogs      integration.SyncLogRepository
	healthChecks  integration.HealthCheckRepository
	webhookEvents integration.WebhookEventRepository
	registry      integration.Registry
	orchestrator  *syncapp.Orchestrator
	webhooks      *webhookapp.Service
	notifier      integration.Notifier
	cooldown      shared.TTLStore
	archiver      EventArchiver
	config        config.MonitorConfig
	webhookConfig config.WebhookConfig
	logger        *zap.Logger

	cleanupMu   stdsync.Mutex
	lastCleanup time.Time
}

// NewService creates a new monitoring Service
func NewService(
	integrations integration.IntegrationRepository,
	credentials integration.CredentialRepository,
	syncLogs integration.SyncLogRepository,
	healthChecks integration.HealthCheckRepository,
	webhookEvents integration.WebhookEventRepository,
	registry integration.Registry,
	orchestrator *syncapp.Orchestrator,
	webhooks *webhookapp.Service,
	notifier integration.Notifier,
	cooldown shared.TTLStore,
	archiver EventArchiver,
	monitorCfg config.MonitorConfig,
	webhookCfg config.WebhookConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		integrations:  integrations,
		credentials:   credentials,
		syncLogs:      syncLogs,
		healthChecks:  healthChecks,
		webhookEvents: webhookEvents,
		registry:      registry,
		orchestrator:  orchestrator,
		webhooks:      webhooks,
		notifier:      notifier,
		cooldown:      cooldown,
		archiver:      archiver,
		config:        monitorCfg,
		webhookConfig: webhookCfg,
		logger:        logger,
	}
}

// HealthStats summarizes one RunHealthChecks pass
type HealthStats struct {
	Checked int       `json:"checked"`
	Passed  int       `json:"passed"`
	Failed  int       `json:"failed"`
	RanAt   time.Time `json:"ran_at"`
}

// RunHealthChecks probes every active, non-rate-limited integration and
// records the result. A passing probe self-heals an ERROR integration; a
// failing one degrades it. RATE_LIMITED integrations are skipped outright:
// probing a throttled provider spends request budget the pending reset is
// waiting to restore.
func (s *Service) RunHealthChecks(ctx context.Context) (*HealthStats, error) {
	stats := &HealthStats{RanAt: time.Now()}

	active, err := s.integrations.FindActive(ctx)
	if err != nil {
		s.logger.Error("failed to query active integrations", zap.Error(err))
		return nil, err
	}

	for _, integ := range active {
		if integ.Status == integration.StatusRateLimited {
			continue
		}
		stats.Checked++
		check := s.probe(ctx, integ)
		if check.Passed {
			stats.Passed++
		} else {
			stats.Failed++
		}

		if err := s.healthChecks.Save(ctx, check); err != nil {
			s.logger.Error("failed to persist health check",
				zap.String("integration_id", integ.ID.String()),
				zap.Error(err),
			)
		}

		integ.RecordHealth(check.Passed, check.Message)
		if err := s.integrations.Save(ctx, integ); err != nil {
			s.logger.Error("failed to persist integration health transition",
				zap.String("integration_id", integ.ID.String()),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("health check pass finished",
		zap.Int("checked", stats.Checked),
		zap.Int("passed", stats.Passed),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// probe runs one connectivity probe, converting every failure mode into a
// failed check record
func (s *Service) probe(ctx context.Context, integ *integration.Integration) *integration.HealthCheck {
	cred, err := s.credentials.FindByID(ctx, integ.CredentialID)
	if err != nil {
		return integration.FailedHealthCheck(integ.ID, 0, 0, "credential lookup failed: "+err.Error())
	}
	if !cred.Usable() {
		return integration.FailedHealthCheck(integ.ID, 0, 0, "credential requires re-authorization")
	}

	client, err := s.registry.Get(integ.Provider)
	if err != nil {
		return integration.FailedHealthCheck(integ.ID, 0, 0, err.Error())
	}

	result, err := client.TestConnection(ctx, integ, cred)
	if err != nil {
		return integration.FailedHealthCheck(integ.ID, 0, 0, err.Error())
	}
	if !result.Passed {
		return integration.FailedHealthCheck(integ.ID, result.Latency, result.StatusCode, result.Message)
	}
	return integration.PassedHealthCheck(integ.ID, result.Latency, result.StatusCode)
}

// GenerateAlerts evaluates the alert rules over persisted history and
// notifies each condition at most once per cooldown window. The returned
// slice contains only the alerts that were actually dispatched.
func (s *Service) GenerateAlerts(ctx context.Context) ([]integration.Alert, error) {
	now := time.Now()

	active, err := s.integrations.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []integration.Alert
	for _, integ := range active {
		candidates = append(candidates, s.integrationAlerts(ctx, integ, now)...)
	}

	if alert, ok := s.stuckWebhookAlert(ctx, now); ok {
		candidates = append(candidates, alert)
	}

	var dispatched []integration.Alert
	for _, alert := range candidates {
		fresh, err := s.cooldown.SetOnce(ctx, alert.Key(), s.config.AlertCooldown)
		if err != nil {
			s.logger.Warn("alert cooldown store unavailable", zap.Error(err))
		} else if !fresh {
			continue
		}

		if err := s.notifier.Notify(ctx, alert); err != nil {
			s.logger.Error("alert notification failed",
				zap.String("alert_key", alert.Key()),
				zap.Error(err),
			)
		}
		dispatched = append(dispatched, alert)

		s.logger.Warn("alert raised",
			zap.String("kind", string(alert.Kind)),
			zap.String("severity", string(alert.Severity)),
			zap.String("message", alert.Message),
		)
	}
	return dispatched, nil
}

func (s *Service) integrationAlerts(ctx context.Context, integ *integration.Integration, now time.Time) []integration.Alert {
	var alerts []integration.Alert
	id := integ.ID

	recent, err := s.syncLogs.FindRecent(ctx, integ.ID, s.config.ConsecutiveFailureThreshold)
	if err != nil {
		s.logger.Error("failed to load recent sync logs",
			zap.String("integration_id", integ.ID.String()), zap.Error(err))
	} else if len(recent) >= s.config.ConsecutiveFailureThreshold && allFailed(recent) {
		alerts = append(alerts, integration.Alert{
			Kind:          integration.AlertKindConsecutiveFailures,
			Severity:      integration.AlertSeverityHigh,
			Provider:      integ.Provider,
			IntegrationID: &id,
			Message:       integ.Name + ": " + lastError(recent),
			RaisedAt:      now,
		})
	}

	lastPassed, err := s.healthChecks.LastPassed(ctx, integ.ID)
	if err != nil {
		s.logger.Error("failed to load last passed probe",
			zap.String("integration_id", integ.ID.String()), zap.Error(err))
		return alerts
	}

	if lastPassed == nil || now.Sub(lastPassed.CheckedAt) >= s.config.StaleAfter {
		alerts = append(alerts, integration.Alert{
			Kind:          integration.AlertKindStaleIntegration,
			Severity:      integration.AlertSeverityHigh,
			Provider:      integ.Provider,
			IntegrationID: &id,
			Message:       integ.Name + ": no successful connectivity probe within the staleness window",
			RaisedAt:      now,
		})
	} else if lastPassed.Latency >= s.config.LatencyThreshold {
		alerts = append(alerts, integration.Alert{
			Kind:          integration.AlertKindSlowHealthCheck,
			Severity:      integration.AlertSeverityMedium,
			Provider:      integ.Provider,
			IntegrationID: &id,
			Message:       integ.Name + ": connectivity probe is slow (" + lastPassed.Latency.String() + ")",
			RaisedAt:      now,
		})
	}
	return alerts
}

func (s *Service) stuckWebhookAlert(ctx context.Context, now time.Time) (integration.Alert, bool) {
	count, err := s.webhookEvents.CountStuck(ctx, now.Add(-s.config.StuckWebhookDelay))
	if err != nil {
		s.logger.Error("failed to count stuck webhook events", zap.Error(err))
		return integration.Alert{}, false
	}
	if count < int64(s.config.StuckWebhookThreshold) {
		return integration.Alert{}, false
	}
	return integration.Alert{
		Kind:     integration.AlertKindStuckWebhooks,
		Severity: integration.AlertSeverityMedium,
		Message:  "unprocessed webhook backlog exceeds threshold",
		RaisedAt: now,
	}, true
}

func allFailed(logs []*integration.SyncLog) bool {
	for _, l := range logs {
		if l.Status != integration.SyncLogStatusFailed {
			return false
		}
	}
	return len(logs) > 0
}

func lastError(logs []*integration.SyncLog) string {
	for _, l := range logs {
		if l.ErrorMessage != "" {
			return l.ErrorMessage
		}
	}
	return "consecutive sync failures"
}

// CycleReport aggregates one RunMonitoringCycle pass
type CycleReport struct {
	Health     *HealthStats           `json:"health,omitempty"`
	Syncs      *syncapp.BatchStats    `json:"syncs,omitempty"`
	Webhooks   *webhookapp.SweepStats `json:"webhooks,omitempty"`
	Alerts     []integration.Alert    `json:"alerts,omitempty"`
	Stats      *EngineStats           `json:"stats,omitempty"`
	Cleanup    *CleanupStats          `json:"cleanup,omitempty"`
	Errors     []string               `json:"errors,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// RunMonitoringCycle composes one full pass: health checks, due syncs,
// pending webhooks, alerts and statistics. One stage's failure is recorded
// and never aborts the later stages.
func (s *Service) RunMonitoringCycle(ctx context.Context) *CycleReport {
	report := &CycleReport{StartedAt: time.Now()}

	var err error
	if report.Health, err = s.RunHealthChecks(ctx); err != nil {
		report.Errors = append(report.Errors, "health checks: "+err.Error())
	}
	if report.Syncs, err = s.orchestrator.SyncAllDue(ctx); err != nil {
		report.Errors = append(report.Errors, "due syncs: "+err.Error())
	}
	if report.Webhooks, err = s.webhooks.ProcessPending(ctx); err != nil {
		report.Errors = append(report.Errors, "pending webhooks: "+err.Error())
	}
	if report.Alerts, err = s.GenerateAlerts(ctx); err != nil {
		report.Errors = append(report.Errors, "alerts: "+err.Error())
	}
	if report.Stats, err = s.Statistics(ctx); err != nil {
		report.Errors = append(report.Errors, "statistics: "+err.Error())
	}

	if s.cleanupDue(report.StartedAt) {
		if report.Cleanup, err = s.CleanupRetention(ctx); err != nil {
			report.Errors = append(report.Errors, "cleanup: "+err.Error())
		}
	}

	report.FinishedAt = time.Now()
	s.logger.Info("monitoring cycle finished",
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
		zap.Int("alerts", len(report.Alerts)),
		zap.Strings("errors", report.Errors),
	)
	return report
}

// cleanupDue gates retention cleanup to once a day
func (s *Service) cleanupDue(now time.Time) bool {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()
	if now.Sub(s.lastCleanup) < 24*time.Hour {
		return false
	}
	s.lastCleanup = now
	return true
}

// CleanupStats summarizes one retention cleanup pass
type CleanupStats struct {
	SyncLogsDeleted       int64     `json:"sync_logs_deleted"`
	HealthChecksDeleted   int64     `json:"health_checks_deleted"`
	WebhookEventsArchived int       `json:"webhook_events_archived"`
	WebhookEventsDeleted  int       `json:"webhook_events_deleted"`
	RanAt                 time.Time `json:"ran_at"`
}

// CleanupRetention deletes sync and health history past the log retention
// window and archives + deletes terminal webhook events past the retention
// ceiling. Events whose archival fails are kept for the next pass.
func (s *Service) CleanupRetention(ctx context.Context) (*CleanupStats, error) {
	stats := &CleanupStats{RanAt: time.Now()}
	logCutoff := stats.RanAt.Add(-s.config.LogRetention)

	deleted, err := s.syncLogs.DeleteOlderThan(ctx, logCutoff)
	if err != nil {
		return nil, err
	}
	stats.SyncLogsDeleted = deleted

	deleted, err = s.healthChecks.DeleteOlderThan(ctx, logCutoff)
	if err != nil {
		return nil, err
	}
	stats.HealthChecksDeleted = deleted

	webhookCutoff := stats.RanAt.Add(-s.webhookConfig.RetentionCeiling)
	terminal, err := s.webhookEvents.FindTerminalOlderThan(ctx, webhookCutoff, s.webhookConfig.SweepBatchSize)
	if err != nil {
		return nil, err
	}
	for _, event := range terminal {
		if s.archiver != nil {
			if err := s.archiver.Archive(ctx, event); err != nil {
				s.logger.Error("webhook archival failed, keeping event",
					zap.String("event_id", event.ID.String()),
					zap.Error(err),
				)
				continue
			}
			stats.WebhookEventsArchived++
		}
		if err := s.webhookEvents.Delete(ctx, event.ID); err != nil {
			s.logger.Error("failed to delete archived webhook event",
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
			continue
		}
		stats.WebhookEventsDeleted++
	}

	s.logger.Info("retention cleanup finished",
		zap.Int64("sync_logs_deleted", stats.SyncLogsDeleted),
		zap.Int64("health_checks_deleted", stats.HealthChecksDeleted),
		zap.Int("webhook_events_archived", stats.WebhookEventsArchived),
		zap.Int("webhook_events_deleted", stats.WebhookEventsDeleted),
	)
	return stats, nil
}

// IntegrationStats is one integration's rolling statistics snapshot
type IntegrationStats struct {
	IntegrationID   uuid.UUID  `json:"integration_id"`
	Provider        string     `json:"provider"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
	SyncAttempts    int        `json:"sync_attempts"`
	SyncSuccessRate float64    `json:"sync_success_rate"`
	AvgProbeLatency string     `json:"avg_probe_latency"`
}

// EngineStats is the engine-wide statistics snapshot
type EngineStats struct {
	Integrations  []IntegrationStats `json:"integrations"`
	StuckWebhooks int64              `json:"stuck_webhooks"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// Statistics computes rolling per-integration statistics over the alert
// window
func (s *Service) Statistics(ctx context.Context) (*EngineStats, error) {
	stats := &EngineStats{GeneratedAt: time.Now()}
	windowStart := stats.GeneratedAt.Add(-s.config.AlertWindow)

	active, err := s.integrations.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	for _, integ := range active {
		entry := IntegrationStats{
			IntegrationID: integ.ID,
			Provider:      string(integ.Provider),
			Name:          integ.Name,
			Status:        string(integ.Status),
			LastSyncAt:    integ.LastSyncAt,
		}

		logs, err := s.syncLogs.FindSince(ctx, integ.ID, windowStart)
		if err != nil {
			return nil, err
		}
		finished, succeeded := 0, 0
		for _, l := range logs {
			if !l.Status.IsFinal() {
				continue
			}
			finished++
			if l.Status == integration.SyncLogStatusCompleted || l.Status == integration.SyncLogStatusPartial {
				succeeded++
			}
		}
		entry.SyncAttempts = finished
		if finished > 0 {
			entry.SyncSuccessRate = float64(succeeded) / float64(finished)
		}

		checks, err := s.healthChecks.FindSince(ctx, integ.ID, windowStart)
		if err != nil {
			return nil, err
		}
		var total time.Duration
		passed := 0
		for _, c := range checks {
			if c.Passed {
				total += c.Latency
				passed++
			}
		}
		if passed > 0 {
			entry.AvgProbeLatency = (total / time.Duration(passed)).String()
		}

		stats.Integrations = append(stats.Integrations, entry)
	}

	stats.StuckWebhooks, err = s.webhookEvents.CountStuck(ctx, stats.GeneratedAt.Add(-s.config.StuckWebhookDelay))
	if err != nil {
		return nil, err
	}
	return stats, nil
}
