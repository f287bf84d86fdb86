// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineMetrics provides operational metrics for the sync engine.
// It tracks sync attempts, webhook ingestion, token refreshes and alerts.
type EngineMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	syncTotal            *Counter
	syncRecordsProcessed *Counter
	syncRecordsFailed    *Counter
	webhookReceivedTotal *Counter
	webhookParkedTotal   *Counter
	tokenRefreshTotal    *Counter
	alertTotal           *Counter

	// Histogram metrics
	syncDuration *Histogram
	probeLatency *Histogram

	// Gauge metrics (point-in-time values)
	activeIntegrations *Gauge
	stuckWebhooks      *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	backlogProvider BacklogProvider
}

// BacklogProvider provides engine state for periodic gauge collection.
// This interface lets the telemetry layer query engine state without
// depending on the integration domain directly.
type BacklogProvider interface {
	// CountActiveIntegrations returns the number of active integrations.
	CountActiveIntegrations(ctx context.Context) (int64, error)

	// CountStuckWebhooks returns the unprocessed webhook backlog size.
	CountStuckWebhooks(ctx context.Context) (int64, error)
}

// EngineMetricsConfig holds configuration for engine metrics.
type EngineMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	BacklogProvider BacklogProvider
}

// NewEngineMetrics creates a new EngineMetrics instance.
func NewEngineMetrics(cfg EngineMetricsConfig) (*EngineMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	em := &EngineMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		backlogProvider: cfg.BacklogProvider,
	}

	var err error

	em.syncTotal, err = NewCounter(
		cfg.Meter,
		"engine_sync_total",
		"Total number of sync attempts",
		"{syncs}",
	)
	if err != nil {
		return nil, err
	}

	em.syncRecordsProcessed, err = NewCounter(
		cfg.Meter,
		"engine_sync_records_processed_total",
		"Total number of records pulled from providers",
		"{records}",
	)
	if err != nil {
		return nil, err
	}

	em.syncRecordsFailed, err = NewCounter(
		cfg.Meter,
		"engine_sync_records_failed_total",
		"Total number of records that failed validation or import",
		"{records}",
	)
	if err != nil {
		return nil, err
	}

	em.webhookReceivedTotal, err = NewCounter(
		cfg.Meter,
		"engine_webhook_received_total",
		"Total number of webhook deliveries accepted",
		"{events}",
	)
	if err != nil {
		return nil, err
	}

	em.webhookParkedTotal, err = NewCounter(
		cfg.Meter,
		"engine_webhook_parked_total",
		"Total number of webhook events parked after exhausting retries",
		"{events}",
	)
	if err != nil {
		return nil, err
	}

	em.tokenRefreshTotal, err = NewCounter(
		cfg.Meter,
		"engine_token_refresh_total",
		"Total number of OAuth token refresh attempts",
		"{refreshes}",
	)
	if err != nil {
		return nil, err
	}

	em.alertTotal, err = NewCounter(
		cfg.Meter,
		"engine_alert_total",
		"Total number of alerts dispatched",
		"{alerts}",
	)
	if err != nil {
		return nil, err
	}

	em.syncDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "engine_sync_duration_seconds",
		Description: "Duration of sync attempts",
		Unit:        "s",
		Boundaries:  []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	})
	if err != nil {
		return nil, err
	}

	em.probeLatency, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "engine_probe_latency_seconds",
		Description: "Connectivity probe round-trip latency",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	em.activeIntegrations, err = NewGauge(
		cfg.Meter,
		"engine_active_integrations",
		"Number of active integrations",
		"{integrations}",
	)
	if err != nil {
		return nil, err
	}

	em.stuckWebhooks, err = NewGauge(
		cfg.Meter,
		"engine_stuck_webhooks",
		"Unprocessed webhook backlog size",
		"{events}",
	)
	if err != nil {
		return nil, err
	}

	return em, nil
}

// =============================================================================
// Sync Metrics
// =============================================================================

// RecordSync records one finished sync attempt.
func (em *EngineMetrics) RecordSync(ctx context.Context, provider, kind, status string, took time.Duration) {
	em.syncTotal.Inc(ctx,
		AttrProvider.String(provider),
		AttrSyncKind.String(kind),
		AttrSyncStatus.String(status),
	)
	em.syncDuration.RecordDuration(ctx, took,
		AttrProvider.String(provider),
		AttrSyncKind.String(kind),
	)
}

// RecordSyncRecords records the per-attempt record counts.
func (em *EngineMetrics) RecordSyncRecords(ctx context.Context, provider string, processed, failed int64) {
	if processed > 0 {
		em.syncRecordsProcessed.Add(ctx, processed, AttrProvider.String(provider))
	}
	if failed > 0 {
		em.syncRecordsFailed.Add(ctx, failed, AttrProvider.String(provider))
	}
}

// RecordProbe records a connectivity probe latency.
func (em *EngineMetrics) RecordProbe(ctx context.Context, provider string, latency time.Duration) {
	em.probeLatency.RecordDuration(ctx, latency, AttrProvider.String(provider))
}

// =============================================================================
// Webhook Metrics
// =============================================================================

// RecordWebhookReceived records an accepted webhook delivery.
func (em *EngineMetrics) RecordWebhookReceived(ctx context.Context, provider, topic string) {
	em.webhookReceivedTotal.Inc(ctx,
		AttrProvider.String(provider),
		AttrWebhookTopic.String(topic),
	)
}

// RecordWebhookParked records an event parked after exhausting retries.
func (em *EngineMetrics) RecordWebhookParked(ctx context.Context, provider string) {
	em.webhookParkedTotal.Inc(ctx, AttrProvider.String(provider))
}

// =============================================================================
// Credential Metrics
// =============================================================================

// RefreshOutcome labels a token refresh attempt for metrics.
type RefreshOutcome string

const (
	RefreshOutcomeSuccess   RefreshOutcome = "success"
	RefreshOutcomeTransient RefreshOutcome = "transient_failure"
	RefreshOutcomePermanent RefreshOutcome = "permanent_failure"
)

// RecordTokenRefresh records one token refresh attempt.
func (em *EngineMetrics) RecordTokenRefresh(ctx context.Context, provider string, outcome RefreshOutcome) {
	em.tokenRefreshTotal.Inc(ctx,
		AttrProvider.String(provider),
		AttrSyncStatus.String(string(outcome)),
	)
}

// RecordAlert records one dispatched alert.
func (em *EngineMetrics) RecordAlert(ctx context.Context, kind, provider string) {
	em.alertTotal.Inc(ctx,
		AttrAlertKind.String(kind),
		AttrProvider.String(provider),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// This is non-blocking - use Stop() to stop collection.
func (em *EngineMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	em.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go em.runPeriodicCollection(ctx, interval)
	})
}

func (em *EngineMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	em.collectGauges(ctx)

	for {
		select {
		case <-em.stopChan:
			em.logger.Info("Stopping periodic engine metrics collection")
			return
		case <-ctx.Done():
			em.logger.Info("Context cancelled, stopping periodic engine metrics collection")
			return
		case <-ticker.C:
			em.collectGauges(ctx)
		}
	}
}

func (em *EngineMetrics) collectGauges(ctx context.Context) {
	if em.backlogProvider == nil {
		em.logger.Debug("No backlog provider configured, skipping gauge collection")
		return
	}

	active, err := em.backlogProvider.CountActiveIntegrations(ctx)
	if err != nil {
		em.logger.Warn("Failed to count active integrations", zap.Error(err))
	} else {
		em.activeIntegrations.Record(ctx, active)
	}

	stuck, err := em.backlogProvider.CountStuckWebhooks(ctx)
	if err != nil {
		em.logger.Warn("Failed to count stuck webhooks", zap.Error(err))
	} else {
		em.stuckWebhooks.Record(ctx, stuck)
	}
}

// Stop stops the periodic collection.
func (em *EngineMetrics) Stop() {
	em.stopOnce.Do(func() {
		close(em.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewEngineMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
