// Package scheduler drives the periodic monitoring cycle.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/application/monitor"
	"github.com/syncbridge/backend/internal/infrastructure/config"
	"github.com/syncbridge/backend/internal/infrastructure/telemetry"
)

// CycleRunner runs one monitoring cycle. Implemented by monitor.Service.
type CycleRunner interface {
	RunMonitoringCycle(ctx context.Context) *monitor.CycleReport
}

// MonitorTrigger runs the monitoring cycle on a fixed interval. Deployments
// that prefer an external scheduler disable it and hit the cron endpoint
// instead; both paths share the same overlap guard.
type MonitorTrigger struct {
	config  config.MonitorConfig
	monitor CycleRunner
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// cycleMu serializes cycles across the ticker and manual triggers.
	cycleMu sync.Mutex

	lastReportMu sync.RWMutex
	lastReport   *monitor.CycleReport
}

// NewMonitorTrigger creates a new monitor trigger
func NewMonitorTrigger(cfg config.MonitorConfig, svc CycleRunner, logger *zap.Logger) *MonitorTrigger {
	return &MonitorTrigger{
		config:  cfg,
		monitor: svc,
		logger:  logger,
	}
}

// Start starts the trigger loop
func (t *MonitorTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Monitor trigger started",
		zap.Duration("cycle_interval", t.config.CycleInterval),
	)
	return nil
}

// Stop stops the trigger loop, waiting for an in-flight cycle to finish
func (t *MonitorTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Monitor trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop runs one cycle immediately, then on every tick
func (t *MonitorTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CycleInterval)
	defer ticker.Stop()

	t.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.runCycle(ctx)
		}
	}
}

// runCycle runs one cycle unless another is still in flight
func (t *MonitorTrigger) runCycle(ctx context.Context) {
	if !t.cycleMu.TryLock() {
		t.logger.Warn("Skipping monitoring cycle, previous cycle still running")
		return
	}
	defer t.cycleMu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "monitor.cycle")
	report := t.monitor.RunMonitoringCycle(ctx)
	telemetry.EndSpan(span, nil)

	t.lastReportMu.Lock()
	t.lastReport = report
	t.lastReportMu.Unlock()
}

// TriggerNow runs a cycle immediately, waiting for any in-flight cycle to
// finish first. Used by the external cron endpoint.
func (t *MonitorTrigger) TriggerNow(ctx context.Context) *monitor.CycleReport {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "monitor.cycle")
	report := t.monitor.RunMonitoringCycle(ctx)
	telemetry.EndSpan(span, nil)

	t.lastReportMu.Lock()
	t.lastReport = report
	t.lastReportMu.Unlock()

	return report
}

// LastReport returns the most recent cycle report, or nil before the first
// cycle
func (t *MonitorTrigger) LastReport() *monitor.CycleReport {
	t.lastReportMu.RLock()
	defer t.lastReportMu.RUnlock()
	return t.lastReport
}
