package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/syncbridge/backend/internal/application/monitor"
	"github.com/syncbridge/backend/internal/domain/integration"
)

// MonitorService exposes the monitoring operations the operator API needs.
type MonitorService interface {
	RunHealthChecks(ctx context.Context) (*monitor.HealthStats, error)
	GenerateAlerts(ctx context.Context) ([]integration.Alert, error)
	CleanupRetention(ctx context.Context) (*monitor.CleanupStats, error)
	Statistics(ctx context.Context) (*monitor.EngineStats, error)
}

// CycleTrigger runs the full monitoring cycle on demand.
type CycleTrigger interface {
	TriggerNow(ctx context.Context) *monitor.CycleReport
	LastReport() *monitor.CycleReport
}

// MonitorHandler serves engine health, statistics and maintenance endpoints.
type MonitorHandler struct {
	BaseHandler
	service MonitorService
	trigger CycleTrigger
}

// NewMonitorHandler creates a new MonitorHandler
func NewMonitorHandler(service MonitorService, trigger CycleTrigger) *MonitorHandler {
	return &MonitorHandler{service: service, trigger: trigger}
}

// GetStatistics handles GET /api/v1/monitor/stats
func (h *MonitorHandler) GetStatistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// RunHealthChecks handles POST /api/v1/monitor/health-checks. It probes
// every active integration inline and returns the tally.
func (h *MonitorHandler) RunHealthChecks(c *gin.Context) {
	stats, err := h.service.RunHealthChecks(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// GetAlerts handles GET /api/v1/monitor/alerts. Evaluation is a pure read
// over persisted history, so a GET fits even though cooldowns advance.
func (h *MonitorHandler) GetAlerts(c *gin.Context) {
	alerts, err := h.service.GenerateAlerts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, alerts)
}

// RunCleanup handles POST /api/v1/monitor/cleanup, forcing a retention pass
// outside the daily gate.
func (h *MonitorHandler) RunCleanup(c *gin.Context) {
	stats, err := h.service.CleanupRetention(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// TriggerCycle handles POST /api/v1/monitor/cycle. External cron systems
// call this when the in-process ticker is disabled.
func (h *MonitorHandler) TriggerCycle(c *gin.Context) {
	report := h.trigger.TriggerNow(c.Request.Context())
	h.Success(c, report)
}

// GetLastReport handles GET /api/v1/monitor/report
func (h *MonitorHandler) GetLastReport(c *gin.Context) {
	report := h.trigger.LastReport()
	if report == nil {
		h.NotFound(c, "no monitoring cycle has completed yet")
		return
	}
	h.Success(c, report)
}
