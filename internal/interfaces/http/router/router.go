// Package router lays out the versioned API surface. Webhook ingestion and
// the health probe are mounted at the root in main; everything here sits
// under /api/<version>.
package router

import (
	"github.com/gin-gonic/gin"
)

// IntegrationRoutes covers credential lifecycle, integration lifecycle and
// sync triggering. Implemented by handler.IntegrationHandler.
type IntegrationRoutes interface {
	CreateCredential(c *gin.Context)
	GetCredential(c *gin.Context)
	RefreshCredential(c *gin.Context)

	CreateIntegration(c *gin.Context)
	ListIntegrations(c *gin.Context)
	GetIntegration(c *gin.Context)
	ActivateIntegration(c *gin.Context)
	DeactivateIntegration(c *gin.Context)
	TriggerSync(c *gin.Context)
	ListSyncLogs(c *gin.Context)
}

// MonitorRoutes covers statistics, alerts and the cron-style maintenance
// operations. Implemented by handler.MonitorHandler.
type MonitorRoutes interface {
	GetStatistics(c *gin.Context)
	GetAlerts(c *gin.Context)
	GetLastReport(c *gin.Context)
	RunHealthChecks(c *gin.Context)
	RunCleanup(c *gin.Context)
	TriggerCycle(c *gin.Context)
}

// SystemRoutes covers the informational endpoints. Implemented by
// handler.SystemHandler.
type SystemRoutes interface {
	GetSystemInfo(c *gin.Context)
	Ping(c *gin.Context)
}

// Handlers groups everything the API mounts.
type Handlers struct {
	Integrations IntegrationRoutes
	Monitor      MonitorRoutes
	System       SystemRoutes
}

// Mount registers the whole API under /api/<version>.
func Mount(engine *gin.Engine, version string, h Handlers) {
	api := engine.Group("/api/" + version)

	credentials := api.Group("/credentials")
	credentials.POST("", h.Integrations.CreateCredential)
	credentials.GET("/:id", h.Integrations.GetCredential)
	credentials.POST("/:id/refresh", h.Integrations.RefreshCredential)

	integrations := api.Group("/integrations")
	integrations.POST("", h.Integrations.CreateIntegration)
	integrations.GET("", h.Integrations.ListIntegrations)
	integrations.GET("/:id", h.Integrations.GetIntegration)
	integrations.POST("/:id/activate", h.Integrations.ActivateIntegration)
	integrations.POST("/:id/deactivate", h.Integrations.DeactivateIntegration)
	integrations.POST("/:id/sync", h.Integrations.TriggerSync)
	integrations.GET("/:id/logs", h.Integrations.ListSyncLogs)

	monitor := api.Group("/monitor")
	monitor.GET("/stats", h.Monitor.GetStatistics)
	monitor.GET("/alerts", h.Monitor.GetAlerts)
	monitor.GET("/report", h.Monitor.GetLastReport)
	monitor.POST("/health-checks", h.Monitor.RunHealthChecks)
	monitor.POST("/cleanup", h.Monitor.RunCleanup)
	monitor.POST("/cycle", h.Monitor.TriggerCycle)

	system := api.Group("/system")
	system.GET("/info", h.System.GetSystemInfo)
	system.GET("/ping", h.System.Ping)
}
