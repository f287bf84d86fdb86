package handler

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Version is stamped by the build via -ldflags.
var Version = "dev"

// SystemHandler serves the informational endpoints under /system.
type SystemHandler struct {
	BaseHandler
	startedAt time.Time
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler() *SystemHandler {
	return &SystemHandler{startedAt: time.Now()}
}

// SystemInfoResponse reports what build is running and for how long.
type SystemInfoResponse struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	GoVersion string    `json:"go_version"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

// GetSystemInfo returns build and uptime information.
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      "SyncBridge API",
		Version:   Version,
		GoVersion: runtime.Version(),
		StartedAt: h.startedAt,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// PingResponse answers liveness probes.
type PingResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Ping is a liveness endpoint; it touches nothing downstream.
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{Message: "pong", Timestamp: time.Now().UTC()})
}
