package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/biblioteca/backend/internal/infrastructure/logger"
)

// Pinger checks a backing store
type Pinger interface {
	Ping() error
}

// ConnectionChecker reports whether a message transport is connected
type ConnectionChecker interface {
	Connected() bool
}

// SystemHandler serves health and ping endpoints
type SystemHandler struct {
	BaseHandler
	db        Pinger
	transport ConnectionChecker
	version   string
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. transport may be nil.
func NewSystemHandler(db Pinger, transport ConnectionChecker, version string) *SystemHandler {
	return &SystemHandler{
		db:        db,
		transport: transport,
		version:   version,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// RegisterRoutes mounts the versioned system endpoints under rg
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", h.Ping)
	rg.GET("/system/info", h.GetSystemInfo)
}

// Health handles GET /health.
// It answers 503 when the database or the transport is down.
func (h *SystemHandler) Health(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"time":      time.Now().Format(time.RFC3339),
		"database":  "ok",
		"transport": "ok",
	}
	healthy := true

	if err := h.db.Ping(); err != nil {
		logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
		body["database"] = "error"
		healthy = false
	}
	if h.transport == nil {
		body["transport"] = "disabled"
	} else if !h.transport.Connected() {
		logger.GetGinLogger(c).Warn("Health check failed: transport disconnected")
		body["transport"] = "disconnected"
		healthy = false
	}

	if !healthy {
		body["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// Ping handles GET /ping
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// GetSystemInfo handles GET /system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      "Biblioteca Cart API",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}
