// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"device-programmer/internal/config"
	"device-programmer/internal/device"
	"device-programmer/internal/driver"
	"device-programmer/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	tools     *driver.Registry
	devices   *device.Registry
	config    *config.Config
	startTime time.Time
	logger    *utils.ServiceLogger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(tools *driver.Registry, devices *device.Registry, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		tools:     tools,
		devices:   devices,
		config:    config,
		startTime: time.Now(),
		logger:    utils.NewServiceLogger(logger, "health-handler"),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.HealthCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports service health and registry sizes
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	toolCount := len(h.tools.List())
	health.Checks["tools"] = registryCheck(toolCount, "No tools registered")
	deviceCount := len(h.devices.List())
	health.Checks["devices"] = registryCheck(deviceCount, "Part database is empty")

	statusCode := http.StatusOK
	for _, check := range health.Checks {
		if check.Status != "healthy" {
			health.Status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		}
	}

	c.JSON(statusCode, health)
}

// LivenessCheck reports that the service can respond
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

func registryCheck(count int, emptyMessage string) CheckResult {
	if count == 0 {
		return CheckResult{Status: "unhealthy", Message: emptyMessage}
	}
	return CheckResult{
		Status: "healthy",
		Data:   map[string]interface{}{"count": count},
	}
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
