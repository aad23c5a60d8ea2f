// internal/handler/discovery_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"device-programmer/internal/discovery"
	"device-programmer/internal/utils"
)

// DiscoveryHandler handles port discovery requests
type DiscoveryHandler struct {
	scanners *discovery.ScannerManager
	logger   *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(scanners *discovery.ScannerManager, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		scanners: scanners,
		logger:   utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// RegisterRoutes registers discovery routes
func (h *DiscoveryHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/ports", h.ListPorts)
}

// ListPorts scans for ports a programmer may be attached to
// @Summary List ports
// @Tags Discovery
// @Produce json
// @Param type query string false "Scanner type" Enums(all, serial, usb) default(all)
// @Success 200 {object} utils.APIResponse{data=object{count=int,ports=[]discovery.DiscoveredPort}}
// @Failure 500 {object} utils.APIResponse "Scan failed"
// @Router /api/v1/ports [get]
func (h *DiscoveryHandler) ListPorts(c *gin.Context) {
	scanType := c.DefaultQuery("type", "all")

	var (
		ports []*discovery.DiscoveredPort
		err   error
	)
	if scanType == "all" {
		ports, err = h.scanners.ScanAll(c.Request.Context())
	} else {
		ports, err = h.scanners.ScanByType(c.Request.Context(), scanType)
	}

	// a failed scanner does not hide ports the others found
	if err != nil && len(ports) == 0 {
		h.logger.Error("Failed to scan ports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to scan ports", err)
		return
	}
	if err != nil {
		h.logger.Warn("Port scan incomplete", zap.Error(err))
	}

	if ports == nil {
		ports = []*discovery.DiscoveredPort{}
	}
	utils.SuccessResponse(c, http.StatusOK, "Port scan completed", gin.H{
		"count": len(ports),
		"ports": ports,
	})
}
