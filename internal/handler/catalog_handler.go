// internal/handler/catalog_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"device-programmer/internal/device"
	"device-programmer/internal/driver"
	"device-programmer/internal/utils"
)

// CatalogHandler serves the tool and part registries
type CatalogHandler struct {
	tools   *driver.Registry
	devices *device.Registry
	logger  *utils.ServiceLogger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(tools *driver.Registry, devices *device.Registry, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		tools:   tools,
		devices: devices,
		logger:  utils.NewServiceLogger(logger, "catalog-handler"),
	}
}

// RegisterRoutes registers catalog routes
func (h *CatalogHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/tools", h.ListTools)
	router.GET("/devices", h.ListDevices)
	router.GET("/devices/:name", h.GetDevice)
}

// ListTools lists the registered tool types
// @Summary List tools
// @Tags Catalog
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{count=int,tools=[]driver.ToolInfo}}
// @Router /api/v1/tools [get]
func (h *CatalogHandler) ListTools(c *gin.Context) {
	tools := h.tools.Info()
	utils.SuccessResponse(c, http.StatusOK, "Tools retrieved successfully", gin.H{
		"count": len(tools),
		"tools": tools,
	})
}

// ListDevices lists the known parts
// @Summary List devices
// @Tags Catalog
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{count=int,devices=[]device.Descriptor}}
// @Router /api/v1/devices [get]
func (h *CatalogHandler) ListDevices(c *gin.Context) {
	devices := h.devices.List()
	utils.SuccessResponse(c, http.StatusOK, "Devices retrieved successfully", gin.H{
		"count":   len(devices),
		"devices": devices,
	})
}

// GetDevice returns one part by name or alias
// @Summary Get device
// @Tags Catalog
// @Produce json
// @Param name path string true "Part name or alias"
// @Success 200 {object} utils.APIResponse{data=device.Descriptor}
// @Failure 404 {object} utils.APIResponse "Unknown device"
// @Router /api/v1/devices/{name} [get]
func (h *CatalogHandler) GetDevice(c *gin.Context) {
	descriptor, err := h.devices.Get(c.Param("name"))
	if err != nil {
		if errors.Is(err, device.ErrUnknownDevice) {
			utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
			return
		}
		h.logger.Error("Failed to get device", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get device", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device retrieved successfully", descriptor)
}
