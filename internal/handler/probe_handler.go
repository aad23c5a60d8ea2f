// internal/handler/probe_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"device-programmer/internal/service"
	"device-programmer/internal/session"
	"device-programmer/internal/utils"
)

// ProbeHandler opens verification sessions on request
type ProbeHandler struct {
	probeService *service.ProbeService
	logger       *utils.ServiceLogger
}

// NewProbeHandler creates a new probe handler
func NewProbeHandler(probeService *service.ProbeService, logger *zap.Logger) *ProbeHandler {
	return &ProbeHandler{
		probeService: probeService,
		logger:       utils.NewServiceLogger(logger, "probe-handler"),
	}
}

// RegisterRoutes registers probe routes
func (h *ProbeHandler) RegisterRoutes(router gin.IRoutes) {
	router.POST("/probe", h.Probe)
}

// Probe opens a session, verifies the target and runs the requested reads
// @Summary Probe target
// @Tags Session
// @Accept json
// @Produce json
// @Param request body service.ProbeRequest true "Session options and reads"
// @Success 200 {object} utils.APIResponse{data=service.ProbeResult}
// @Failure 400 {object} utils.APIResponse "Missing or unsupported parameter"
// @Failure 409 {object} utils.APIResponse "Tool busy"
// @Failure 422 {object} utils.APIResponse "Target verification failed"
// @Failure 502 {object} utils.APIResponse "Tool error"
// @Router /api/v1/probe [post]
func (h *ProbeHandler) Probe(c *gin.Context) {
	var req service.ProbeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.probeService.Probe(c.Request.Context(), &req)
	if err != nil {
		statusCode, message := probeErrorStatus(err)
		if statusCode >= http.StatusInternalServerError {
			h.logger.Error("Probe failed", zap.Error(err))
		}
		utils.ErrorResponse(c, statusCode, message, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Target verified", result)
}

func probeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrMissingParam), errors.Is(err, session.ErrUnsupported):
		return http.StatusBadRequest, "Invalid session parameters"
	case errors.Is(err, session.ErrVerification):
		return http.StatusUnprocessableEntity, "Target verification failed"
	case errors.Is(err, service.ErrToolBusy), errors.Is(err, session.ErrSessionOpen):
		return http.StatusConflict, "Tool busy"
	default:
		return http.StatusBadGateway, "Tool communication failed"
	}
}
