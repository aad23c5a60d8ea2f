// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"device-programmer/internal/config"
	"device-programmer/internal/device"
	"device-programmer/internal/discovery"
	"device-programmer/internal/driver"
	"device-programmer/internal/handler"
	"device-programmer/internal/middleware"
	"device-programmer/internal/service"
	"device-programmer/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config       *config.Config
	logger       *zap.Logger
	tools        *driver.Registry
	devices      *device.Registry
	scanners     *discovery.ScannerManager
	probeService *service.ProbeService
}

// NewRouter creates a new router instance
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	tools *driver.Registry,
	devices *device.Registry,
	scanners *discovery.ScannerManager,
	probeService *service.ProbeService,
) *Router {
	return &Router{
		config:       config,
		logger:       logger,
		tools:        tools,
		devices:      devices,
		scanners:     scanners,
		probeService: probeService,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	switch r.config.App.Environment {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Debug("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.tools, r.devices, r.config, r.logger)
	catalogHandler := handler.NewCatalogHandler(r.tools, r.devices, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(r.scanners, r.logger)
	probeHandler := handler.NewProbeHandler(r.probeService, r.logger)

	// Health check routes
	healthHandler.RegisterRoutes(router)

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	catalogHandler.RegisterRoutes(apiV1)
	discoveryHandler.RegisterRoutes(apiV1)
	probeHandler.RegisterRoutes(apiV1)

	// Documentation routes
	r.addDocumentationRoutes(router)

	r.logger.Debug("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	// Swagger redirect for convenience
	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
