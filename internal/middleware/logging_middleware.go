// internal/middleware/logging_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"device-programmer/internal/utils"
)

// LoggingMiddleware logs every request with its status and duration
func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		requestLogger := &utils.ServiceLogger{Logger: utils.LoggerWithRequestID(logger.Logger, c.GetString(RequestIDKey))}
		requestLogger.LogAPIRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Request.UserAgent(),
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(startTime),
		)
	}
}
