package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tradewarden/internal/logger"
)

const requestIDKey = "requestID"

// RequestLogging assigns each request a unique id, echoes it in the
// X-Request-ID header, and logs method, path, status, latency, and client
// IP on completion. Server errors log at error level so they stand out in
// aggregated output.
func RequestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := uuid.New().String()
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}

		if status >= 500 {
			logger.Get().Errorw("request", fields...)
			return
		}
		logger.Get().Infow("request", fields...)
	}
}
