package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "tradewarden/internal/errors"
	"tradewarden/internal/logger"
)

// errorBody renders the wire shape for every error response.
func errorBody(code, message string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": message}}
}

// ErrorHandler converts errors attached to the Gin context into JSON error
// responses. AppErrors carry their own code, message, and status; anything
// else is logged in full and answered with a generic internal error so the
// underlying cause never reaches a client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// Only the last error matters; earlier ones are superseded.
		err := c.Errors.Last().Err
		requestID := c.GetString(requestIDKey)

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			if appErr.Internal != nil {
				logger.Get().Errorw("request failed",
					"request_id", requestID,
					"code", appErr.Code,
					"message", appErr.Message,
					"internal", appErr.Internal.Error(),
					"path", c.Request.URL.Path,
				)
			}
			c.JSON(appErr.StatusCode, errorBody(appErr.Code, appErr.Message))
			return
		}

		logger.Get().Errorw("unexpected error",
			"request_id", requestID,
			"error", err.Error(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.JSON(apperrors.ErrInternalServer.StatusCode,
			errorBody(apperrors.ErrInternalServer.Code, apperrors.ErrInternalServer.Message))
	}
}
