package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "tradewarden/internal/errors"
	"tradewarden/internal/logger"
	"tradewarden/internal/pagination"
)

// parseUUIDParam parses a UUID path parameter.
// Returns ErrInvalidInput if the parameter is not a valid UUID.
func parseUUIDParam(c *gin.Context, param string) (string, error) {
	raw := c.Param(param)
	if _, err := uuid.Parse(raw); err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return raw, nil
}

// parsePageRequest binds pagination query parameters.
func parsePageRequest(c *gin.Context) (pagination.PageRequest, error) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		return page, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	return page, nil
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrInternalServer.Code,
			"message": apperrors.ErrInternalServer.Message,
		},
	})
}
