package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ordercore/internal/order"
	"ordercore/pkg/logger"
)

// ErrorResponse is the envelope every failed request gets.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
	})
}

// respondServiceError maps a classified service error to its status.
// notFound is the status for a missing resource, which differs per route.
// Unclassified errors are logged and answered with a generic 500.
func respondServiceError(c *gin.Context, err error, notFound int) {
	var classified *order.Error
	if !errors.As(err, &classified) {
		logger.L().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		respondError(c, http.StatusInternalServerError, "internal server error")
		return
	}

	switch {
	case errors.Is(err, order.ErrNotFound):
		respondError(c, notFound, classified.Message)
	case errors.Is(err, order.ErrConflict):
		respondError(c, http.StatusConflict, classified.Message)
	default:
		respondError(c, http.StatusBadRequest, classified.Message)
	}
}
