package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frostbean/freezedry-api/lifecycle"
)

// respondError maps lifecycle errors to HTTP status codes and the standard
// error envelope. The specific message is surfaced so the UI can show it and
// leave the form state intact for retry.
func respondError(c *gin.Context, err error) {
	var (
		validationErr   *lifecycle.ValidationError
		notFoundErr     *lifecycle.NotFoundError
		transitionErr   *lifecycle.InvalidTransitionError
		preconditionErr *lifecycle.PreconditionError
		gatewayErr      *lifecycle.GatewayError
	)

	switch {
	case errors.As(err, &validationErr):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Message)
	case errors.As(err, &notFoundErr):
		writeError(c, http.StatusNotFound, "NOT_FOUND", notFoundErr.Error())
	case errors.As(err, &transitionErr):
		writeError(c, http.StatusConflict, "INVALID_TRANSITION", transitionErr.Error())
	case errors.As(err, &preconditionErr):
		writeError(c, http.StatusConflict, "PRECONDITION_FAILED", preconditionErr.Message)
	case errors.Is(err, lifecycle.ErrNoChange):
		writeError(c, http.StatusConflict, "NO_CHANGE", "No fields would change")
	case errors.Is(err, lifecycle.ErrConflict):
		writeError(c, http.StatusConflict, "CONFLICT", "The order was modified concurrently, please retry")
	case errors.As(err, &gatewayErr):
		writeError(c, http.StatusBadGateway, "GATEWAY_ERROR", gatewayErr.Error())
	default:
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
