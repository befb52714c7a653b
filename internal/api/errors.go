package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tutorgate-backend-go/internal/core"
	"tutorgate-backend-go/internal/providers"
)

// Error codes clients can switch on.
const (
	CodeUnauthenticated     = "unauthenticated"
	CodeForbidden           = "forbidden"
	CodeQuotaExceeded       = "quota_exceeded"
	CodeInvalidInput        = "invalid_input"
	CodeNotFound            = "not_found"
	CodeInternal            = "internal"
	CodeProviderUnavailable = "provider_unavailable"
	CodeSystemBusy          = "system_busy"
	CodeProviderError       = "provider_error"
)

// mapError maps service errors to an HTTP status and ErrorResponse.
func mapError(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorResponse{Error: "Authentication required", Code: CodeUnauthenticated}
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: "Account is not approved", Code: CodeForbidden}
	case errors.Is(err, core.ErrQuotaExceeded):
		return http.StatusTooManyRequests, ErrorResponse{Error: "Daily quota exceeded", Code: CodeQuotaExceeded}
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Code: CodeInvalidInput, Details: err.Error()}
	case errors.Is(err, core.ErrUserNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "User not found", Code: CodeNotFound}
	case errors.Is(err, providers.ErrUnknownProvider):
		return http.StatusNotFound, ErrorResponse{Error: "Provider not found", Code: CodeNotFound, Details: err.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "An unexpected internal server error occurred.", Code: CodeInternal}
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status, resp := mapError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(status, resp)
}

// providerErrorCode names the per-provider failure class.
func providerErrorCode(err error) string {
	switch {
	case errors.Is(err, core.ErrProviderUnavailable):
		return CodeProviderUnavailable
	case errors.Is(err, core.ErrProviderRateLimited):
		return CodeSystemBusy
	case errors.Is(err, core.ErrInvalidInput):
		return CodeInvalidInput
	}
	return CodeProviderError
}

// providerErrorMessage is the user-facing text for a failed provider.
func providerErrorMessage(err error) string {
	switch providerErrorCode(err) {
	case CodeProviderUnavailable:
		return "This model is temporarily unavailable."
	case CodeSystemBusy:
		return "The system is busy, please try again."
	case CodeInvalidInput:
		return "Nothing to send to this model."
	}
	return "The model returned an error."
}
