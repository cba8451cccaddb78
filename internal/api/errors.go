package api

import (
	"net/http"

	"mockexam-workers/internal/common/errors"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Details string           `json:"details,omitempty"`
}

// StatusForCode maps a worker error code to the HTTP status the admin panel sees.
func StatusForCode(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeValidationFailed, errors.ErrCodeInputParsingFailed:
		return http.StatusBadRequest
	case errors.ErrCodeMockExamNotFound, errors.ErrCodeEligibilityNotCached:
		return http.StatusNotFound
	case errors.ErrCodeCRMRateLimited:
		return http.StatusTooManyRequests
	case errors.ErrCodeCRMAPIError,
		errors.ErrCodeCacheReadFailed,
		errors.ErrCodeCacheWriteFailed,
		errors.ErrCodeAuditWriteFailed,
		errors.ErrCodeAuditReadFailed,
		errors.ErrCodeExportDeliveryFailed,
		errors.ErrCodeAlertPublishFailed:
		return http.StatusBadGateway
	case errors.ErrCodeCRMNotConfigured:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	stdErr := errors.Normalize(err)
	status := StatusForCode(stdErr.Code)
	if status == http.StatusTooManyRequests {
		c.Header("Retry-After", "10")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": ErrorResponse{
		Code:    stdErr.Code,
		Message: stdErr.Message,
		Details: stdErr.Details,
	}})
}

func abortUnavailable(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": ErrorResponse{
		Code:    errors.ErrCodeInternal,
		Message: what + " is not configured",
	}})
}
