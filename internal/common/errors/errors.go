// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"

	ErrCodeCRMNotConfigured ErrorCode = "CRM_NOT_CONFIGURED"
	ErrCodeCRMAPIError      ErrorCode = "CRM_API_ERROR"
	ErrCodeCRMRateLimited   ErrorCode = "CRM_RATE_LIMITED"
	ErrCodeMockExamNotFound ErrorCode = "MOCK_EXAM_NOT_FOUND"

	ErrCodeCacheReadFailed  ErrorCode = "CACHE_READ_FAILED"
	ErrCodeCacheWriteFailed ErrorCode = "CACHE_WRITE_FAILED"
	ErrCodeAuditWriteFailed ErrorCode = "AUDIT_WRITE_FAILED"
	ErrCodeAuditReadFailed  ErrorCode = "AUDIT_READ_FAILED"

	ErrCodeEligibilityNotCached ErrorCode = "ELIGIBILITY_NOT_CACHED"

	ErrCodeExportRenderFailed   ErrorCode = "EXPORT_RENDER_FAILED"
	ErrCodeExportDeliveryFailed ErrorCode = "EXPORT_DELIVERY_FAILED"
	ErrCodeAlertPublishFailed   ErrorCode = "ALERT_PUBLISH_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// AsStandardError unwraps err into a *StandardError when one is in the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the error code of err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInputParsingFailedError creates a non-retryable job variable parsing error.
func NewInputParsingFailedError(err error) *StandardError {
	return newError(ErrCodeInputParsingFailed, "Failed to parse job variables", err.Error(), false)
}

// NewValidationFailedError creates a non-retryable input validation error.
func NewValidationFailedError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Input validation failed", details, false)
}

func NewCRMNotConfiguredError() *StandardError {
	return newError(ErrCodeCRMNotConfigured, "HubSpot client not configured", "missing access token", false)
}

// NewCRMAPIError creates a retryable HubSpot API error.
func NewCRMAPIError(operation string, err error) *StandardError {
	return newError(ErrCodeCRMAPIError, "HubSpot API request failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

// NewCRMRateLimitedError creates a retryable rate limit error.
func NewCRMRateLimitedError(operation string) *StandardError {
	return newError(ErrCodeCRMRateLimited, "HubSpot rate limit exceeded",
		fmt.Sprintf("operation: %s", operation), true)
}

// NewMockExamNotFoundError creates a non-retryable lookup error.
func NewMockExamNotFoundError(mockExamID string) *StandardError {
	return newError(ErrCodeMockExamNotFound, "Mock exam not found in HubSpot",
		fmt.Sprintf("mockExamId: %s", mockExamID), false)
}

// NewCacheReadFailedError creates a retryable Redis read error.
func NewCacheReadFailedError(key string, err error) *StandardError {
	return newError(ErrCodeCacheReadFailed, "Redis read failed",
		fmt.Sprintf("key: %s, error: %s", key, err.Error()), true)
}

func NewCacheWriteFailedError(key string, err error) *StandardError {
	return newError(ErrCodeCacheWriteFailed, "Redis write failed",
		fmt.Sprintf("key: %s, error: %s", key, err.Error()), true)
}

func NewAuditWriteFailedError(err error) *StandardError {
	return newError(ErrCodeAuditWriteFailed, "Audit record insert failed", err.Error(), true)
}

func NewAuditReadFailedError(err error) *StandardError {
	return newError(ErrCodeAuditReadFailed, "Audit history query failed", err.Error(), true)
}

// NewEligibilityNotCachedError reports that no mapping is cached for a contact.
func NewEligibilityNotCachedError(contactID string) *StandardError {
	return newError(ErrCodeEligibilityNotCached, "No cached credit eligibility for contact",
		fmt.Sprintf("contactId: %s", contactID), false)
}

func NewExportRenderFailedError(err error) *StandardError {
	return newError(ErrCodeExportRenderFailed, "CSV export rendering failed", err.Error(), false)
}

// NewExportDeliveryFailedError creates a retryable email delivery error.
func NewExportDeliveryFailedError(recipient string, err error) *StandardError {
	return newError(ErrCodeExportDeliveryFailed, "CSV export delivery failed",
		fmt.Sprintf("recipient: %s, error: %s", recipient, err.Error()), true)
}

func NewAlertPublishFailedError(err error) *StandardError {
	return newError(ErrCodeAlertPublishFailed, "Drift alert publish failed", err.Error(), true)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCRMAPIError,
		ErrCodeCacheReadFailed,
		ErrCodeCacheWriteFailed,
		ErrCodeAuditWriteFailed,
		ErrCodeAuditReadFailed,
		ErrCodeExportDeliveryFailed,
		ErrCodeAlertPublishFailed:
		return 3

	case ErrCodeCRMRateLimited:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// Normalize always yields a StandardError; foreign errors become INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "CRM") || strings.HasPrefix(codeStr, "MOCK_EXAM"):
		return "CRM"
	case strings.HasPrefix(codeStr, "CACHE") || strings.HasPrefix(codeStr, "ELIGIBILITY"):
		return "CACHE"
	case strings.HasPrefix(codeStr, "AUDIT"):
		return "DATABASE"
	case strings.HasPrefix(codeStr, "EXPORT"):
		return "EXPORT"
	case strings.HasPrefix(codeStr, "ALERT"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INPUT") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
