package errors

import (
	"fmt"
	"net/http"
)

// Client-facing messages for the validation failures.
const (
	MsgNoJSON   = "No JSON data received"
	MsgNoRecipe = "No recipe provided"
)

// NewError creates a new SousError with the given parameters.
// It is a general-purpose constructor; most callers want one of the
// specialized constructors below.
//
// Example:
//
//	err := NewError(InternalError, "encode failed", 500, "req_123", encErr)
func NewError(errType ErrorType, message string, code int, requestID string, err error) *SousError {
	return &SousError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		err:       err,
	}
}

// NewValidationError creates a 400 error for a missing or unusable request body
// or recipe field.
//
// Example:
//
//	err := NewValidationError("req_123", MsgNoRecipe)
func NewValidationError(requestID, message string) *SousError {
	return &SousError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
	}
}

// NewConfigError creates a 500 error for a text-generation collaborator that
// is not available. The message is shown to the client verbatim.
func NewConfigError(requestID, message string, err error) *SousError {
	return &SousError{
		Type:      ConfigError,
		Message:   message,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// NewProviderError creates a 500 error for a failed collaborator call.
// The message is prefixed with the provider's display name:
//
//	NewProviderError("req_123", "Gemini", err) // "Gemini API error: <err>"
func NewProviderError(requestID, provider string, err error) *SousError {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &SousError{
		Type:      ProviderError,
		Message:   fmt.Sprintf("%s API error: %s", provider, msg),
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// NewInternalError creates a 500 error for an unexpected failure.
// The raw message of err is surfaced to the client.
func NewInternalError(requestID string, err error) *SousError {
	msg := "An internal error occurred"
	if err != nil {
		msg = err.Error()
	}
	return &SousError{
		Type:      InternalError,
		Message:   msg,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// NewRateLimitError creates a 429 error for a client that exceeded its rate.
func NewRateLimitError(requestID string, retryAfterSeconds int) *SousError {
	return &SousError{
		Type:      RateLimitError,
		Message:   fmt.Sprintf("Rate limit exceeded, retry after %ds", retryAfterSeconds),
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
	}
}

// NewQueueFullError creates a 503 error for a request rejected by the admission queue.
func NewQueueFullError(requestID string) *SousError {
	return &SousError{
		Type:      QueueFullError,
		Message:   "Queue is full",
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
	}
}
