// Package errors provides the error handling system for the sous ingredient
// service. Every failure the service can produce is a *SousError carrying a
// category, an HTTP status code and the message that ends up in the uniform
// ingredient error body:
//
//	{"error": "...", "ingredients": []}                    // validation failures
//	{"success": false, "error": "...", "ingredients": []}  // everything else
//
// Basic usage:
//
//	// Validation failure, 400
//	errors.WriteError(w, errors.NewValidationError(requestID, errors.MsgNoRecipe))
//
//	// Collaborator failure, 500 with "Gemini API error: ..." message
//	errors.WriteError(w, errors.NewProviderError(requestID, "Gemini", err))
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the zap logger used by the package helpers.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// A nil logger is ignored so logging cannot be disabled by accident.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType represents the categories of errors the service produces.
type ErrorType string

const (
	// ValidationError represents a missing or malformed request body or recipe field
	ValidationError ErrorType = "validation_error"

	// ConfigError represents a text-generation collaborator that was never configured
	ConfigError ErrorType = "config_error"

	// ProviderError represents a failure of the text-generation collaborator
	ProviderError ErrorType = "provider_error"

	// InternalError represents any other unexpected failure
	InternalError ErrorType = "internal_error"

	// RateLimitError represents a client exceeding its request rate
	RateLimitError ErrorType = "rate_limit_error"

	// QueueFullError represents a request rejected by the admission queue
	QueueFullError ErrorType = "queue_full_error"
)

// SousError implements the error interface and carries everything needed to
// render the uniform JSON error body.
type SousError struct {
	// Type categorizes the error
	Type ErrorType

	// Message is what the client sees in the "error" field
	Message string

	// Code is the HTTP status code
	Code int

	// RequestID links the error to a specific request
	RequestID string

	// err is the underlying error (not exposed in JSON)
	err error
}

// Error implements the error interface.
func (e *SousError) Error() string {
	if e.err != nil && e.err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, implementing the unwrap
// interface for error chains.
func (e *SousError) Unwrap() error {
	return e.err
}

// Is implements error matching for errors.Is, allowing type-based
// error matching while ignoring other fields.
func (e *SousError) Is(target error) bool {
	t, ok := target.(*SousError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Response converts the error into the body written to the client.
// Validation failures omit the success field, every other category sets it to false.
func (e *SousError) Response() ErrorResponse {
	resp := ErrorResponse{
		Error:       e.Message,
		Ingredients: []string{},
	}
	if e.Type != ValidationError {
		success := false
		resp.Success = &success
	}
	return resp
}

// WriteError writes a SousError to an http.ResponseWriter as JSON with the
// error's status code.
func WriteError(w http.ResponseWriter, err *SousError) {
	WriteJSON(w, err.Code, err.Response())
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		DefaultLogger.Error("failed to encode response",
			zap.Error(err),
			zap.Int("code", code),
		)
	}
}
