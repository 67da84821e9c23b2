package errors

import (
	"errors"
)

// ErrorResponse is the uniform error body returned to clients.
// Success is a pointer so validation failures can omit the field entirely
// while every other failure reports "success": false.
type ErrorResponse struct {
	Success     *bool    `json:"success,omitempty"`
	Error       string   `json:"error"`
	Ingredients []string `json:"ingredients"`
}

// As is a wrapper around errors.As for better error type assertion
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// AsSousError returns err as a *SousError when it is one or wraps one.
func AsSousError(err error) (*SousError, bool) {
	var se *SousError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
