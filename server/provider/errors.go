package provider

import "errors"

var (
	// ErrNotConfigured indicates the provider could not be initialized,
	// typically because no API key was supplied
	ErrNotConfigured = errors.New("provider not configured")

	// ErrNoCandidates indicates the provider returned no candidate reply
	ErrNoCandidates = errors.New("no candidates returned")

	// ErrNoText indicates the first candidate carried no text
	ErrNoText = errors.New("no text in response")
)
