package joplin

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthError indicates a missing or rejected API token.
	ErrAuthError = errors.New("joplin: authentication error")
	// ErrRateLimited indicates the service refused the request rate.
	ErrRateLimited = errors.New("joplin: rate limit exceeded")
	// ErrInvalidResponse indicates a body that could not be decoded.
	ErrInvalidResponse = errors.New("joplin: invalid response")
)

// APIError is a non-success response from the Data API.
type APIError struct {
	StatusCode int
	Message    string
	Path       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("joplin: %s: HTTP %d: %s", e.Path, e.StatusCode, e.Message)
}
