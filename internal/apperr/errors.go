package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidQuery = errors.New("invalid query")
	ErrUnavailable  = errors.New("source unavailable")
)
