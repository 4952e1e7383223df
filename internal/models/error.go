package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Search lifecycle errors
	ErrSearchFinal = errors.New("search already reached a terminal state")

	// ErrNotConfigured is returned before any debit when a lookup kind has
	// no provider key configured.
	ErrNotConfigured = errors.New("lookup provider not configured")
)

// InsufficientCreditsError is returned by Debit when the balance cannot
// cover the cost of a lookup. It carries the current balance so callers
// can surface it to the client.
type InsufficientCreditsError struct {
	Credits int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: %d available", e.Credits)
}
