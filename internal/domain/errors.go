package domain

import "errors"

// --- Error Definitions ---
var (
	// ErrAuth marks a failed sign-in or an invalid session token.
	ErrAuth = errors.New("authentication failed")
	// ErrSync marks a subscription that could not be opened or reported an error.
	ErrSync = errors.New("workout sync failed")
	// ErrValidation marks input that cannot be stored.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to a plan or exercise that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable marks an optional feature that is not configured.
	ErrUnavailable = errors.New("feature unavailable")
)
