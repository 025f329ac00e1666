package services

import "errors"

// Sentinel errors returned by the learning services. Controllers map these to
// distinct HTTP statuses and reason codes; everything else is treated as an
// internal failure.
var (
	// ErrSessionOverlap means the proposed interval intersects an existing
	// study session of the same user. User-correctable, never retried.
	ErrSessionOverlap = errors.New("study session overlaps an existing session")

	// ErrStreakContention is surfaced only after the optimistic update of a
	// streak row lost the version check three times in a row. Transient.
	ErrStreakContention = errors.New("streak update contention, retries exhausted")

	// ErrNotFound means the addressed entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrNotOwner means the authenticated user does not own the addressed
	// entity. Rejected immediately, no retry.
	ErrNotOwner = errors.New("entity belongs to another user")
)

// ValidationError carries a stable machine-readable reason for a rejected
// input, mirrored into the error envelope.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(reason, message string) error {
	return &ValidationError{Reason: reason, Message: message}
}
