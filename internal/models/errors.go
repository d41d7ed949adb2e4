package models

import "errors"

var (
	// ErrInvalidAggregate marks a malformed payload (empty aggregate id,
	// duplicate scene ids). Caller error, never retried.
	ErrInvalidAggregate = errors.New("invalid aggregate")

	// ErrNotOwner is returned when an aggregate belongs to a different
	// caller.
	ErrNotOwner = errors.New("not the aggregate owner")

	// ErrNotFound is returned when an aggregate does not exist.
	ErrNotFound = errors.New("aggregate not found")

	// ErrAuthenticationRequired means the remote backend rejected the
	// caller's credential. It never triggers local fallback.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrStoreUnavailable means both the remote and the local backend
	// failed.
	ErrStoreUnavailable = errors.New("store unavailable")
)
