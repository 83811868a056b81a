package domain

import "errors"

// Engine error taxonomy. Services wrap these with context via fmt.Errorf
// and the HTTP layer maps them to status codes with errors.Is.
var (
	// ErrInvalidInput covers malformed time ranges (to <= from after
	// clamping), unknown categories, and negative cap values.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a referenced time window or batch
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoWindow is returned when no time window has been configured at
	// all, so no settlement span can be hosted.
	ErrNoWindow = errors.New("no time window configured")
)
