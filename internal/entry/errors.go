package entry

import "errors"

// Domain errors for the entry package.
var (
	// ErrEntryNotFound is returned when an entry ID does not exist.
	ErrEntryNotFound = errors.New("entry: not found")

	// ErrEntryExists is returned when a station with the same unique id is
	// already configured.
	ErrEntryExists = errors.New("entry: already configured")

	// ErrInvalidEntry is returned when input validation fails.
	ErrInvalidEntry = errors.New("entry: invalid")
)
