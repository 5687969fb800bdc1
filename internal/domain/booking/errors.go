package booking

import "errors"

var (
	// ErrCapacityExceeded means no more reservations can be made right now.
	// It is an expected outcome, not a failure.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrDirectoryUnavailable aborts a run before any target is acquired.
	ErrDirectoryUnavailable = errors.New("booking directory unavailable")

	// Per-target failures. They are recorded on the entry and never abort a run.
	ErrNotFound         = errors.New("target not found")
	ErrNavigationFailed = errors.New("navigation failed")
	ErrSubmitFailed     = errors.New("submit failed")
	ErrTeardownFailed   = errors.New("teardown failed")

	ErrSlotHourOutOfRange = errors.New("slot hour out of range")
	ErrAllocationShort    = errors.New("allocation shorter than requested")
	ErrInvalidConfig      = errors.New("invalid run config")
)
