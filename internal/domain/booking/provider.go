package booking

import "context"

// Directory reports the requester's current reservations per court.
// Implementations wrap transport failures in ErrDirectoryUnavailable.
type Directory interface {
	Occupancy(ctx context.Context, resourceGroup string) (Occupancy, error)
}

// Controller drives the automation surfaces. Callers never issue two
// commands at once; implementations may assume serial use.
type Controller interface {
	Acquire(ctx context.Context, spec TargetSpec) (Target, error)
	Navigate(ctx context.Context, t Target, req Request) error
	Submit(ctx context.Context, t Target) error
	Release(ctx context.Context, t Target) error
}

// Session is implemented by controllers whose targets are served by a
// dispatcher that must be started before acquisition and stopped at the end
// of a run.
type Session interface {
	Open(ctx context.Context, targets int) error
	Close(ctx context.Context) error
}
