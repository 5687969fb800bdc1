package directory

import (
	"context"
	"maps"

	"github.com/example/court-scheduler/internal/domain/booking"
)

// Static serves a fixed occupancy. Used for rehearsals and when the portal
// has no API.
type Static booking.Occupancy

func (s Static) Occupancy(context.Context, string) (booking.Occupancy, error) {
	return maps.Clone(booking.Occupancy(s)), nil
}
