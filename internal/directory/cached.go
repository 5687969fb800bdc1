package directory

import (
	"context"
	"maps"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/example/court-scheduler/internal/domain/booking"
)

// Cached memoises occupancy per group for a short TTL. The dashboard uses it;
// booking runs always read through.
type Cached struct {
	next  booking.Directory
	cache *ttlcache.Cache[string, booking.Occupancy]
}

func NewCached(next booking.Directory, ttl time.Duration) *Cached {
	return &Cached{
		next: next,
		cache: ttlcache.New[string, booking.Occupancy](
			ttlcache.WithTTL[string, booking.Occupancy](ttl),
			ttlcache.WithDisableTouchOnHit[string, booking.Occupancy](),
		),
	}
}

func (c *Cached) Occupancy(ctx context.Context, group string) (booking.Occupancy, error) {
	if item := c.cache.Get(group); item != nil {
		return maps.Clone(item.Value()), nil
	}
	occ, err := c.next.Occupancy(ctx, group)
	if err != nil {
		return nil, err
	}
	c.cache.Set(group, maps.Clone(occ), ttlcache.DefaultTTL)
	return occ, nil
}

// Invalidate drops the cached snapshot for group.
func (c *Cached) Invalidate(group string) { c.cache.Delete(group) }
