package scheduler

import (
	"context"
	"time"

	"github.com/example/court-scheduler/internal/domain/booking"
	"k8s.io/utils/clock"
)

// Polling is the two-speed cadence of WaitUntil.
type Polling struct {
	Long  time.Duration
	Short time.Duration
	// SwitchThreshold is the remaining time at or below which polling drops
	// to Short for good. Zero means booking.Lead + 2*Long.
	SwitchThreshold time.Duration
}

func (p Polling) withDefaults() Polling {
	if p.Long <= 0 {
		p.Long = booking.DefaultLongInterval
	}
	if p.Short <= 0 {
		p.Short = booking.DefaultShortInterval
	}
	if p.SwitchThreshold <= 0 {
		p.SwitchThreshold = booking.Lead + 2*p.Long
	}
	return p
}

// WaitStats describes how a wait went.
type WaitStats struct {
	LongPolls  int
	ShortPolls int
	// Remaining is openAt minus the clock at the last check.
	Remaining time.Duration
	Cancelled bool
}

// WaitUntil blocks until less than booking.Lead remains before openAt, i.e.
// until the booking for openAt opens. Far from the deadline it sleeps in Long
// steps; once the remaining time is at or below SwitchThreshold it switches
// to Short steps and never switches back. Cancelling ctx ends the wait at the
// next poll boundary. WaitUntil never fails.
func WaitUntil(ctx context.Context, clk clock.Clock, openAt time.Time, p Polling) WaitStats {
	p = p.withDefaults()
	var st WaitStats
	short := false
	for {
		st.Remaining = openAt.Sub(clk.Now())
		if st.Remaining < booking.Lead {
			return st
		}

		interval := p.Long
		if short || st.Remaining <= p.SwitchThreshold {
			short = true
			interval = p.Short
			st.ShortPolls++
		} else {
			st.LongPolls++
		}

		select {
		case <-ctx.Done():
			st.Cancelled = true
			return st
		case <-clk.After(interval):
		}
	}
}
