package booking

import (
	"fmt"
	"time"
)

// Lead is how far ahead of a slot its booking opens.
const Lead = 24 * time.Hour

// Window is the slot a run books. OpenAt is the start of the slot itself,
// always on the day after the run starts; booking for it opens Lead earlier.
type Window struct {
	OpenAt   time.Time
	SlotHour int
}

// OpeningInstant is when submits start being accepted.
func (w Window) OpeningInstant() time.Time { return w.OpenAt.Add(-Lead) }

// ComputeWindow resolves the slot hour and places it on the calendar day after
// now, in now's location. With an auto slot the current hour is used, or the
// next one once the minute is past cutoffMinute.
func ComputeWindow(slot SlotHour, now time.Time, cutoffMinute int) (Window, error) {
	hour := slot.Hour
	if slot.Auto {
		hour = now.Hour()
		if now.Minute() > cutoffMinute {
			hour++
		}
	}
	if hour < 0 || hour > 23 {
		return Window{}, fmt.Errorf("%w: %d", ErrSlotHourOutOfRange, hour)
	}

	y, m, d := now.Date()
	return Window{
		OpenAt:   time.Date(y, m, d+1, hour, 0, 0, 0, now.Location()),
		SlotHour: hour,
	}, nil
}

// SoonWindow returns a window whose booking opens in one minute. Used for
// rehearsal runs only.
func SoonWindow(now time.Time) Window {
	openAt := now.Add(Lead + time.Minute).Truncate(time.Second)
	return Window{OpenAt: openAt, SlotHour: openAt.Hour()}
}
