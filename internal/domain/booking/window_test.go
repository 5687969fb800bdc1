package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeWindow(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	at := func(d, h, m int) time.Time { return time.Date(2026, 10, d, h, m, 12, 500, loc) }

	tests := []struct {
		name     string
		slot     SlotHour
		now      time.Time
		cutoff   int
		wantHour int
		wantDay  int
	}{
		{"fixed hour", FixedSlot(7), at(18, 21, 5), 45, 7, 19},
		{"auto before cutoff keeps hour", AutoSlot(), at(18, 6, 40), 45, 6, 19},
		{"auto at cutoff keeps hour", AutoSlot(), at(18, 6, 45), 45, 6, 19},
		{"auto past cutoff moves to next hour", AutoSlot(), at(18, 6, 46), 45, 7, 19},
		{"month rollover", FixedSlot(0), at(31, 23, 59), 45, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := ComputeWindow(tt.slot, tt.now, tt.cutoff)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHour, w.SlotHour)
			assert.Equal(t, tt.wantHour, w.OpenAt.Hour())
			assert.Equal(t, 0, w.OpenAt.Minute())
			assert.Equal(t, 0, w.OpenAt.Second())
			assert.Equal(t, 0, w.OpenAt.Nanosecond())
			assert.Equal(t, tt.wantDay, w.OpenAt.Day())
			assert.Equal(t, loc, w.OpenAt.Location())
			assert.True(t, w.OpenAt.After(tt.now), "openAt must be in the future")

			y, m, d := tt.now.Date()
			next := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
			ny, nm, nd := w.OpenAt.Date()
			assert.Equal(t, []int{next.Year(), int(next.Month()), next.Day()}, []int{ny, int(nm), nd})
		})
	}
}

func TestComputeWindowAutoPastLastHour(t *testing.T) {
	now := time.Date(2026, 10, 18, 23, 50, 0, 0, time.UTC)
	_, err := ComputeWindow(AutoSlot(), now, 45)
	require.ErrorIs(t, err, ErrSlotHourOutOfRange)
}

func TestComputeWindowEveryHour(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for h := 0; h < 24; h++ {
		for _, m := range []int{0, 29, 30, 31, 59} {
			now := base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
			w, err := ComputeWindow(AutoSlot(), now, 30)
			if h == 23 && m > 30 {
				require.Error(t, err)
				continue
			}
			require.NoError(t, err)
			assert.Equal(t, 2, w.OpenAt.Day())
			assert.True(t, w.OpenAt.After(now))
		}
	}
}

func TestOpeningInstant(t *testing.T) {
	w := Window{OpenAt: time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC), SlotHour: 7}
	assert.Equal(t, time.Date(2026, 10, 18, 7, 0, 0, 0, time.UTC), w.OpeningInstant())
}

func TestSoonWindow(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 15, 30, 0, time.UTC)
	w := SoonWindow(now)
	assert.Equal(t, now.Add(time.Minute), w.OpeningInstant())
	assert.Equal(t, 9, w.SlotHour)
}
