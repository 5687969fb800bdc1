package booking

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate(t *testing.T) {
	tests := []struct {
		name     string
		occ      Occupancy
		desired  int
		courts   []CourtID
		perCourt int
		want     []CourtID
		wantErr  error
	}{
		{
			name:     "one slot left goes to second court",
			occ:      Occupancy{1: 2, 2: 1},
			desired:  3,
			courts:   []CourtID{1, 2},
			perCourt: 2,
			want:     []CourtID{2},
		},
		{
			name:     "empty occupancy fills first court first",
			occ:      Occupancy{},
			desired:  3,
			courts:   []CourtID{1, 2},
			perCourt: 2,
			want:     []CourtID{1, 1, 2},
		},
		{
			name:     "preference order is honoured",
			occ:      Occupancy{},
			desired:  3,
			courts:   []CourtID{2, 1},
			perCourt: 2,
			want:     []CourtID{2, 2, 1},
		},
		{
			name:     "desired zero yields empty",
			occ:      Occupancy{1: 1},
			desired:  0,
			courts:   []CourtID{1, 2},
			perCourt: 2,
			want:     []CourtID{},
		},
		{
			name:     "full occupancy is capacity exceeded",
			occ:      Occupancy{1: 2, 2: 2},
			desired:  1,
			courts:   []CourtID{1, 2},
			perCourt: 2,
			wantErr:  ErrCapacityExceeded,
		},
		{
			name:     "desired zero with no capacity is still capacity exceeded",
			occ:      Occupancy{1: 2, 2: 2},
			desired:  0,
			courts:   []CourtID{1, 2},
			perCourt: 2,
			wantErr:  ErrCapacityExceeded,
		},
		{
			name:     "unknown court counts against available",
			occ:      Occupancy{3: 3},
			desired:  4,
			courts:   []CourtID{1, 2},
			perCourt: 2,
			want:     []CourtID{1},
		},
		{
			name:     "over-booked court is skipped",
			occ:      Occupancy{1: 3},
			desired:  2,
			courts:   []CourtID{1, 2},
			perCourt: 2,
			want:     []CourtID{2},
		},
		{
			name:     "negative desired is rejected",
			occ:      Occupancy{},
			desired:  -1,
			courts:   []CourtID{1},
			perCourt: 2,
			wantErr:  ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Allocate(tt.occ, tt.desired, tt.courts, tt.perCourt)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Allocate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAllocateShortPostCondition(t *testing.T) {
	// A negative count from a misbehaving directory inflates available past
	// what the listed courts can hold.
	_, err := Allocate(Occupancy{1: 2, 9: -2}, 2, []CourtID{1}, 2)
	require.ErrorIs(t, err, ErrAllocationShort)
}

func TestAllocateProperties(t *testing.T) {
	courts := []CourtID{1, 2, 3}
	const perCourt = 2
	for c1 := 0; c1 <= perCourt; c1++ {
		for c2 := 0; c2 <= perCourt; c2++ {
			for c3 := 0; c3 <= perCourt; c3++ {
				for desired := 0; desired <= 7; desired++ {
					occ := Occupancy{1: c1, 2: c2, 3: c3}
					available := len(courts)*perCourt - occ.Total()

					got, err := Allocate(occ, desired, courts, perCourt)
					if available <= 0 {
						require.ErrorIs(t, err, ErrCapacityExceeded)
						continue
					}
					require.NoError(t, err)
					require.Len(t, got, min(desired, available))

					again, _ := Allocate(occ, desired, courts, perCourt)
					require.Equal(t, got, again, "allocation must be deterministic")

					counts := map[CourtID]int{}
					for _, c := range got {
						counts[c]++
					}
					for c, n := range counts {
						assert.LessOrEqual(t, n, perCourt-occ[c], "court %d over-allocated", c)
					}
				}
			}
		}
	}
}

func TestAllocateAlternating(t *testing.T) {
	assert.Equal(t, []CourtID{1, 2, 1, 2}, AllocateAlternating([]CourtID{1, 2}, 4))
	assert.Equal(t, []CourtID{2, 1, 2}, AllocateAlternating([]CourtID{2, 1}, 3))
	assert.Empty(t, AllocateAlternating([]CourtID{1, 2}, 0))
	assert.Empty(t, AllocateAlternating(nil, 3))
}
