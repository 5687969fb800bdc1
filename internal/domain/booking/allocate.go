package booking

import "fmt"

// Allocate assigns courts to up to desired new reservations.
//
// Free capacity is len(courts)*perCourt minus every reservation in occ,
// including courts outside the preference list. When nothing is free it
// returns ErrCapacityExceeded. Otherwise courts are filled greedily in
// preference order, each up to perCourt, and the result has exactly
// min(desired, available) entries.
func Allocate(occ Occupancy, desired int, courts []CourtID, perCourt int) ([]CourtID, error) {
	if desired < 0 {
		return nil, fmt.Errorf("%w: desired count %d", ErrInvalidConfig, desired)
	}
	available := len(courts)*perCourt - occ.Total()
	if available <= 0 {
		return nil, ErrCapacityExceeded
	}

	n := min(desired, available)
	out := make([]CourtID, 0, n)
	for _, c := range courts {
		for free := perCourt - occ[c]; free > 0 && len(out) < n; free-- {
			out = append(out, c)
		}
		if len(out) == n {
			break
		}
	}
	if len(out) != n {
		// Unreachable with non-negative counts.
		return nil, fmt.Errorf("%w: got %d of %d", ErrAllocationShort, len(out), n)
	}
	return out, nil
}

// AllocateAlternating cycles through courts in preference order without
// consulting occupancy. Callers clamp n to the hard ceiling.
func AllocateAlternating(courts []CourtID, n int) []CourtID {
	if len(courts) == 0 || n <= 0 {
		return []CourtID{}
	}
	out := make([]CourtID, n)
	for i := range out {
		out[i] = courts[i%len(courts)]
	}
	return out
}
