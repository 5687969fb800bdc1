package notify

import (
	"time"

	"github.com/example/court-scheduler/internal/domain/booking"
)

type entryPayload struct {
	Index    int     `json:"index"`
	Court    int     `json:"court"`
	SlotHour int     `json:"slot_hour"`
	Target   string  `json:"target"`
	Outcome  string  `json:"outcome"`
	Detail   string  `json:"detail,omitempty"`
	LagMS    float64 `json:"submit_lag_ms,omitempty"`
}

type resultPayload struct {
	RunID            string         `json:"run_id"`
	Mode             string         `json:"mode"`
	Status           string         `json:"status"`
	OpenAt           *time.Time     `json:"open_at,omitempty"`
	Confirmed        int            `json:"confirmed"`
	Requested        int            `json:"requested"`
	CapacityExceeded bool           `json:"capacity_exceeded,omitempty"`
	Error            string         `json:"error,omitempty"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	Entries          []entryPayload `json:"entries"`
}

func newPayload(res booking.Result) resultPayload {
	p := resultPayload{
		RunID:            res.RunID,
		Mode:             string(res.Mode),
		Status:           string(res.Status()),
		Confirmed:        res.Confirmed(),
		Requested:        len(res.Entries),
		CapacityExceeded: res.CapacityExceeded,
		StartedAt:        res.StartedAt,
		FinishedAt:       res.FinishedAt,
		Entries:          make([]entryPayload, 0, len(res.Entries)),
	}
	if !res.Window.OpenAt.IsZero() {
		openAt := res.Window.OpenAt
		p.OpenAt = &openAt
	}
	if res.Err != nil {
		p.Error = res.Err.Error()
	}
	for i, e := range res.Entries {
		ep := entryPayload{
			Index:    i,
			Court:    int(e.Request.Court),
			SlotHour: e.Request.SlotHour,
			Target:   e.Target.Name,
			Outcome:  string(e.Outcome),
			Detail:   e.Detail,
		}
		if e.Outcome == booking.OutcomeConfirmed {
			ep.LagMS = float64(submitLag(res, e)) / float64(time.Millisecond)
		}
		p.Entries = append(p.Entries, ep)
	}
	return p
}
