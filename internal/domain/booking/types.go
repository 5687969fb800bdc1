package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CourtID identifies one bookable court. Zero means "unspecified" and only
// appears in confirm-only runs, where the target was prepared by hand.
type CourtID int

func (c CourtID) String() string {
	if c == 0 {
		return "any"
	}
	return "Court" + strconv.Itoa(int(c))
}

// Occupancy is the number of active reservations the requester holds per court.
type Occupancy map[CourtID]int

func (o Occupancy) Total() int {
	n := 0
	for _, v := range o {
		n += v
	}
	return n
}

// Request is one reservation to make: a court at a slot hour.
type Request struct {
	Court    CourtID
	SlotHour int
}

func (r Request) String() string {
	return fmt.Sprintf("%s@%02d:00", r.Court, r.SlotHour)
}

// Target is an opaque handle for one automation surface. Index is the
// position in the run's request list; Handle is whatever the controller
// needs to address the surface again.
type Target struct {
	Index  int
	Name   string
	Handle string
}

// TargetSpec is what the orchestrator asks a controller to acquire.
type TargetSpec struct {
	Index int
	Name  string
}

type Outcome string

const (
	OutcomePending        Outcome = "pending"
	OutcomeConfirmed      Outcome = "confirmed"
	OutcomeFailedAcquire  Outcome = "failed_acquire"
	OutcomeFailedNavigate Outcome = "failed_navigate"
	OutcomeFailedSubmit   Outcome = "failed_submit"
	OutcomeCancelled      Outcome = "cancelled"
)

func (o Outcome) Failed() bool {
	switch o {
	case OutcomeFailedAcquire, OutcomeFailedNavigate, OutcomeFailedSubmit, OutcomeCancelled:
		return true
	}
	return false
}

// Entry records the fate of one request.
type Entry struct {
	Request  Request
	Target   Target
	Outcome  Outcome
	Detail   string
	Acquired bool
	// At is when the outcome was decided; for confirmed entries it is the
	// submit instant.
	At time.Time
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailure Status = "failure"
	StatusNoOp    Status = "noop"
	StatusAborted Status = "aborted"
)

// Result is the externally visible outcome of one run: one entry per request,
// in allocation order.
type Result struct {
	RunID      string
	Mode       AllocationMode
	Window     Window
	Entries    []Entry
	StartedAt  time.Time
	FinishedAt time.Time

	// CapacityExceeded is set when the allocator found no free slot. It is a
	// normal outcome and yields StatusNoOp.
	CapacityExceeded bool
	// Err is set only when the run aborted before acquisition.
	Err error
}

func (r Result) Confirmed() int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == OutcomeConfirmed {
			n++
		}
	}
	return n
}

func (r Result) Status() Status {
	if r.Err != nil {
		return StatusAborted
	}
	if len(r.Entries) == 0 {
		return StatusNoOp
	}
	switch c := r.Confirmed(); {
	case c == len(r.Entries):
		return StatusSuccess
	case c > 0:
		return StatusPartial
	default:
		return StatusFailure
	}
}

// SlotHour is either a fixed hour of day or "auto" (derived from the clock
// at run start).
type SlotHour struct {
	Hour int
	Auto bool
}

func AutoSlot() SlotHour       { return SlotHour{Auto: true} }
func FixedSlot(h int) SlotHour { return SlotHour{Hour: h} }

func (s SlotHour) String() string {
	if s.Auto {
		return "auto"
	}
	return strconv.Itoa(s.Hour)
}

// ParseSlotHour accepts "auto" (or an empty string) or an hour 0-23.
func ParseSlotHour(s string) (SlotHour, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "auto" {
		return AutoSlot(), nil
	}
	h, err := strconv.Atoi(s)
	if err != nil {
		return SlotHour{}, fmt.Errorf("slot hour %q: want 0-23 or auto", s)
	}
	if h < 0 || h > 23 {
		return SlotHour{}, fmt.Errorf("%w: %d", ErrSlotHourOutOfRange, h)
	}
	return FixedSlot(h), nil
}
