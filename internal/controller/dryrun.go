package controller

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/example/court-scheduler/internal/domain/booking"
	"github.com/example/court-scheduler/internal/logger"
)

// DryRun walks through every phase without touching a real surface. Submit
// only logs, so nothing is ever booked.
type DryRun struct {
	log *log.Logger
	// Unavailable names targets that fail to acquire.
	Unavailable map[string]bool

	submitted []booking.Target
}

func NewDryRun(l *log.Logger) *DryRun {
	return &DryRun{log: logger.OrDiscard(l).With("component", "dryrun")}
}

func (d *DryRun) Acquire(_ context.Context, spec booking.TargetSpec) (booking.Target, error) {
	if d.Unavailable[spec.Name] {
		return booking.Target{}, fmt.Errorf("%w: target %s", booking.ErrNotFound, spec.Name)
	}
	d.log.Info("acquired", "target", spec.Name)
	return booking.Target{Index: spec.Index, Name: spec.Name, Handle: "dry-" + spec.Name}, nil
}

func (d *DryRun) Navigate(_ context.Context, t booking.Target, r booking.Request) error {
	d.log.Info("navigated", "target", t.Name, "court", r.Court, "slot_hour", r.SlotHour)
	return nil
}

func (d *DryRun) Submit(_ context.Context, t booking.Target) error {
	d.log.Warn("dry run: not submitting", "target", t.Name)
	d.submitted = append(d.submitted, t)
	return nil
}

func (d *DryRun) Release(_ context.Context, t booking.Target) error {
	d.log.Info("released", "target", t.Name)
	return nil
}

// Submitted lists the targets Submit was called for.
func (d *DryRun) Submitted() []booking.Target { return d.submitted }
