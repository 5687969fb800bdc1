package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"k8s.io/utils/clock"

	"github.com/example/court-scheduler/internal/domain/booking"
	"github.com/example/court-scheduler/internal/logger"
	"github.com/example/court-scheduler/internal/scheduler"
)

// ReleaseTimeout bounds teardown, which runs even after the run's context
// has been cancelled.
const ReleaseTimeout = 30 * time.Second

type State int

const (
	StateIdle State = iota
	StateAllocating
	StateAcquiring
	StateNavigating
	StateWaiting
	StateSubmitting
	StateClosing
	StateDone
)

var stateNames = [...]string{"idle", "allocating", "acquiring", "navigating", "waiting", "submitting", "closing", "done"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Option func(*Orchestrator)

func WithLogger(l *log.Logger) Option { return func(o *Orchestrator) { o.log = logger.OrDiscard(l) } }

func WithClock(c clock.Clock) Option { return func(o *Orchestrator) { o.clock = c } }

// WithWindow replaces the computed scheduling window.
func WithWindow(w booking.Window) Option { return func(o *Orchestrator) { o.window = &w } }

// WithObserver is called on every state transition.
func WithObserver(fn func(from, to State)) Option { return func(o *Orchestrator) { o.observe = fn } }

func WithRunID(fn func() string) Option { return func(o *Orchestrator) { o.newID = fn } }

// Orchestrator runs one booking at a time: allocate, acquire and navigate the
// targets, wait for the opening instant, submit, then release everything.
// Every controller command is issued from the calling goroutine, one at a
// time, in request order.
type Orchestrator struct {
	cfg     booking.RunConfig
	dir     booking.Directory
	ctl     booking.Controller
	log     *log.Logger
	clock   clock.Clock
	window  *booking.Window
	observe func(from, to State)
	newID   func() string

	state   State
	session booking.Session
}

// New builds an orchestrator. dir may be nil when cfg uses ModeAlternate.
func New(cfg booking.RunConfig, dir booking.Directory, ctl booking.Controller, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:   cfg.WithDefaults(),
		dir:   dir,
		ctl:   ctl,
		log:   logger.Discard(),
		clock: clock.RealClock{},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) State() State { return o.state }

// Run performs a full booking run. It always returns a result; only a
// directory failure (or an unusable window) aborts it before acquisition.
func (o *Orchestrator) Run(ctx context.Context) booking.Result {
	res, l := o.begin()

	o.transition(l, StateAllocating)
	win, err := o.resolveWindow()
	if err != nil {
		res.Err = err
		return o.finish(l, res)
	}
	res.Window = win

	courts, err := o.allocate(ctx, l)
	switch {
	case errors.Is(err, booking.ErrCapacityExceeded):
		res.CapacityExceeded = true
		l.Info("no more reservations can be made right now")
		return o.finish(l, res)
	case err != nil:
		res.Err = err
		l.Error("run aborted", "err", err)
		return o.finish(l, res)
	case len(courts) == 0:
		l.Info("nothing to book")
		return o.finish(l, res)
	}

	res.Entries = make([]booking.Entry, len(courts))
	for i, c := range courts {
		res.Entries[i] = o.newEntry(i, booking.Request{Court: c, SlotHour: win.SlotHour})
	}
	l.Info("booking", "slots", len(courts), "slot_hour", win.SlotHour, "open_at", win.OpenAt.Format(time.RFC3339))

	o.execute(ctx, l, &res, true)
	return o.finish(l, res)
}

// Confirm submits on n targets that were already brought to the booking
// screen by hand: no allocation and no navigation.
func (o *Orchestrator) Confirm(ctx context.Context, n int) booking.Result {
	res, l := o.begin()

	win, err := o.resolveWindow()
	if err != nil {
		res.Err = err
		return o.finish(l, res)
	}
	res.Window = win

	n = min(n, o.cfg.Ceiling())
	if n <= 0 {
		l.Info("nothing to confirm")
		return o.finish(l, res)
	}
	res.Entries = make([]booking.Entry, n)
	for i := range res.Entries {
		res.Entries[i] = o.newEntry(i, booking.Request{SlotHour: win.SlotHour})
	}

	o.execute(ctx, l, &res, false)
	return o.finish(l, res)
}

func (o *Orchestrator) begin() (booking.Result, *log.Logger) {
	o.state = StateIdle
	o.session = nil
	res := booking.Result{
		RunID:     o.newID(),
		Mode:      o.cfg.Mode,
		StartedAt: o.clock.Now(),
	}
	return res, o.log.With("run_id", res.RunID)
}

func (o *Orchestrator) finish(l *log.Logger, res booking.Result) booking.Result {
	o.transition(l, StateDone)
	res.FinishedAt = o.clock.Now()
	l.Info("run finished", "status", res.Status(), "confirmed", res.Confirmed(), "requested", len(res.Entries))
	return res
}

func (o *Orchestrator) transition(l *log.Logger, to State) {
	from := o.state
	o.state = to
	l.Debug("state", "from", from, "to", to)
	if o.observe != nil {
		o.observe(from, to)
	}
}

func (o *Orchestrator) resolveWindow() (booking.Window, error) {
	if o.window != nil {
		return *o.window, nil
	}
	return booking.ComputeWindow(o.cfg.Slot, o.clock.Now().In(o.cfg.Location), o.cfg.CutoffMinute)
}

func (o *Orchestrator) allocate(ctx context.Context, l *log.Logger) ([]booking.CourtID, error) {
	desired := min(o.cfg.DesiredCount, o.cfg.Ceiling())
	if o.cfg.Mode == booking.ModeAlternate {
		return booking.AllocateAlternating(o.cfg.Courts, desired), nil
	}
	if o.dir == nil {
		return nil, fmt.Errorf("%w: no directory configured", booking.ErrDirectoryUnavailable)
	}

	occ, err := o.dir.Occupancy(ctx, o.cfg.ResourceGroup)
	if err != nil {
		if !errors.Is(err, booking.ErrDirectoryUnavailable) {
			err = fmt.Errorf("%w: %w", booking.ErrDirectoryUnavailable, err)
		}
		return nil, err
	}
	l.Info("existing bookings", "group", o.cfg.ResourceGroup, "total", occ.Total())
	return booking.Allocate(occ, desired, o.cfg.Courts, o.cfg.PerCourtCapacity)
}

func (o *Orchestrator) newEntry(i int, req booking.Request) booking.Entry {
	return booking.Entry{
		Request: req,
		Target:  booking.Target{Index: i, Name: o.cfg.TargetName(i)},
		Outcome: booking.OutcomePending,
	}
}

// execute carries the entries through the per-target phases. working holds
// the indices of entries that have not failed yet and only ever shrinks.
func (o *Orchestrator) execute(ctx context.Context, l *log.Logger, res *booking.Result, navigate bool) {
	working := o.acquireAll(ctx, l, res)
	if navigate && len(working) > 0 {
		working = o.navigateAll(ctx, l, res, working)
	}

	switch {
	case len(working) == 0:
		l.Warn("no targets survived; skipping the wait")
	case o.wait(ctx, l, res):
		o.submitAll(ctx, l, res, working)
	default:
		for _, i := range working {
			o.settle(l, res, i, booking.OutcomeCancelled, ctx.Err())
		}
	}

	o.closeAll(ctx, l, res)
}

func (o *Orchestrator) acquireAll(ctx context.Context, l *log.Logger, res *booking.Result) []int {
	o.transition(l, StateAcquiring)

	if sess, ok := o.ctl.(booking.Session); ok {
		if err := sess.Open(ctx, len(res.Entries)); err != nil {
			l.Error("could not start target session", "err", err)
			for i := range res.Entries {
				o.settle(l, res, i, booking.OutcomeFailedAcquire, err)
			}
			return nil
		}
		o.session = sess
	}

	working := make([]int, 0, len(res.Entries))
	for i := range res.Entries {
		if err := ctx.Err(); err != nil {
			o.settle(l, res, i, booking.OutcomeCancelled, err)
			continue
		}
		e := &res.Entries[i]
		t, err := o.acquireOne(ctx, l, booking.TargetSpec{Index: i, Name: e.Target.Name})
		if err != nil {
			outcome := booking.OutcomeFailedAcquire
			if ctx.Err() != nil {
				outcome = booking.OutcomeCancelled
			}
			o.settle(l, res, i, outcome, err)
			continue
		}
		t.Index = i
		if t.Name == "" {
			t.Name = e.Target.Name
		}
		e.Target = t
		e.Acquired = true
		working = append(working, i)
	}
	return working
}

func (o *Orchestrator) acquireOne(ctx context.Context, l *log.Logger, spec booking.TargetSpec) (booking.Target, error) {
	var err error
	for attempt := 1; attempt <= o.cfg.AcquireAttempts; attempt++ {
		var t booking.Target
		t, err = o.ctl.Acquire(ctx, spec)
		if err == nil {
			return t, nil
		}
		l.Warn("acquire failed", "target", spec.Name, "attempt", attempt, "of", o.cfg.AcquireAttempts, "err", err)
		if attempt == o.cfg.AcquireAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return booking.Target{}, ctx.Err()
		case <-o.clock.After(o.cfg.RetryDelay):
		}
	}
	return booking.Target{}, err
}

func (o *Orchestrator) navigateAll(ctx context.Context, l *log.Logger, res *booking.Result, working []int) []int {
	o.transition(l, StateNavigating)

	next := make([]int, 0, len(working))
	for _, i := range working {
		if err := ctx.Err(); err != nil {
			o.settle(l, res, i, booking.OutcomeCancelled, err)
			continue
		}
		e := &res.Entries[i]
		l.Info("navigating", "index", i, "target", e.Target.Name, "court", e.Request.Court, "slot_hour", e.Request.SlotHour)
		if err := o.ctl.Navigate(ctx, e.Target, e.Request); err != nil {
			o.settle(l, res, i, booking.OutcomeFailedNavigate, err)
			continue
		}
		next = append(next, i)
	}
	return next
}

// wait blocks all surviving targets together until booking opens. It
// reports false when the run was cancelled.
func (o *Orchestrator) wait(ctx context.Context, l *log.Logger, res *booking.Result) bool {
	o.transition(l, StateWaiting)
	l.Info("waiting for booking to open", "opens_at", res.Window.OpeningInstant().Format(time.RFC3339))

	st := scheduler.WaitUntil(ctx, o.clock, res.Window.OpenAt, scheduler.Polling{
		Long:            o.cfg.LongInterval,
		Short:           o.cfg.ShortInterval,
		SwitchThreshold: o.cfg.SwitchThreshold,
	})
	l.Debug("wait finished", "long_polls", st.LongPolls, "short_polls", st.ShortPolls, "cancelled", st.Cancelled)
	return !st.Cancelled
}

func (o *Orchestrator) submitAll(ctx context.Context, l *log.Logger, res *booking.Result, working []int) {
	o.transition(l, StateSubmitting)
	for _, i := range working {
		if err := o.ctl.Submit(ctx, res.Entries[i].Target); err != nil {
			o.settle(l, res, i, booking.OutcomeFailedSubmit, err)
			continue
		}
		o.settle(l, res, i, booking.OutcomeConfirmed, nil)
	}
}

// closeAll releases every acquired target, failed or not. Errors are logged
// and never change the result.
func (o *Orchestrator) closeAll(ctx context.Context, l *log.Logger, res *booking.Result) {
	o.transition(l, StateClosing)

	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ReleaseTimeout)
	defer cancel()

	var errs error
	for i := range res.Entries {
		e := &res.Entries[i]
		if !e.Acquired {
			continue
		}
		if err := o.ctl.Release(relCtx, e.Target); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: %w", booking.ErrTeardownFailed, e.Target.Name, err))
		}
	}
	if o.session != nil {
		if err := o.session.Close(relCtx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: session: %w", booking.ErrTeardownFailed, err))
		}
		o.session = nil
	}
	if errs != nil {
		l.Warn("teardown incomplete", "err", errs)
	}
}

func (o *Orchestrator) settle(l *log.Logger, res *booking.Result, i int, outcome booking.Outcome, err error) {
	e := &res.Entries[i]
	e.Outcome = outcome
	e.At = o.clock.Now()
	if err != nil {
		e.Detail = err.Error()
	}
	if outcome == booking.OutcomeConfirmed {
		l.Info("booking confirmed", "index", i, "target", e.Target.Name, "court", e.Request.Court)
		return
	}
	l.Warn("target dropped", "index", i, "target", e.Target.Name, "outcome", outcome, "err", err)
}
