package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"k8s.io/utils/clock"

	"github.com/example/court-scheduler/internal/domain/booking"
	"github.com/example/court-scheduler/internal/logger"
	"github.com/example/court-scheduler/internal/plans"
)

// PlanStore is the part of plans.Repo the scheduler needs.
type PlanStore interface {
	Due(ctx context.Context, now time.Time, limit int) ([]plans.Plan, error)
	MarkStarted(ctx context.Context, id int64) error
	MarkFinished(ctx context.Context, id int64, runID string, status string, lastErr *string) error
}

// Scheduler polls for due plans and runs them one after another. Only one
// booking run is ever in progress: the targets are a shared resource.
type Scheduler struct {
	Store    PlanStore
	Execute  func(ctx context.Context, p plans.Plan) booking.Result
	Interval time.Duration
	Clock    clock.WithTicker
	Logger   *log.Logger

	mu sync.Mutex
	wg sync.WaitGroup
}

func (s *Scheduler) Run(ctx context.Context) error {
	if s.Clock == nil {
		s.Clock = clock.RealClock{}
	}
	s.Logger = logger.OrDiscard(s.Logger).With("component", "scheduler")

	t := s.Clock.NewTicker(s.Interval)
	defer t.Stop()

	// kick immediately
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-t.C():
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.mu.TryLock() {
		s.Logger.Debug("run in progress; skipping tick")
		return
	}

	ps, err := s.Store.Due(ctx, s.Clock.Now(), 25)
	if err != nil {
		s.mu.Unlock()
		s.Logger.Error("due plans query failed", "err", err)
		return
	}
	if len(ps) == 0 {
		s.mu.Unlock()
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.mu.Unlock()
		for _, p := range ps {
			if ctx.Err() != nil {
				return
			}
			s.runPlan(ctx, p)
		}
	}()
}

func (s *Scheduler) runPlan(ctx context.Context, p plans.Plan) {
	l := s.Logger.With("plan", p.Name, "plan_id", p.ID)
	if err := s.Store.MarkStarted(ctx, p.ID); err != nil {
		l.Error("could not mark plan started", "err", err)
		return
	}

	l.Info("starting planned run")
	res := s.Execute(ctx, p)

	status := plans.StatusDone
	var lastErr *string
	switch res.Status() {
	case booking.StatusSuccess, booking.StatusPartial, booking.StatusNoOp:
	default:
		status = plans.StatusFailed
		msg := string(res.Status())
		if res.Err != nil {
			msg = res.Err.Error()
		}
		lastErr = &msg
	}

	// The run may have been cancelled; its outcome still gets recorded.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.Store.MarkFinished(finishCtx, p.ID, res.RunID, status, lastErr); err != nil {
		l.Error("could not record plan outcome", "err", err)
		return
	}
	l.Info("planned run finished", "status", res.Status(), "confirmed", res.Confirmed())
}
