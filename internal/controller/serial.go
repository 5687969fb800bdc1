package controller

import (
	"context"
	"sync"

	"github.com/example/court-scheduler/internal/domain/booking"
)

// Serial lets several callers share one controller without their commands
// overlapping. The server wraps its controller in one; today the plan
// scheduler is its only caller.
type Serial struct {
	mu   sync.Mutex
	next booking.Controller
}

func NewSerial(next booking.Controller) *Serial { return &Serial{next: next} }

func (s *Serial) Acquire(ctx context.Context, spec booking.TargetSpec) (booking.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Acquire(ctx, spec)
}

func (s *Serial) Navigate(ctx context.Context, t booking.Target, r booking.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Navigate(ctx, t, r)
}

func (s *Serial) Submit(ctx context.Context, t booking.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Submit(ctx, t)
}

func (s *Serial) Release(ctx context.Context, t booking.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Release(ctx, t)
}

// Open and Close forward to the wrapped controller when it has a session.
func (s *Serial) Open(ctx context.Context, targets int) error {
	sess, ok := s.next.(booking.Session)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.Open(ctx, targets)
}

func (s *Serial) Close(ctx context.Context) error {
	sess, ok := s.next.(booking.Session)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.Close(ctx)
}
