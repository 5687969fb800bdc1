package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"

	"github.com/example/court-scheduler/internal/domain/booking"
	"github.com/example/court-scheduler/internal/logger"
	"github.com/example/court-scheduler/internal/plans"
)

type finished struct {
	id     int64
	runID  string
	status string
	err    *string
}

type fakeStore struct {
	mu       sync.Mutex
	due      []plans.Plan
	dueErr   error
	started  []int64
	finished []finished
}

func (f *fakeStore) Due(_ context.Context, _ time.Time, _ int) ([]plans.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ps := f.due
	f.due = nil
	return ps, f.dueErr
}

func (f *fakeStore) MarkStarted(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, id)
	return nil
}

func (f *fakeStore) MarkFinished(_ context.Context, id int64, runID, status string, lastErr *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, finished{id, runID, status, lastErr})
	return nil
}

func newTestScheduler(store PlanStore, exec func(context.Context, plans.Plan) booking.Result) *Scheduler {
	return &Scheduler{
		Store:    store,
		Execute:  exec,
		Interval: time.Minute,
		Clock:    testclock.NewFakeClock(time.Date(2026, 10, 18, 6, 55, 0, 0, time.UTC)),
		Logger:   logger.Discard(),
	}
}

func TestTickRunsDuePlansInOrder(t *testing.T) {
	store := &fakeStore{due: []plans.Plan{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 3, Name: "c"}}}
	var ran []int64
	s := newTestScheduler(store, func(_ context.Context, p plans.Plan) booking.Result {
		ran = append(ran, p.ID)
		switch p.ID {
		case 1:
			return booking.Result{RunID: "r1", Entries: []booking.Entry{{Outcome: booking.OutcomeConfirmed}}}
		case 2:
			return booking.Result{RunID: "r2", Err: errors.New("directory down")}
		default:
			return booking.Result{RunID: "r3", Entries: []booking.Entry{{Outcome: booking.OutcomeFailedSubmit}}}
		}
	})

	s.tick(context.Background())
	s.wg.Wait()

	assert.Equal(t, []int64{1, 2, 3}, ran)
	assert.Equal(t, []int64{1, 2, 3}, store.started)
	require.Len(t, store.finished, 3)
	assert.Equal(t, finished{id: 1, runID: "r1", status: plans.StatusDone}, store.finished[0])
	assert.Equal(t, plans.StatusFailed, store.finished[1].status)
	require.NotNil(t, store.finished[1].err)
	assert.Equal(t, "directory down", *store.finished[1].err)
	assert.Equal(t, plans.StatusFailed, store.finished[2].status)
	assert.Equal(t, "failure", *store.finished[2].err)
}

func TestTickSkipsWhileRunning(t *testing.T) {
	store := &fakeStore{due: []plans.Plan{{ID: 1, Name: "a"}}}
	release := make(chan struct{})
	var calls int
	s := newTestScheduler(store, func(context.Context, plans.Plan) booking.Result {
		calls++
		<-release
		return booking.Result{}
	})

	s.tick(context.Background())
	store.mu.Lock()
	store.due = []plans.Plan{{ID: 2, Name: "b"}}
	store.mu.Unlock()
	s.tick(context.Background())

	close(release)
	s.wg.Wait()
	assert.Equal(t, 1, calls)
	assert.Len(t, store.due, 1, "second tick must not query while a run is active")
}

func TestTickQueryError(t *testing.T) {
	store := &fakeStore{dueErr: errors.New("db down")}
	s := newTestScheduler(store, func(context.Context, plans.Plan) booking.Result {
		t.Fatal("must not execute")
		return booking.Result{}
	})

	s.tick(context.Background())
	s.wg.Wait()
	assert.True(t, s.mu.TryLock(), "lock released after a failed query")
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newTestScheduler(&fakeStore{}, func(context.Context, plans.Plan) booking.Result { return booking.Result{} })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
