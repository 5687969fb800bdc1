// Package notify publishes finished run results to outside systems. Every
// sink is best-effort: a failing sink never changes a run's outcome.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"go.uber.org/multierr"

	"github.com/example/court-scheduler/internal/domain/booking"
	"github.com/example/court-scheduler/internal/logger"
)

var ErrPublishFailed = errors.New("publish failed")

type Sink interface {
	Publish(ctx context.Context, res booking.Result) error
}

type SinkFunc func(ctx context.Context, res booking.Result) error

func (f SinkFunc) Publish(ctx context.Context, res booking.Result) error { return f(ctx, res) }

// Fanout publishes to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, res booking.Result) error {
	var errs error
	for _, s := range f {
		errs = multierr.Append(errs, s.Publish(ctx, res))
	}
	return errs
}

// Publish sends res to sink with a bounded deadline and logs any failure.
func Publish(ctx context.Context, l *log.Logger, sink Sink, res booking.Result) {
	if sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := sink.Publish(ctx, res); err != nil {
		for _, e := range multierr.Errors(err) {
			logger.OrDiscard(l).Warn("result not published", "run_id", res.RunID, "err", e)
		}
	}
}

// submitLag is how long after the opening instant an entry was decided.
func submitLag(res booking.Result, e booking.Entry) time.Duration {
	if e.At.IsZero() || res.Window.OpenAt.IsZero() {
		return 0
	}
	return e.At.Sub(res.Window.OpeningInstant())
}
