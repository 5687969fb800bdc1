package notify

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/domain/booking"
)

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink writes one booking_outcome point per entry and one booking_run
// point per result.
type InfluxSink struct {
	w pointWriter
}

func NewInfluxSink(w pointWriter) *InfluxSink { return &InfluxSink{w: w} }

// DialInflux returns a blocking writer for cfg's bucket and a close func.
func DialInflux(ctx context.Context, cfg config.InfluxConfig) (api.WriteAPIBlocking, func(), error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	ok, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("%w: influx ping: %w", ErrPublishFailed, err)
	}
	if !ok {
		client.Close()
		return nil, nil, fmt.Errorf("%w: influx not healthy", ErrPublishFailed)
	}
	return client.WriteAPIBlocking(cfg.Org, cfg.Bucket), client.Close, nil
}

func (s *InfluxSink) Publish(ctx context.Context, res booking.Result) error {
	points := make([]*write.Point, 0, len(res.Entries)+1)
	points = append(points, write.NewPoint(
		"booking_run",
		map[string]string{
			"mode":   string(res.Mode),
			"status": string(res.Status()),
		},
		map[string]interface{}{
			"run_id":      res.RunID,
			"requested":   len(res.Entries),
			"confirmed":   res.Confirmed(),
			"duration_ms": res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
		},
		res.FinishedAt,
	))
	for _, e := range res.Entries {
		fields := map[string]interface{}{
			"run_id":    res.RunID,
			"slot_hour": e.Request.SlotHour,
		}
		if e.Outcome == booking.OutcomeConfirmed {
			fields["submit_lag_ms"] = submitLag(res, e).Milliseconds()
		}
		at := e.At
		if at.IsZero() {
			at = res.FinishedAt
		}
		points = append(points, write.NewPoint(
			"booking_outcome",
			map[string]string{
				"court":   e.Request.Court.String(),
				"target":  e.Target.Name,
				"outcome": string(e.Outcome),
			},
			fields,
			at,
		))
	}
	if err := s.w.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("%w: influx: %w", ErrPublishFailed, err)
	}
	return nil
}
