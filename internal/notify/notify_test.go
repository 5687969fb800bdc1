package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/example/court-scheduler/internal/domain/booking"
	"github.com/example/court-scheduler/internal/logger"
)

func sampleResult() booking.Result {
	openAt := time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)
	opening := openAt.Add(-booking.Lead)
	return booking.Result{
		RunID:  "run-1",
		Mode:   booking.ModeOccupancy,
		Window: booking.Window{OpenAt: openAt, SlotHour: 7},
		Entries: []booking.Entry{
			{
				Request: booking.Request{Court: 1, SlotHour: 7},
				Target:  booking.Target{Index: 0, Name: "target-1"},
				Outcome: booking.OutcomeConfirmed,
				At:      opening.Add(40 * time.Millisecond),
			},
			{
				Request: booking.Request{Court: 2, SlotHour: 7},
				Target:  booking.Target{Index: 1, Name: "target-2"},
				Outcome: booking.OutcomeFailedNavigate,
				Detail:  "navigation failed",
				At:      opening.Add(-time.Minute),
			},
		},
		StartedAt:  opening.Add(-5 * time.Minute),
		FinishedAt: opening.Add(time.Second),
	}
}

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, _ byte, retained bool, payload interface{}) pahomqtt.Token {
	p.msgs = append(p.msgs, published{topic, retained, payload.([]byte)})
	return newToken(p.err)
}

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, NewMQTTSink(pub, "home/courts/").Publish(context.Background(), sampleResult()))

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "home/courts/runs/partial", pub.msgs[0].topic)
	assert.False(t, pub.msgs[0].retained)
	assert.Equal(t, "home/courts/runs/last", pub.msgs[1].topic)
	assert.True(t, pub.msgs[1].retained)

	var p resultPayload
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &p))
	assert.Equal(t, "partial", p.Status)
	assert.Equal(t, 1, p.Confirmed)
	assert.Equal(t, 2, p.Requested)
	require.Len(t, p.Entries, 2)
	assert.InDelta(t, 40, p.Entries[0].LagMS, 0.001)
	assert.Zero(t, p.Entries[1].LagMS)
	assert.Equal(t, "failed_navigate", p.Entries[1].Outcome)
}

func TestMQTTSinkError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	err := NewMQTTSink(pub, "x").Publish(context.Background(), sampleResult())
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.Len(t, pub.msgs, 1)
}

type fakeWriter struct {
	points []*write.Point
	err    error
}

func (w *fakeWriter) WritePoint(_ context.Context, p ...*write.Point) error {
	w.points = append(w.points, p...)
	return w.err
}

func TestInfluxSink(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewInfluxSink(w).Publish(context.Background(), sampleResult()))

	require.Len(t, w.points, 3)
	assert.Equal(t, "booking_run", w.points[0].Name())
	assert.Equal(t, "booking_outcome", w.points[1].Name())

	tags := map[string]string{}
	for _, tg := range w.points[1].TagList() {
		tags[tg.Key] = tg.Value
	}
	assert.Equal(t, map[string]string{"court": "Court1", "target": "target-1", "outcome": "confirmed"}, tags)

	fields := map[string]interface{}{}
	for _, f := range w.points[1].FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, int64(40), fields["submit_lag_ms"])

	for _, f := range w.points[2].FieldList() {
		assert.NotEqual(t, "submit_lag_ms", f.Key)
	}
}

func TestInfluxSinkError(t *testing.T) {
	err := NewInfluxSink(&fakeWriter{err: errors.New("401")}).Publish(context.Background(), sampleResult())
	assert.ErrorIs(t, err, ErrPublishFailed)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	require.NoError(t, m.Publish(context.Background(), sampleResult()))
	require.NoError(t, m.Publish(context.Background(), booking.Result{CapacityExceeded: true}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("noop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("failed_navigate")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "courtsched_submit_lag_seconds_count 1")
}

func TestFanoutJoinsErrors(t *testing.T) {
	var calls int
	ok := SinkFunc(func(context.Context, booking.Result) error { calls++; return nil })
	bad := SinkFunc(func(context.Context, booking.Result) error { calls++; return errors.New("boom") })

	err := Fanout{bad, ok, bad}.Publish(context.Background(), sampleResult())
	assert.Equal(t, 3, calls)
	assert.Len(t, multierr.Errors(err), 2)

	assert.NoError(t, Fanout{ok}.Publish(context.Background(), sampleResult()))
}

func TestPublishSurvivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var got error
	Publish(ctx, logger.Discard(), SinkFunc(func(ctx context.Context, _ booking.Result) error {
		got = ctx.Err()
		return nil
	}), sampleResult())
	assert.NoError(t, got)

	Publish(ctx, nil, nil, sampleResult())
}
