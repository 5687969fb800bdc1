package notify

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/court-scheduler/internal/domain/booking"
)

const metricsNamespace = "courtsched"

// Metrics is a Sink that counts runs and outcomes on its own registry.
type Metrics struct {
	registry  *prometheus.Registry
	runs      *prometheus.CounterVec
	bookings  *prometheus.CounterVec
	submitLag prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "runs_total",
				Help:      "Booking runs by final status.",
			},
			[]string{"status"},
		),
		bookings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "bookings_total",
				Help:      "Requested bookings by outcome.",
			},
			[]string{"outcome"},
		),
		submitLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "submit_lag_seconds",
			Help:      "Time from booking opening to a confirmed submit.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
	m.registry.MustRegister(
		m.runs,
		m.bookings,
		m.submitLag,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Publish(_ context.Context, res booking.Result) error {
	m.runs.WithLabelValues(string(res.Status())).Inc()
	for _, e := range res.Entries {
		m.bookings.WithLabelValues(string(e.Outcome)).Inc()
		if e.Outcome == booking.OutcomeConfirmed {
			m.submitLag.Observe(submitLag(res, e).Seconds())
		}
	}
	return nil
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
