package client

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK        = "ok"
	outcomeRejected  = "rejected"
	outcomeTransport = "transport_error"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

type clientMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// WithMetrics registers request counters and latency histograms on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		if reg == nil {
			return
		}
		c.metrics = newClientMetrics(reg)
	}
}

func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	m := &clientMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recruitment",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Count of backend round trips by operation and outcome",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "recruitment",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of backend round trips",
			Buckets:   histogramBuckets,
		}, []string{"op"}),
	}
	if err := reg.Register(m.requests); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				m.requests = existing
			}
		}
	}
	if err := reg.Register(m.latency); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				m.latency = existing
			}
		}
	}
	return m
}

func (m *clientMetrics) observe(op string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.latency.With(prometheus.Labels{"op": op}).Observe(elapsed.Seconds())
}

func (m *clientMetrics) count(op, outcome string) {
	if m == nil {
		return
	}
	m.requests.With(prometheus.Labels{"op": op, "outcome": outcome}).Inc()
}

// settle counts the final outcome of a completed round trip and returns err.
func (c *Client) settle(op string, err error) error {
	c.metrics.count(op, outcomeFor(err))
	return err
}

func outcomeFor(err error) string {
	if err == nil {
		return outcomeOK
	}
	var env *ErrorEnvelope
	if errors.As(err, &env) && env.Kind == KindRejected {
		return outcomeRejected
	}
	return outcomeTransport
}
