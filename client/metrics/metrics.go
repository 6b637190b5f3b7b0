// Package metrics records Prometheus metrics for outbound requests.
//
// A [Metrics] value owns its collectors and registers them with the
// Registerer it was built from, so several clients can share one
// registry as long as each uses a distinct namespace.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "reqflow"

// Outcome labels for executions that produced a response.
const OutcomeOK = "ok"

// Metrics holds the collectors for one client.
type Metrics struct {
	roundTrips *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	executions *prometheus.CounterVec
	redirects  prometheus.Histogram
}

// New builds and registers the collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		roundTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "round_trips_total",
				Help:      "Total wire exchanges by method and status class, one per redirect hop",
			},
			[]string{"method", "code"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "round_trip_duration_seconds",
				Help:      "Time until response headers arrive for a single hop",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Total executions by outcome, either ok or the error kind",
			},
			[]string{"outcome"},
		),
		redirects: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "redirects_per_execution",
				Help:      "Redirects followed per successful execution",
				Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
			},
		),
	}
}

// Transport wraps next so each hop is counted and timed.
func (m *Metrics) Transport(next http.RoundTripper) http.RoundTripper {
	return &transport{m: m, next: next}
}

// ObserveExecution records the result of one execution. outcome is
// [OutcomeOK] or an error kind name.
func (m *Metrics) ObserveExecution(outcome string, redirects int) {
	m.executions.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.redirects.Observe(float64(redirects))
	}
}

type transport struct {
	m    *Metrics
	next http.RoundTripper
}

func (t *transport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(r)
	t.m.latency.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())

	code := "error"
	if err == nil {
		code = statusClass(resp.StatusCode)
	}
	t.m.roundTrips.WithLabelValues(r.Method, code).Inc()

	return resp, err
}

// CloseIdleConnections forwards to the wrapped transport.
func (t *transport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if c, ok := t.next.(closeIdler); ok {
		c.CloseIdleConnections()
	}
}

func statusClass(code int) string {
	if code < 100 || code > 999 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
