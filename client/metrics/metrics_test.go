package metrics

import (
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestTransport_CountsHops(t *testing.T) {
	m := New(prometheus.NewRegistry(), "")

	statuses := []int{http.StatusFound, http.StatusOK}
	var i int
	rt := m.Transport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		code := statuses[i]
		i++
		return &http.Response{StatusCode: code, Body: http.NoBody, Request: r}, nil
	}))

	for range statuses {
		req, _ := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://example.com", nil)
		if _, err := rt.RoundTrip(req); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		code string
		exp  float64
	}{
		{name: "redirect hop", code: "3xx", exp: 1},
		{name: "final hop", code: "2xx", exp: 1},
		{name: "no errors", code: "error", exp: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testutil.ToFloat64(m.roundTrips.With(prometheus.Labels{"method": http.MethodGet, "code": tt.code}))
			if got != tt.exp {
				t.Errorf("exp %v, got %v", tt.exp, got)
			}
		})
	}

	if n := testutil.CollectAndCount(m.latency); n != 1 {
		t.Errorf("exp 1 latency series, got %d", n)
	}
}

func TestTransport_CountsErrors(t *testing.T) {
	m := New(prometheus.NewRegistry(), "test")
	rt := m.Transport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("boom")
	}))

	req, _ := http.NewRequestWithContext(t.Context(), http.MethodPost, "http://example.com", nil)
	if _, err := rt.RoundTrip(req); err == nil {
		t.Fatal("expected error")
	}

	got := testutil.ToFloat64(m.roundTrips.With(prometheus.Labels{"method": http.MethodPost, "code": "error"}))
	if got != 1 {
		t.Errorf("exp 1, got %v", got)
	}
}

func TestObserveExecution(t *testing.T) {
	m := New(prometheus.NewRegistry(), "")

	m.ObserveExecution(OutcomeOK, 2)
	m.ObserveExecution(OutcomeOK, 0)
	m.ObserveExecution("redirect", 10)

	if got := testutil.ToFloat64(m.executions.WithLabelValues(OutcomeOK)); got != 2 {
		t.Errorf("exp 2 ok executions, got %v", got)
	}
	if got := testutil.ToFloat64(m.executions.WithLabelValues("redirect")); got != 1 {
		t.Errorf("exp 1 redirect failure, got %v", got)
	}
	if n := testutil.CollectAndCount(m.redirects); n != 1 {
		t.Errorf("exp 1 histogram, got %d", n)
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		100: "1xx",
		204: "2xx",
		308: "3xx",
		404: "4xx",
		503: "5xx",
		42:  "unknown",
	}
	for code, exp := range tests {
		if got := statusClass(code); got != exp {
			t.Errorf("statusClass(%d): exp %q, got %q", code, exp, got)
		}
	}
}
