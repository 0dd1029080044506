// Package metrics holds the Prometheus collectors for timelog. Collectors are
// registered on the registerer passed to New so tests can use a private registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// OperationsTotal counts log operations by operation and outcome (ok, not_found, conflict, error).
	OperationsTotal *prometheus.CounterVec

	// SessionsRecorded counts closed sessions.
	SessionsRecorded prometheus.Counter

	// SessionMinutes observes closed session lengths in whole minutes.
	SessionMinutes prometheus.Histogram

	// HTTPRequestsTotal counts HTTP requests by method, route and status code.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration observes HTTP handler latency in seconds.
	HTTPRequestDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OperationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timelog_operations_total",
				Help: "Log operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		SessionsRecorded: f.NewCounter(
			prometheus.CounterOpts{
				Name: "timelog_sessions_recorded_total",
				Help: "Work sessions closed and appended to a project",
			},
		),
		SessionMinutes: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "timelog_session_minutes",
				Help:    "Length of closed work sessions in minutes",
				Buckets: []float64{5, 15, 30, 60, 90, 120, 240, 480},
			},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timelog_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "timelog_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "route"},
		),
	}
}
