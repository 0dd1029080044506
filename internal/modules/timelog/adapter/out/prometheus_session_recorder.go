package out

import (
	"context"

	"timelog/internal/modules/timelog/domain"
	timelogout "timelog/internal/modules/timelog/port/out"
	"timelog/internal/platform/metrics"
)

// PrometheusSessionRecorder counts closed sessions and observes their length.
type PrometheusSessionRecorder struct {
	metrics *metrics.Metrics
}

var _ timelogout.SessionRecorder = (*PrometheusSessionRecorder)(nil)

func NewPrometheusSessionRecorder(m *metrics.Metrics) *PrometheusSessionRecorder {
	return &PrometheusSessionRecorder{metrics: m}
}

func (r *PrometheusSessionRecorder) SessionClosed(_ context.Context, _ string, session domain.Session) {
	r.metrics.SessionsRecorded.Inc()
	r.metrics.SessionMinutes.Observe(float64(session.Duration()))
}
