package out_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	timelogadapter "timelog/internal/modules/timelog/adapter/out"
	"timelog/internal/modules/timelog/domain"
	"timelog/internal/platform/metrics"
)

func TestPrometheusSessionRecorder(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	recorder := timelogadapter.NewPrometheusSessionRecorder(m)

	recorder.SessionClosed(context.Background(), "alpha", domain.Session{Start: base, Stop: base.Add(45 * time.Minute)})
	recorder.SessionClosed(context.Background(), "beta", domain.Session{Start: base, Stop: base.Add(10 * time.Minute)})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsRecorded))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SessionMinutes))
}
