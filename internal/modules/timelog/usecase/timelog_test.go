package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	timelogadapter "timelog/internal/modules/timelog/adapter/out"
	"timelog/internal/modules/timelog/dto"
	timelogin "timelog/internal/modules/timelog/port/in"
	"timelog/internal/modules/timelog/service"
	"timelog/internal/modules/timelog/usecase"
	"timelog/internal/platform/metrics"
)

type fakeClock struct {
	values []time.Time
	idx    int
}

func (f *fakeClock) Now() time.Time {
	if f.idx >= len(f.values) {
		return f.values[len(f.values)-1]
	}
	v := f.values[f.idx]
	f.idx++
	return v
}

func newInteractor(clk *fakeClock) (timelogin.Usecase, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	store := timelogadapter.NewMemoryProjectStore()
	svc := service.NewLogService(clk, store, nil, timelogadapter.NewPrometheusSessionRecorder(m), nil)
	return usecase.NewInteractor(svc, clk, m), m
}

func TestProjectLifecycleThroughInteractor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &fakeClock{values: []time.Time{
		time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),  // created
		time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC), // activate
		time.Date(2024, 3, 4, 10, 45, 0, 0, time.UTC),
	}}
	uc, m := newInteractor(clk)

	added, err := uc.AddProject(ctx, dto.AddProjectInput{Name: "alpha"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.Active || added.TotalHours != 0 || !added.Created.Equal(clk.values[0]) {
		t.Fatalf("unexpected add output: %+v", added)
	}
	if err := uc.ActivateProject(ctx, "alpha"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := uc.DeactivateProject(ctx, "alpha"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	detail, err := uc.GetProject(ctx, "alpha")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(detail.Sessions) != 1 || detail.Sessions[0].DurationMinutes != 45 {
		t.Fatalf("unexpected sessions: %+v", detail.Sessions)
	}
	if detail.TotalHours != 0.8 {
		t.Fatalf("expected 0.8 hours, got %v", detail.TotalHours)
	}

	list, err := uc.ListProjects(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "alpha" || list[0].TotalHours != 0.8 {
		t.Fatalf("unexpected list: %+v", list)
	}

	if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("activate_project", "ok")); got != 1 {
		t.Fatalf("expected one ok activation, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsRecorded); got != 1 {
		t.Fatalf("expected one recorded session, got %v", got)
	}
}

func TestInteractorCountsFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc, m := newInteractor(&fakeClock{values: []time.Time{time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}})

	if _, err := uc.AddProject(ctx, dto.AddProjectInput{Name: "alpha"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := uc.AddProject(ctx, dto.AddProjectInput{Name: "alpha"})
	var exists *timelogin.ProjectAlreadyExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("expected conflict, got %v", err)
	}
	_, err = uc.GetProjectDuration(ctx, "ghost")
	var missing *timelogin.ProjectDoesNotExistError
	if !errors.As(err, &missing) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := uc.AddProject(ctx, dto.AddProjectInput{Name: ""}); err == nil {
		t.Fatalf("expected invalid input error")
	}

	for _, tc := range []struct {
		operation string
		outcome   string
	}{
		{"add_project", "conflict"},
		{"add_project", "invalid"},
		{"get_project_duration", "not_found"},
	} {
		if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues(tc.operation, tc.outcome)); got != 1 {
			t.Fatalf("%s/%s: expected 1, got %v", tc.operation, tc.outcome, got)
		}
	}
}

func TestInteractorWithoutMetrics(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{values: []time.Time{time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}}
	svc := service.NewLogService(clk, timelogadapter.NewMemoryProjectStore(), nil, nil, nil)
	uc := usecase.NewInteractor(svc, clk, nil)
	if err := uc.DeactivateAllProjects(context.Background()); err != nil {
		t.Fatalf("deactivate all: %v", err)
	}
}
