package usecase

import (
	"context"
	"errors"

	"timelog/internal/modules/timelog/domain"
	"timelog/internal/modules/timelog/dto"
	timelogin "timelog/internal/modules/timelog/port/in"
	"timelog/internal/modules/timelog/service"
	"timelog/internal/platform/clock"
	apperrors "timelog/internal/platform/errors"
	"timelog/internal/platform/metrics"
)

type Interactor struct {
	svc     *service.LogService
	clock   clock.Clock
	metrics *metrics.Metrics
}

// NewInteractor wires the log service behind the inbound port. m may be nil.
func NewInteractor(svc *service.LogService, clk clock.Clock, m *metrics.Metrics) timelogin.Usecase {
	return &Interactor{svc: svc, clock: clk, metrics: m}
}

func (i *Interactor) AddProject(ctx context.Context, input dto.AddProjectInput) (dto.ProjectOutput, error) {
	project := domain.NewProject(input.Name, clock.NowMillis(i.clock))
	err := i.svc.AddProject(ctx, project)
	i.observe("add_project", err)
	if err != nil {
		return dto.ProjectOutput{}, err
	}
	return toOutput(project), nil
}

func (i *Interactor) ActivateProject(ctx context.Context, name string) error {
	err := i.svc.ActivateProject(ctx, name)
	i.observe("activate_project", err)
	return err
}

func (i *Interactor) DeactivateProject(ctx context.Context, name string) error {
	err := i.svc.DeactivateProject(ctx, name)
	i.observe("deactivate_project", err)
	return err
}

func (i *Interactor) DeactivateAllProjects(ctx context.Context) error {
	err := i.svc.DeactivateAllProjects(ctx)
	i.observe("deactivate_all_projects", err)
	return err
}

func (i *Interactor) GetProjectDuration(ctx context.Context, name string) (float64, error) {
	hours, err := i.svc.GetProjectDuration(ctx, name)
	i.observe("get_project_duration", err)
	return hours, err
}

func (i *Interactor) GetProject(ctx context.Context, name string) (dto.ProjectDetailOutput, error) {
	project, err := i.svc.GetProject(ctx, name)
	i.observe("get_project", err)
	if err != nil {
		return dto.ProjectDetailOutput{}, err
	}
	sessions := make([]dto.SessionOutput, 0, len(project.Sessions))
	for _, session := range project.Sessions {
		sessions = append(sessions, dto.SessionOutput{
			Start:           session.Start,
			Stop:            session.Stop,
			DurationMinutes: session.Duration(),
		})
	}
	return dto.ProjectDetailOutput{
		Name:                project.Name,
		Created:             project.Created,
		Active:              project.Active,
		CurrentSessionStart: project.CurrentSessionStart,
		Sessions:            sessions,
		TotalHours:          project.TotalHours(),
	}, nil
}

func (i *Interactor) ListProjects(ctx context.Context) ([]dto.ProjectOutput, error) {
	projects, err := i.svc.ListProjects(ctx)
	i.observe("list_projects", err)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ProjectOutput, 0, len(projects))
	for _, project := range projects {
		out = append(out, toOutput(project))
	}
	return out, nil
}

func (i *Interactor) observe(operation string, err error) {
	if i.metrics == nil {
		return
	}
	i.metrics.OperationsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

func outcome(err error) string {
	var (
		exists  *timelogin.ProjectAlreadyExistsError
		missing *timelogin.ProjectDoesNotExistError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &missing):
		return "not_found"
	case errors.As(err, &exists):
		return "conflict"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func toOutput(project domain.Project) dto.ProjectOutput {
	return dto.ProjectOutput{
		Name:       project.Name,
		Created:    project.Created,
		Active:     project.Active,
		TotalHours: project.TotalHours(),
	}
}
