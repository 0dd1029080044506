package in

import (
	"context"

	"timelog/internal/modules/timelog/dto"
	timelogin "timelog/internal/modules/timelog/port/in"
)

type CLIHandler struct {
	usecase timelogin.Usecase
}

func NewCLIHandler(usecase timelogin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) AddProject(ctx context.Context, name string) (dto.ProjectOutput, error) {
	return h.usecase.AddProject(ctx, dto.AddProjectInput{Name: name})
}

func (h CLIHandler) ActivateProject(ctx context.Context, name string) error {
	return h.usecase.ActivateProject(ctx, name)
}

func (h CLIHandler) DeactivateProject(ctx context.Context, name string) error {
	return h.usecase.DeactivateProject(ctx, name)
}

func (h CLIHandler) DeactivateAllProjects(ctx context.Context) error {
	return h.usecase.DeactivateAllProjects(ctx)
}

func (h CLIHandler) ProjectDuration(ctx context.Context, name string) (float64, error) {
	return h.usecase.GetProjectDuration(ctx, name)
}

func (h CLIHandler) ListProjects(ctx context.Context) ([]dto.ProjectOutput, error) {
	return h.usecase.ListProjects(ctx)
}

func (h CLIHandler) GetProject(ctx context.Context, name string) (dto.ProjectDetailOutput, error) {
	return h.usecase.GetProject(ctx, name)
}
