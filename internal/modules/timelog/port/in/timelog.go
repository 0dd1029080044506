package in

import (
	"context"
	"fmt"

	"timelog/internal/modules/timelog/dto"
)

type Usecase interface {
	AddProject(ctx context.Context, input dto.AddProjectInput) (dto.ProjectOutput, error)
	ActivateProject(ctx context.Context, name string) error
	DeactivateProject(ctx context.Context, name string) error
	DeactivateAllProjects(ctx context.Context) error
	GetProjectDuration(ctx context.Context, name string) (float64, error)
	GetProject(ctx context.Context, name string) (dto.ProjectDetailOutput, error)
	ListProjects(ctx context.Context) ([]dto.ProjectOutput, error)
}

// ProjectAlreadyExistsError is returned when adding a project whose name is taken.
type ProjectAlreadyExistsError struct {
	Name string
}

func (e *ProjectAlreadyExistsError) Error() string {
	return fmt.Sprintf("a project named %s already exists", e.Name)
}

// ProjectDoesNotExistError is returned when the named project is not stored.
type ProjectDoesNotExistError struct {
	Name string
}

func (e *ProjectDoesNotExistError) Error() string {
	return fmt.Sprintf("no project named %s exists", e.Name)
}
