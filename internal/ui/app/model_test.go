package app

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"timelog/internal/modules/timelog/dto"
	"timelog/internal/ui/components"
	projectsview "timelog/internal/ui/views/projects"
)

func projectsLoaded(projects []dto.ProjectOutput) tea.Msg {
	return projectsview.ProjectsLoadedMsg{Projects: projects}
}

type fakeLog struct {
	added       []string
	activated   []string
	deactivated []string
	stoppedAll  int
}

func (f *fakeLog) AddProject(_ context.Context, name string) (dto.ProjectOutput, error) {
	f.added = append(f.added, name)
	return dto.ProjectOutput{Name: name}, nil
}
func (f *fakeLog) ActivateProject(_ context.Context, name string) error {
	f.activated = append(f.activated, name)
	return nil
}
func (f *fakeLog) DeactivateProject(_ context.Context, name string) error {
	f.deactivated = append(f.deactivated, name)
	return nil
}
func (f *fakeLog) DeactivateAllProjects(context.Context) error {
	f.stoppedAll++
	return nil
}
func (f *fakeLog) ListProjects(context.Context) ([]dto.ProjectOutput, error) {
	return []dto.ProjectOutput{{Name: "alpha", Active: true}}, nil
}
func (f *fakeLog) GetProject(_ context.Context, name string) (dto.ProjectDetailOutput, error) {
	return dto.ProjectDetailOutput{Name: name}, nil
}

func submit(t *testing.T, m Model, input string) Model {
	t.Helper()
	next, cmd := m.Update(components.PaletteSubmitMsg{Input: input})
	if cmd != nil {
		msg := cmd()
		if _, ok := msg.(actionDoneMsg); !ok {
			t.Fatalf("expected actionDoneMsg, got %T", msg)
		}
		next, _ = next.Update(msg)
	}
	return next.(Model)
}

func TestPaletteCommands(t *testing.T) {
	t.Parallel()
	log := &fakeLog{}
	m := NewModel(log)

	m = submit(t, m, "project:add Client Work")
	if len(log.added) != 1 || log.added[0] != "Client Work" {
		t.Fatalf("expected add of full name, got %v", log.added)
	}
	if m.status != "added Client Work" {
		t.Fatalf("unexpected status: %q", m.status)
	}

	m = submit(t, m, "project:deactivate-all")
	if log.stoppedAll != 1 {
		t.Fatalf("expected deactivate all")
	}

	m = submit(t, m, "project:add")
	if m.status != "usage: project:add <name>" {
		t.Fatalf("unexpected status: %q", m.status)
	}

	m = submit(t, m, "nope")
	if m.status != "unknown command: nope" {
		t.Fatalf("unexpected status: %q", m.status)
	}
}

func TestEnterTogglesSelectedProject(t *testing.T) {
	t.Parallel()
	log := &fakeLog{}
	var model tea.Model = NewModel(log)
	model, _ = model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	projects, _ := log.ListProjects(context.Background())
	model, _ = model.Update(projectsLoaded(projects))

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	cmd()
	if len(log.deactivated) != 1 || log.deactivated[0] != "alpha" {
		t.Fatalf("expected active alpha to be deactivated, got %v", log.deactivated)
	}
}
