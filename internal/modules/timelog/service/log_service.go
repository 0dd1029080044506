package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"timelog/internal/modules/timelog/domain"
	timelogin "timelog/internal/modules/timelog/port/in"
	timelogout "timelog/internal/modules/timelog/port/out"
	"timelog/internal/platform/clock"
	apperrors "timelog/internal/platform/errors"
	"timelog/internal/platform/logging"
	"timelog/internal/platform/tx"
)

// LogService runs the project activation state machine. It keeps no state
// between calls and takes no locks: at most one active project is guaranteed
// per call sequence, not across concurrent callers, unless txm serialises them.
type LogService struct {
	clock    clock.Clock
	store    timelogout.ProjectStore
	txm      tx.Manager
	recorder timelogout.SessionRecorder
	logger   *zap.Logger
}

func NewLogService(clk clock.Clock, store timelogout.ProjectStore, txm tx.Manager, recorder timelogout.SessionRecorder, logger *zap.Logger) *LogService {
	if txm == nil {
		txm = tx.NoopManager{}
	}
	return &LogService{clock: clk, store: store, txm: txm, recorder: recorder, logger: logging.OrNop(logger)}
}

func (s *LogService) AddProject(ctx context.Context, project domain.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if err := s.store.Insert(ctx, project); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return &timelogin.ProjectAlreadyExistsError{Name: project.Name}
		}
		return fmt.Errorf("insert project %s: %w", project.Name, err)
	}
	s.logger.Info("project added", zap.String("project", project.Name))
	return nil
}

// closedSession is a session written by a deactivation, reported once its
// enclosing transaction has committed.
type closedSession struct {
	project string
	session domain.Session
}

// ActivateProject deactivates every other active project, then opens a session
// on name. The other projects stay deactivated if name turns out not to exist.
func (s *LogService) ActivateProject(ctx context.Context, name string) error {
	return s.within(ctx, func(ctx context.Context, closed *[]closedSession) error {
		if err := s.deactivateAllExcept(ctx, name, closed); err != nil {
			return err
		}
		project, err := s.get(ctx, name)
		if err != nil {
			return err
		}
		if project.Active {
			s.logger.Warn("restarting open session, elapsed time is dropped",
				zap.String("project", name),
				zap.Timep("open_since", project.CurrentSessionStart),
			)
		}
		project.Activate(s.now())
		if err := s.store.Update(ctx, project); err != nil {
			return s.translateUpdate(name, err)
		}
		s.logger.Info("project activated", zap.String("project", name))
		return nil
	})
}

// DeactivateProject closes the open session on name. It is a no-op for an
// inactive project.
func (s *LogService) DeactivateProject(ctx context.Context, name string) error {
	var closed []closedSession
	if err := s.deactivate(ctx, name, &closed); err != nil {
		return err
	}
	s.report(ctx, closed)
	return nil
}

// DeactivateAllProjects deactivates every project active at call time.
func (s *LogService) DeactivateAllProjects(ctx context.Context) error {
	return s.within(ctx, func(ctx context.Context, closed *[]closedSession) error {
		return s.deactivateAllExcept(ctx, "", closed)
	})
}

func (s *LogService) GetProjectDuration(ctx context.Context, name string) (float64, error) {
	project, err := s.get(ctx, name)
	if err != nil {
		return 0, err
	}
	return project.TotalHours(), nil
}

func (s *LogService) GetProject(ctx context.Context, name string) (domain.Project, error) {
	return s.get(ctx, name)
}

func (s *LogService) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var out []domain.Project
	for project, err := range s.store.FindAll(ctx, domain.ProjectFilter{}) {
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		out = append(out, project)
	}
	return out, nil
}

// deactivateAllExcept deactivates the active projects other than keep. Names
// are collected first so the store snapshot is released before any update.
func (s *LogService) deactivateAllExcept(ctx context.Context, keep string, closed *[]closedSession) error {
	var names []string
	for project, err := range s.store.FindAll(ctx, domain.ActiveProjects()) {
		if err != nil {
			return fmt.Errorf("find active projects: %w", err)
		}
		if project.Name != keep {
			names = append(names, project.Name)
		}
	}
	for _, name := range names {
		if err := s.deactivate(ctx, name, closed); err != nil {
			return err
		}
	}
	return nil
}

func (s *LogService) deactivate(ctx context.Context, name string, closed *[]closedSession) error {
	project, err := s.get(ctx, name)
	if err != nil {
		return err
	}
	session, ok := project.Deactivate(s.now())
	if !ok {
		return nil
	}
	if err := s.store.Update(ctx, project); err != nil {
		return s.translateUpdate(name, err)
	}
	*closed = append(*closed, closedSession{project: name, session: session})
	return nil
}

// within runs fn in a transaction and reports the sessions it closed once
// they are durable: after a commit, or after a failure the manager does not
// roll back.
func (s *LogService) within(ctx context.Context, fn func(context.Context, *[]closedSession) error) error {
	var closed []closedSession
	err := s.txm.Within(ctx, func(ctx context.Context) error {
		return fn(ctx, &closed)
	})
	if err == nil || !tx.RollsBack(s.txm) {
		s.report(ctx, closed)
	}
	return err
}

func (s *LogService) report(ctx context.Context, closed []closedSession) {
	for _, c := range closed {
		if s.recorder != nil {
			s.recorder.SessionClosed(ctx, c.project, c.session)
		}
		s.logger.Info("project deactivated",
			zap.String("project", c.project),
			zap.Int("session_minutes", c.session.Duration()),
		)
	}
}

func (s *LogService) get(ctx context.Context, name string) (domain.Project, error) {
	project, err := s.store.GetByID(ctx, name)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.Project{}, &timelogin.ProjectDoesNotExistError{Name: name}
		}
		return domain.Project{}, fmt.Errorf("get project %s: %w", name, err)
	}
	return project, nil
}

func (s *LogService) translateUpdate(name string, err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return &timelogin.ProjectDoesNotExistError{Name: name}
	}
	return fmt.Errorf("update project %s: %w", name, err)
}

func (s *LogService) now() time.Time {
	return clock.NowMillis(s.clock)
}
