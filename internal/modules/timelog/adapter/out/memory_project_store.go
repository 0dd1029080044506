package out

import (
	"context"
	"iter"
	"sort"
	"sync"

	"timelog/internal/modules/timelog/domain"
	timelogout "timelog/internal/modules/timelog/port/out"
	apperrors "timelog/internal/platform/errors"
)

// MemoryProjectStore keeps projects in process memory. Every read and write
// copies the record so callers never share state with the store.
type MemoryProjectStore struct {
	mu       sync.RWMutex
	projects map[string]domain.Project
}

func NewMemoryProjectStore() *MemoryProjectStore {
	return &MemoryProjectStore{projects: map[string]domain.Project{}}
}

var _ timelogout.ProjectStore = (*MemoryProjectStore)(nil)

func (s *MemoryProjectStore) Insert(_ context.Context, project domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[project.Name]; ok {
		return apperrors.ErrAlreadyExists
	}
	s.projects[project.Name] = project.Clone()
	return nil
}

func (s *MemoryProjectStore) GetByID(_ context.Context, name string) (domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	project, ok := s.projects[name]
	if !ok {
		return domain.Project{}, apperrors.ErrNotFound
	}
	return project.Clone(), nil
}

func (s *MemoryProjectStore) Update(_ context.Context, project domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[project.Name]; !ok {
		return apperrors.ErrNotFound
	}
	s.projects[project.Name] = project.Clone()
	return nil
}

func (s *MemoryProjectStore) FindAll(_ context.Context, filter domain.ProjectFilter) iter.Seq2[domain.Project, error] {
	return func(yield func(domain.Project, error) bool) {
		s.mu.RLock()
		snapshot := make([]domain.Project, 0, len(s.projects))
		for _, project := range s.projects {
			if filter.Matches(project) {
				snapshot = append(snapshot, project.Clone())
			}
		}
		s.mu.RUnlock()

		sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Name < snapshot[j].Name })
		for _, project := range snapshot {
			if !yield(project, nil) {
				return
			}
		}
	}
}
