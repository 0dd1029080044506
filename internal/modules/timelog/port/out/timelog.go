package out

import (
	"context"
	"iter"

	"timelog/internal/modules/timelog/domain"
)

// ProjectStore persists project records keyed by name.
//
// Insert fails with apperrors.ErrAlreadyExists when the name is taken. GetByID
// and Update fail with apperrors.ErrNotFound when it is absent. Update replaces
// the whole record. FindAll yields a point-in-time snapshot of the matching
// projects; the sequence is not restartable.
type ProjectStore interface {
	Insert(ctx context.Context, project domain.Project) error
	GetByID(ctx context.Context, name string) (domain.Project, error)
	Update(ctx context.Context, project domain.Project) error
	FindAll(ctx context.Context, filter domain.ProjectFilter) iter.Seq2[domain.Project, error]
}

// SessionRecorder is notified after a closed session has been persisted.
type SessionRecorder interface {
	SessionClosed(ctx context.Context, project string, session domain.Session)
}
