package tx

import "context"

// Manager wraps transactional boundaries for multi-record operations.
// Implementations commit when fn returns nil and roll back otherwise.
type Manager interface {
	Within(ctx context.Context, fn func(context.Context) error) error
}

// NoopManager runs fn directly; every store call inside it commits on its own.
type NoopManager struct{}

func (NoopManager) Within(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// RollsBack reports whether a failed Within undoes the writes made inside it.
func RollsBack(m Manager) bool {
	_, noop := m.(NoopManager)
	return !noop
}
