package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	"timelog/internal/modules/timelog/domain"
	timelogout "timelog/internal/modules/timelog/port/out"
	apperrors "timelog/internal/platform/errors"
	"timelog/internal/platform/tx"

	_ "modernc.org/sqlite"
)

const sqliteTimeLayout = "2006-01-02T15:04:05.000Z07:00"

type txKey struct{}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteProjectStore persists projects and their sessions in two tables. It
// holds a single connection, so a transaction opened by Within is visible to
// every store call made with the context it hands out.
type SQLiteProjectStore struct {
	db *sql.DB
}

var (
	_ timelogout.ProjectStore = (*SQLiteProjectStore)(nil)
	_ tx.Manager              = (*SQLiteProjectStore)(nil)
)

// NewSQLiteProjectStore opens dbPath, or an in-memory database for ":memory:".
func NewSQLiteProjectStore(dbPath string) (*SQLiteProjectStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	store := &SQLiteProjectStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// BusyTimeout is how long a write waits for another process (a running
// `timelog serve` next to `timelog tui`) to release the database.
const BusyTimeout = 5 * time.Second

// sqliteDSN enables WAL so readers never block the writer, waits out locks
// held by other processes, and starts every transaction IMMEDIATE so two
// read-then-write transactions cannot deadlock on the lock upgrade.
func sqliteDSN(dbPath string) string {
	pragmas := fmt.Sprintf("_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_txlock=immediate", BusyTimeout.Milliseconds())
	if dbPath == ":memory:" {
		return dbPath + "?" + pragmas
	}
	return dbPath + "?" + pragmas + "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

func (s *SQLiteProjectStore) ensureSchema(ctx context.Context) error {
	const ddl = `
PRAGMA foreign_keys = ON;
CREATE TABLE IF NOT EXISTS projects (
  name TEXT PRIMARY KEY,
  schema_version INTEGER NOT NULL,
  created TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 0,
  current_session_start TEXT
);
CREATE INDEX IF NOT EXISTS projects_active ON projects(active);
CREATE TABLE IF NOT EXISTS sessions (
  project_name TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  start TEXT NOT NULL,
  stop TEXT NOT NULL,
  PRIMARY KEY (project_name, seq)
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteProjectStore) Close() error {
	return s.db.Close()
}

// Within runs fn inside one SQL transaction. Nested calls join the outer one.
func (s *SQLiteProjectStore) Within(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, sqlTx)); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteProjectStore) conn(ctx context.Context) querier {
	if sqlTx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return sqlTx
	}
	return s.db
}

func (s *SQLiteProjectStore) Insert(ctx context.Context, project domain.Project) error {
	return s.Within(ctx, func(ctx context.Context) error {
		q := s.conn(ctx)
		res, err := q.ExecContext(ctx, `
INSERT INTO projects (name, schema_version, created, active, current_session_start)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(name) DO NOTHING`,
			project.Name,
			domain.SchemaVersion,
			formatTime(project.Created),
			project.Active,
			formatTimePtr(project.CurrentSessionStart),
		)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("insert project: %w", err)
		} else if n == 0 {
			return apperrors.ErrAlreadyExists
		}
		return s.writeSessions(ctx, q, project)
	})
}

func (s *SQLiteProjectStore) Update(ctx context.Context, project domain.Project) error {
	return s.Within(ctx, func(ctx context.Context) error {
		q := s.conn(ctx)
		res, err := q.ExecContext(ctx, `
UPDATE projects SET created = ?, active = ?, current_session_start = ?
WHERE name = ?`,
			formatTime(project.Created),
			project.Active,
			formatTimePtr(project.CurrentSessionStart),
			project.Name,
		)
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update project: %w", err)
		} else if n == 0 {
			return apperrors.ErrNotFound
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM sessions WHERE project_name = ?`, project.Name); err != nil {
			return fmt.Errorf("replace sessions: %w", err)
		}
		return s.writeSessions(ctx, q, project)
	})
}

func (s *SQLiteProjectStore) writeSessions(ctx context.Context, q querier, project domain.Project) error {
	for i, session := range project.Sessions {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO sessions (project_name, seq, start, stop) VALUES (?, ?, ?, ?)`,
			project.Name, i, formatTime(session.Start), formatTime(session.Stop),
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
	}
	return nil
}

func (s *SQLiteProjectStore) GetByID(ctx context.Context, name string) (domain.Project, error) {
	q := s.conn(ctx)
	row := q.QueryRowContext(ctx,
		`SELECT name, created, active, current_session_start FROM projects WHERE name = ?`, name)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Project{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.Project{}, err
	}
	if project.Sessions, err = s.loadSessions(ctx, q, name); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// FindAll reads the matching rows in full before yielding, so callers may
// write to the store while iterating.
func (s *SQLiteProjectStore) FindAll(ctx context.Context, filter domain.ProjectFilter) iter.Seq2[domain.Project, error] {
	return func(yield func(domain.Project, error) bool) {
		projects, err := s.snapshot(ctx, filter)
		if err != nil {
			yield(domain.Project{}, err)
			return
		}
		for _, project := range projects {
			if !yield(project, nil) {
				return
			}
		}
	}
}

func (s *SQLiteProjectStore) snapshot(ctx context.Context, filter domain.ProjectFilter) ([]domain.Project, error) {
	q := s.conn(ctx)
	query := `SELECT name, created, active, current_session_start FROM projects`
	var args []any
	if filter.Active != nil {
		query += ` WHERE active = ?`
		args = append(args, *filter.Active)
	}
	query += ` ORDER BY name`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	var projects []domain.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close project rows: %w", err)
	}

	for i := range projects {
		if projects[i].Sessions, err = s.loadSessions(ctx, q, projects[i].Name); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

func (s *SQLiteProjectStore) loadSessions(ctx context.Context, q querier, name string) ([]domain.Session, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT start, stop FROM sessions WHERE project_name = ? ORDER BY seq`, name)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		var start, stop string
		if err := rows.Scan(&start, &stop); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		session := domain.Session{}
		if session.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if session.Stop, err = parseTime(stop); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (domain.Project, error) {
	var (
		project domain.Project
		created string
		active  bool
		current sql.NullString
	)
	if err := row.Scan(&project.Name, &created, &active, &current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Project{}, err
		}
		return domain.Project{}, fmt.Errorf("scan project: %w", err)
	}
	var err error
	if project.Created, err = parseTime(created); err != nil {
		return domain.Project{}, err
	}
	project.Active = active
	if current.Valid {
		start, err := parseTime(current.String)
		if err != nil {
			return domain.Project{}, err
		}
		project.CurrentSessionStart = &start
	}
	return project, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}
