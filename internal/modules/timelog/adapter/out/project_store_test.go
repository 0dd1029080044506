package out_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	timelogadapter "timelog/internal/modules/timelog/adapter/out"
	"timelog/internal/modules/timelog/domain"
	timelogout "timelog/internal/modules/timelog/port/out"
	apperrors "timelog/internal/platform/errors"
)

var base = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

type storeFactory func(t *testing.T) timelogout.ProjectStore

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(*testing.T) timelogout.ProjectStore {
			return timelogadapter.NewMemoryProjectStore()
		},
		"sqlite": func(t *testing.T) timelogout.ProjectStore {
			store, err := timelogadapter.NewSQLiteProjectStore(filepath.Join(t.TempDir(), ".timelog", "timelog.db"))
			if err != nil {
				t.Fatalf("open sqlite store: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
		"vault": func(t *testing.T) timelogout.ProjectStore {
			return timelogadapter.NewVaultProjectStore(t.TempDir(), nil)
		},
	}
}

func trackedProject() domain.Project {
	project := domain.NewProject("Client Work", base)
	project.Activate(base)
	project.Deactivate(base.Add(90 * time.Minute))
	project.Activate(base.Add(2 * time.Hour))
	return project
}

func TestProjectStoreContract(t *testing.T) {
	t.Parallel()
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := factory(t)

			project := trackedProject()
			if err := store.Insert(ctx, project); err != nil {
				t.Fatalf("insert: %v", err)
			}
			if err := store.Insert(ctx, domain.NewProject("Client Work", base)); !errors.Is(err, apperrors.ErrAlreadyExists) {
				t.Fatalf("expected ErrAlreadyExists, got %v", err)
			}

			got, err := store.GetByID(ctx, "Client Work")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if !got.Active || got.CurrentSessionStart == nil || !got.CurrentSessionStart.Equal(base.Add(2*time.Hour)) {
				t.Fatalf("unexpected open session: %+v", got)
			}
			if len(got.Sessions) != 1 || got.Sessions[0].Duration() != 90 {
				t.Fatalf("unexpected sessions: %+v", got.Sessions)
			}
			if !got.Created.Equal(base) {
				t.Fatalf("unexpected created: %s", got.Created)
			}

			got.Deactivate(base.Add(3 * time.Hour))
			if err := store.Update(ctx, got); err != nil {
				t.Fatalf("update: %v", err)
			}
			reloaded, err := store.GetByID(ctx, "Client Work")
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if reloaded.Active || reloaded.CurrentSessionStart != nil || len(reloaded.Sessions) != 2 {
				t.Fatalf("update not persisted: %+v", reloaded)
			}
			if reloaded.TotalHours() != 2.5 {
				t.Fatalf("expected 2.5 hours, got %v", reloaded.TotalHours())
			}

			if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
				t.Fatalf("expected ErrNotFound on get, got %v", err)
			}
			if err := store.Update(ctx, domain.NewProject("missing", base)); !errors.Is(err, apperrors.ErrNotFound) {
				t.Fatalf("expected ErrNotFound on update, got %v", err)
			}
		})
	}
}

func TestProjectStoreFindAllFilters(t *testing.T) {
	t.Parallel()
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := factory(t)

			for _, projectName := range []string{"beta", "alpha", "gamma"} {
				project := domain.NewProject(projectName, base)
				if projectName != "alpha" {
					project.Activate(base)
				}
				if err := store.Insert(ctx, project); err != nil {
					t.Fatalf("insert %s: %v", projectName, err)
				}
			}

			var active []string
			for project, err := range store.FindAll(ctx, domain.ActiveProjects()) {
				if err != nil {
					t.Fatalf("find active: %v", err)
				}
				active = append(active, project.Name)
			}
			if strings.Join(active, ",") != "beta,gamma" {
				t.Fatalf("unexpected active projects: %v", active)
			}

			count := 0
			for _, err := range store.FindAll(ctx, domain.ProjectFilter{}) {
				if err != nil {
					t.Fatalf("find all: %v", err)
				}
				count++
			}
			if count != 3 {
				t.Fatalf("expected 3 projects, got %d", count)
			}
		})
	}
}

func TestProjectStoreUpdateDuringIteration(t *testing.T) {
	t.Parallel()
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := factory(t)
			for _, projectName := range []string{"a", "b"} {
				project := domain.NewProject(projectName, base)
				project.Activate(base)
				if err := store.Insert(ctx, project); err != nil {
					t.Fatalf("insert: %v", err)
				}
			}
			for project, err := range store.FindAll(ctx, domain.ActiveProjects()) {
				if err != nil {
					t.Fatalf("find: %v", err)
				}
				project.Deactivate(base.Add(time.Minute))
				if err := store.Update(ctx, project); err != nil {
					t.Fatalf("update %s: %v", project.Name, err)
				}
			}
			for project, err := range store.FindAll(ctx, domain.ActiveProjects()) {
				t.Fatalf("expected no active projects, got %s (%v)", project.Name, err)
			}
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := timelogadapter.NewMemoryProjectStore()
	if err := store.Insert(ctx, trackedProject()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, _ := store.GetByID(ctx, "Client Work")
	got.Sessions[0].Stop = base
	again, _ := store.GetByID(ctx, "Client Work")
	if again.Sessions[0].Duration() != 90 {
		t.Fatalf("store shared session slice with caller")
	}
}

func TestSQLiteStoreWithinRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := timelogadapter.NewSQLiteProjectStore(filepath.Join(t.TempDir(), "timelog.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	boom := errors.New("boom")
	err = store.Within(ctx, func(ctx context.Context) error {
		if err := store.Insert(ctx, domain.NewProject("rolled back", base)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := store.GetByID(ctx, "rolled back"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected insert to be rolled back, got %v", err)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "timelog.db")
	store, err := timelogadapter.NewSQLiteProjectStore(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Insert(ctx, trackedProject()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := timelogadapter.NewSQLiteProjectStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.GetByID(ctx, "Client Work")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if !got.Active || len(got.Sessions) != 1 {
		t.Fatalf("unexpected project after reopen: %+v", got)
	}
}

func TestSQLiteStoreWaitsForWriterInAnotherConnection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "timelog.db")
	server, err := timelogadapter.NewSQLiteProjectStore(dbPath)
	if err != nil {
		t.Fatalf("open first: %v", err)
	}
	defer server.Close()
	tui, err := timelogadapter.NewSQLiteProjectStore(dbPath)
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	defer tui.Close()

	locked := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- server.Within(ctx, func(ctx context.Context) error {
			if err := server.Insert(ctx, domain.NewProject("alpha", base)); err != nil {
				return err
			}
			close(locked)
			time.Sleep(200 * time.Millisecond)
			return nil
		})
	}()

	select {
	case <-locked:
	case err := <-done:
		t.Fatalf("first writer finished early: %v", err)
	}
	if err := tui.Insert(ctx, domain.NewProject("beta", base)); err != nil {
		t.Fatalf("second writer should wait for the lock, got %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first writer: %v", err)
	}
	for _, name := range []string{"alpha", "beta"} {
		if _, err := tui.GetByID(ctx, name); err != nil {
			t.Fatalf("get %s: %v", name, err)
		}
	}
	if _, err := os.Stat(dbPath + "-wal"); err != nil {
		t.Fatalf("expected write-ahead log next to the database: %v", err)
	}
}

func TestVaultStoreKeepsUserNotesAndRendersTable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	vault := t.TempDir()
	store := timelogadapter.NewVaultProjectStore(vault, nil)

	if err := store.Insert(ctx, domain.NewProject("Client Work", base)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	notePath := filepath.Join(vault, "projects", "client-work.md")
	raw, err := os.ReadFile(notePath)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	edited := strings.Replace(string(raw), "## Notes\n", "## Notes\n\nkickoff call went well\n", 1)
	if err := os.WriteFile(notePath, []byte(edited), 0o644); err != nil {
		t.Fatalf("edit note: %v", err)
	}

	if err := store.Update(ctx, trackedProject()); err != nil {
		t.Fatalf("update: %v", err)
	}
	raw, err = os.ReadFile(notePath)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	content := string(raw)
	if !strings.Contains(content, "kickoff call went well") {
		t.Fatalf("user notes were dropped:\n%s", content)
	}
	table, ok := timelogadapter.SessionsBlock.Content(content)
	if !ok || !strings.Contains(table, "| 90 |") {
		t.Fatalf("session table missing:\n%s", content)
	}
	if !strings.Contains(content, "schema_version: 1") {
		t.Fatalf("schema version missing:\n%s", content)
	}
}

func TestVaultStoreDisambiguatesSlugs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	vault := t.TempDir()
	store := timelogadapter.NewVaultProjectStore(vault, nil)

	for _, name := range []string{"Client Work", "client-work"} {
		if err := store.Insert(ctx, domain.NewProject(name, base)); err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
	}
	for _, file := range []string{"client-work.md", "client-work-2.md"} {
		if _, err := os.Stat(filepath.Join(vault, "projects", file)); err != nil {
			t.Fatalf("expected %s: %v", file, err)
		}
	}
	got, err := store.GetByID(ctx, "client-work")
	if err != nil || got.Name != "client-work" {
		t.Fatalf("expected to load second project, got %+v (%v)", got, err)
	}
}

func TestVaultStoreSkipsNotesWithoutProjectRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	vault := t.TempDir()
	core, logs := observer.New(zap.WarnLevel)
	store := timelogadapter.NewVaultProjectStore(vault, zap.New(core))

	if err := store.Insert(ctx, domain.NewProject("alpha", base)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	dir := filepath.Join(vault, "projects")
	handWritten := map[string]string{
		"ideas.md":  "# Ideas\n\nbill by the hour?\n",
		"broken.md": "---\nname: [unterminated\n---\n",
		"nodate.md": "---\nname: beta\n---\n",
	}
	for file, content := range handWritten {
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", file, err)
		}
	}

	var names []string
	for project, err := range store.FindAll(ctx, domain.ProjectFilter{}) {
		if err != nil {
			t.Fatalf("find all: %v", err)
		}
		names = append(names, project.Name)
	}
	if len(names) != 1 || names[0] != "alpha" {
		t.Fatalf("expected only alpha, got %v", names)
	}
	if got := logs.FilterMessage("skipping note without a project record").Len(); got != len(handWritten) {
		t.Fatalf("expected %d skip warnings, got %d", len(handWritten), got)
	}
	if _, err := store.GetByID(ctx, "beta"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected beta to be unknown, got %v", err)
	}
}

func TestVaultStoreRejectsNewerSchema(t *testing.T) {
	t.Parallel()
	vault := t.TempDir()
	store := timelogadapter.NewVaultProjectStore(vault, nil)
	dir := filepath.Join(vault, "projects")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	note := "---\nschema_version: 99\nname: future\ncreated: \"2024-03-04T10:00:00.000Z\"\n---\n"
	if err := os.WriteFile(filepath.Join(dir, "future.md"), []byte(note), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.GetByID(context.Background(), "future"); err == nil || !strings.Contains(err.Error(), "unsupported schema_version") {
		t.Fatalf("expected schema error, got %v", err)
	}
}
