package out

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"timelog/internal/modules/timelog/domain"
	timelogout "timelog/internal/modules/timelog/port/out"
	apperrors "timelog/internal/platform/errors"
	"timelog/internal/platform/logging"
	"timelog/internal/platform/markdown"
	"timelog/internal/platform/slug"
)

// SessionsBlock holds the generated session table in each project note.
var SessionsBlock = markdown.Block{
	Start: "<!-- timelog:sessions:start -->",
	End:   "<!-- timelog:sessions:end -->",
}

// VaultProjectStore keeps one Markdown note per project under
// <vault>/projects. The record lives in the YAML frontmatter; the session
// table between the managed markers is regenerated on every write and the
// rest of the body belongs to the user.
//
// Notes in that folder which do not carry a project record (hand-written
// notes, broken frontmatter) are skipped with a warning.
type VaultProjectStore struct {
	vaultPath string
	logger    *zap.Logger
	mu        sync.Mutex
}

var _ timelogout.ProjectStore = (*VaultProjectStore)(nil)

func NewVaultProjectStore(vaultPath string, logger *zap.Logger) *VaultProjectStore {
	return &VaultProjectStore{vaultPath: vaultPath, logger: logging.OrNop(logger)}
}

type projectFrontmatter struct {
	SchemaVersion       int                  `yaml:"schema_version"`
	Name                string               `yaml:"name"`
	Created             string               `yaml:"created"`
	Active              bool                 `yaml:"active"`
	CurrentSessionStart string               `yaml:"current_session_start,omitempty"`
	Sessions            []sessionFrontmatter `yaml:"sessions"`
}

type sessionFrontmatter struct {
	Start string `yaml:"start"`
	Stop  string `yaml:"stop"`
}

type projectNote struct {
	path    string
	body    string
	project domain.Project
}

// ProjectsDir is the folder holding one note per project inside a vault.
func ProjectsDir(vaultPath string) string {
	return filepath.Join(vaultPath, "projects")
}

func (s *VaultProjectStore) dir() string {
	return ProjectsDir(s.vaultPath)
}

func (s *VaultProjectStore) Insert(_ context.Context, project domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := s.readAll()
	if err != nil {
		return err
	}
	taken := map[string]bool{}
	for _, note := range notes {
		if note.project.Name == project.Name {
			return apperrors.ErrAlreadyExists
		}
		taken[strings.TrimSuffix(filepath.Base(note.path), ".md")] = true
	}
	if err := os.MkdirAll(s.dir(), 0o755); err != nil {
		return fmt.Errorf("create projects directory: %w", err)
	}
	name := slug.Unique(project.Name, func(candidate string) bool { return taken[candidate] })
	body := "\n## Notes\n"
	return s.write(filepath.Join(s.dir(), name+".md"), body, project)
}

func (s *VaultProjectStore) GetByID(_ context.Context, name string) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, err := s.find(name)
	if err != nil {
		return domain.Project{}, err
	}
	return note.project, nil
}

func (s *VaultProjectStore) Update(_ context.Context, project domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, err := s.find(project.Name)
	if err != nil {
		return err
	}
	return s.write(note.path, note.body, project)
}

func (s *VaultProjectStore) FindAll(_ context.Context, filter domain.ProjectFilter) iter.Seq2[domain.Project, error] {
	return func(yield func(domain.Project, error) bool) {
		s.mu.Lock()
		notes, err := s.readAll()
		s.mu.Unlock()
		if err != nil {
			yield(domain.Project{}, err)
			return
		}
		sort.Slice(notes, func(i, j int) bool { return notes[i].project.Name < notes[j].project.Name })
		for _, note := range notes {
			if !filter.Matches(note.project) {
				continue
			}
			if !yield(note.project, nil) {
				return
			}
		}
	}
}

func (s *VaultProjectStore) find(name string) (projectNote, error) {
	notes, err := s.readAll()
	if err != nil {
		return projectNote{}, err
	}
	for _, note := range notes {
		if note.project.Name == name {
			return note, nil
		}
	}
	return projectNote{}, apperrors.ErrNotFound
}

func (s *VaultProjectStore) readAll() ([]projectNote, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir(), "*.md"))
	if err != nil {
		return nil, fmt.Errorf("glob project notes: %w", err)
	}
	sort.Strings(matches)

	out := make([]projectNote, 0, len(matches))
	for _, path := range matches {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var meta projectFrontmatter
		body, err := markdown.DecodeFrontmatter(string(content), &meta)
		if err != nil {
			s.skip(path, err)
			continue
		}
		// A newer record is still a project; skipping it would let Insert
		// create a duplicate.
		if meta.SchemaVersion > domain.SchemaVersion {
			return nil, fmt.Errorf("decode project %s: unsupported schema_version %d", path, meta.SchemaVersion)
		}
		project, err := fromProjectFrontmatter(meta)
		if err != nil {
			s.skip(path, err)
			continue
		}
		out = append(out, projectNote{path: path, body: body, project: project})
	}
	return out, nil
}

func (s *VaultProjectStore) skip(path string, err error) {
	s.logger.Warn("skipping note without a project record",
		zap.String("path", path),
		zap.Error(err),
	)
}

func (s *VaultProjectStore) write(path, body string, project domain.Project) error {
	body = SessionsBlock.Replace(body, renderSessionTable(project.Sessions))
	rendered, err := markdown.RenderFrontmatter(toProjectFrontmatter(project), body)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("write project note: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace project note: %w", err)
	}
	return nil
}

func renderSessionTable(sessions []domain.Session) string {
	var b strings.Builder
	b.WriteString("| Start | Stop | Minutes |\n")
	b.WriteString("| --- | --- | --- |")
	for _, session := range sessions {
		b.WriteString("\n| ")
		b.WriteString(session.Start.Format(time.RFC3339))
		b.WriteString(" | ")
		b.WriteString(session.Stop.Format(time.RFC3339))
		b.WriteString(" | ")
		b.WriteString(strconv.Itoa(session.Duration()))
		b.WriteString(" |")
	}
	return b.String()
}

func toProjectFrontmatter(project domain.Project) projectFrontmatter {
	meta := projectFrontmatter{
		SchemaVersion: domain.SchemaVersion,
		Name:          project.Name,
		Created:       formatTime(project.Created),
		Active:        project.Active,
		Sessions:      make([]sessionFrontmatter, 0, len(project.Sessions)),
	}
	if project.CurrentSessionStart != nil {
		meta.CurrentSessionStart = formatTime(*project.CurrentSessionStart)
	}
	for _, session := range project.Sessions {
		meta.Sessions = append(meta.Sessions, sessionFrontmatter{
			Start: formatTime(session.Start),
			Stop:  formatTime(session.Stop),
		})
	}
	return meta
}

func fromProjectFrontmatter(meta projectFrontmatter) (domain.Project, error) {
	if meta.SchemaVersion > domain.SchemaVersion {
		return domain.Project{}, fmt.Errorf("unsupported schema_version %d", meta.SchemaVersion)
	}
	created, err := parseTime(meta.Created)
	if err != nil {
		return domain.Project{}, err
	}
	project := domain.NewProject(meta.Name, created)
	project.Active = meta.Active
	if meta.CurrentSessionStart != "" {
		start, err := parseTime(meta.CurrentSessionStart)
		if err != nil {
			return domain.Project{}, err
		}
		project.CurrentSessionStart = &start
	}
	for _, entry := range meta.Sessions {
		start, err := parseTime(entry.Start)
		if err != nil {
			return domain.Project{}, err
		}
		stop, err := parseTime(entry.Stop)
		if err != nil {
			return domain.Project{}, err
		}
		project.Sessions = append(project.Sessions, domain.Session{Start: start, Stop: stop})
	}
	if err := project.Validate(); err != nil {
		return domain.Project{}, errors.Join(apperrors.ErrInvalidInput, err)
	}
	return project, nil
}
