package projects

import (
	"context"
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"timelog/internal/modules/timelog/dto"
	"timelog/internal/ui/theme"
)

// ─── port ────────────────────────────────────────────────────────────────────

type ProjectPort interface {
	ListProjects(ctx context.Context) ([]dto.ProjectOutput, error)
	GetProject(ctx context.Context, name string) (dto.ProjectDetailOutput, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

type ProjectsLoadedMsg struct {
	Projects []dto.ProjectOutput
	Err      error
}

type DetailLoadedMsg struct {
	Detail dto.ProjectDetailOutput
	Err    error
}

// ─── list item ───────────────────────────────────────────────────────────────

type projectItem struct {
	project dto.ProjectOutput
}

func (i projectItem) Title() string {
	if i.project.Active {
		return "● " + i.project.Name
	}
	return i.project.Name
}

func (i projectItem) Description() string {
	state := "idle"
	if i.project.Active {
		state = "tracking"
	}
	return fmt.Sprintf("%.1fh  %s", i.project.TotalHours, state)
}

func (i projectItem) FilterValue() string { return i.project.Name }

// ─── model ───────────────────────────────────────────────────────────────────

type Model struct {
	port    ProjectPort
	list    list.Model
	detail  dto.ProjectDetailOutput
	preview viewport.Model
	spinner spinner.Model
	loading bool
	width   int
	height  int
}

func New(port ProjectPort) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Projects"
	l.Styles.Title = theme.Title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	vp := viewport.New(0, 0)
	vp.Style = lipgloss.NewStyle().
		Background(theme.Mantle).
		Foreground(theme.Text).
		Padding(1)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	return Model{
		port:    port,
		list:    l,
		preview: vp,
		spinner: sp,
		loading: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.Reload(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case ProjectsLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.list.Title = "Projects: " + msg.Err.Error()
			return m, nil
		}
		m.list.Title = "Projects"
		items := make([]list.Item, len(msg.Projects))
		for i, p := range msg.Projects {
			items[i] = projectItem{project: p}
		}
		cmds = append(cmds, m.list.SetItems(items))
		if item, ok := m.list.SelectedItem().(projectItem); ok {
			cmds = append(cmds, m.loadDetailCmd(item.project.Name))
		}

	case DetailLoadedMsg:
		if msg.Err == nil {
			m.detail = msg.Detail
			m.preview.SetContent(m.renderDetail())
		}

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if !m.loading {
		var lCmd tea.Cmd
		prevIdx := m.list.Index()
		m.list, lCmd = m.list.Update(msg)
		cmds = append(cmds, lCmd)
		if m.list.Index() != prevIdx {
			if item, ok := m.list.SelectedItem().(projectItem); ok {
				cmds = append(cmds, m.loadDetailCmd(item.project.Name))
			}
		}

		var vCmd tea.Cmd
		m.preview, vCmd = m.preview.Update(msg)
		cmds = append(cmds, vCmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.loading {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Loading projects…")
	}

	listW := m.width * 4 / 10
	detailW := m.width - listW

	listPane := lipgloss.NewStyle().
		Width(listW).
		Height(m.height).
		Render(m.list.View())

	detailPane := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.Surface1).
		Background(theme.Mantle).
		Width(detailW - 2).
		Height(m.height - 2).
		Render(m.preview.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

// Reload fetches the project list again.
func (m Model) Reload() tea.Cmd {
	return func() tea.Msg {
		projects, err := m.port.ListProjects(context.Background())
		return ProjectsLoadedMsg{Projects: projects, Err: err}
	}
}

// Selected returns the highlighted project, if any.
func (m Model) Selected() (dto.ProjectOutput, bool) {
	if item, ok := m.list.SelectedItem().(projectItem); ok {
		return item.project, true
	}
	return dto.ProjectOutput{}, false
}

// Filtering reports whether the list's search filter is currently active.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

// ─── private ─────────────────────────────────────────────────────────────────

func (m *Model) resize() {
	listW := m.width * 4 / 10
	detailW := m.width - listW
	m.list.SetSize(listW, m.height)
	m.preview.Width = detailW - 4
	m.preview.Height = m.height - 4
}

func (m Model) renderDetail() string {
	d := m.detail
	if d.Name == "" {
		return theme.Muted.Render("Select a project to see details")
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render(d.Name) + "\n\n")
	sb.WriteString(theme.Muted.Render("created: ") + humanize.Time(d.Created) + "\n")
	if d.CurrentSessionStart != nil {
		sb.WriteString(theme.Muted.Render("state:   ") + theme.Active.Render("tracking since "+humanize.Time(*d.CurrentSessionStart)) + "\n")
	} else {
		sb.WriteString(theme.Muted.Render("state:   ") + "idle\n")
	}
	sb.WriteString(fmt.Sprintf("%s%.1f h\n", theme.Muted.Render("total:   "), d.TotalHours))

	if len(d.Sessions) > 0 {
		sb.WriteString("\n" + theme.Title.Render("Sessions") + "\n")
		sb.WriteString(sessionSparkline(d.Sessions, m.preview.Width) + "\n\n")
		for i := len(d.Sessions) - 1; i >= 0; i-- {
			s := d.Sessions[i]
			sb.WriteString(fmt.Sprintf("  %s  %s min\n",
				s.Start.Local().Format("2006-01-02 15:04"),
				humanize.Comma(int64(s.DurationMinutes))))
		}
	}
	sb.WriteString("\n" + theme.Muted.Render("enter: start/stop tracking"))
	return sb.String()
}

const sparklineHeight = 3

// sessionSparkline charts the minutes of the most recent sessions, oldest
// on the left, one column per session.
func sessionSparkline(sessions []dto.SessionOutput, width int) string {
	if width < 1 {
		width = 1
	}
	recent := sessions
	if len(recent) > width {
		recent = recent[len(recent)-width:]
	}
	spark := sparkline.New(width, sparklineHeight)
	for _, s := range recent {
		spark.Push(float64(s.DurationMinutes))
	}
	spark.Draw()
	return theme.Active.Render(spark.View())
}

func (m Model) loadDetailCmd(name string) tea.Cmd {
	return func() tea.Msg {
		detail, err := m.port.GetProject(context.Background(), name)
		return DetailLoadedMsg{Detail: detail, Err: err}
	}
}
