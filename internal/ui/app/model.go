package app

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"timelog/internal/modules/timelog/dto"
	"timelog/internal/ui/components"
	"timelog/internal/ui/theme"
	projectsview "timelog/internal/ui/views/projects"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type logPort interface {
	AddProject(ctx context.Context, name string) (dto.ProjectOutput, error)
	ActivateProject(ctx context.Context, name string) error
	DeactivateProject(ctx context.Context, name string) error
	DeactivateAllProjects(ctx context.Context) error
	ListProjects(ctx context.Context) ([]dto.ProjectOutput, error)
	GetProject(ctx context.Context, name string) (dto.ProjectDetailOutput, error)
}

// paletteCommands must stay in sync with the switch in executePalette.
var paletteCommands = []string{
	"project:add <name>",
	"project:activate <name>",
	"project:deactivate <name>",
	"project:deactivate-all",
	"project:reload",
}

// ─── async messages ───────────────────────────────────────────────────────────

// actionDoneMsg reports the outcome of a mutating command; the list is
// reloaded after every one of them.
type actionDoneMsg struct {
	status string
	err    error
}

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Help    key.Binding
	Palette key.Binding
	Quit    key.Binding
	Toggle  key.Binding
	StopAll key.Binding
	Reload  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette: key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
		Toggle:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start/stop")),
		StopAll: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop all")),
		Reload:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Help, k.Palette, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.StopAll, k.Reload},
		{k.Help, k.Palette, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model. It owns the help overlay, the command
// palette and the status bar; the project list and detail pane live in the
// projects view.
type Model struct {
	log      logPort
	projects projectsview.Model
	watch    *StoreWatcher

	keys     keyMap
	help     help.Model
	showHelp bool
	palette  components.Palette
	status   string
	failed   bool
	width    int
	height   int
}

func NewModel(log logPort) Model {
	return Model{
		log:      log,
		projects: projectsview.New(log),
		keys:     defaultKeys(),
		help:     help.New(),
		palette:  components.NewPalette(paletteCommands),
		status:   "ready",
	}
}

// WithWatcher reloads the project list whenever w reports a change.
func (m Model) WithWatcher(w *StoreWatcher) Model {
	m.watch = w
	return m
}

func (m Model) Init() tea.Cmd {
	if m.watch == nil {
		return m.projects.Init()
	}
	return tea.Batch(m.projects.Init(), m.watch.next())
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// The palette intercepts keys while open; async results still land below.
	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		if _, isKey := msg.(tea.KeyMsg); isKey {
			return m, cmd
		}
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		var cmd tea.Cmd
		m.projects, cmd = m.projects.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height - 3})
		return m, cmd

	case actionDoneMsg:
		m.failed = msg.err != nil
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.status = msg.status
		}
		return m, tea.Batch(append(cmds, m.projects.Reload())...)

	case storeChangedMsg:
		return m, tea.Batch(append(cmds, m.projects.Reload(), m.watch.next())...)

	case watchErrMsg:
		m.failed = true
		m.status = "watch: " + msg.err.Error()
		return m, tea.Batch(append(cmds, m.watch.next())...)

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}

		// Yield to the list while its search filter is open.
		if m.projects.Filtering() {
			break
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		case ":":
			return m, m.palette.Open()
		case "enter":
			if selected, ok := m.projects.Selected(); ok {
				if selected.Active {
					return m, m.deactivateCmd(selected.Name)
				}
				return m, m.activateCmd(selected.Name)
			}
			return m, nil
		case "x":
			return m, m.deactivateAllCmd()
		case "r":
			return m, m.projects.Reload()
		}
	}

	var cmd tea.Cmd
	m.projects, cmd = m.projects.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	titleBar := m.renderTitleBar()
	statusBar := m.renderStatusBar()

	contentH := m.height - lipgloss.Height(titleBar) - lipgloss.Height(statusBar)
	if contentH < 1 {
		contentH = 1
	}

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).
			Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH,
			lipgloss.Center, lipgloss.Center, m.palette.View())
	default:
		content = m.projects.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, titleBar, content, statusBar)
}

func (m Model) renderTitleBar() string {
	bar := theme.Hot.Render(" timelog ")
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderStatusBar() string {
	left := m.status
	if m.failed {
		left = theme.Error.Render(left)
	}
	right := theme.Muted.Render("?:help  enter:start/stop  :::palette  q:quit")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette execution ────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	if strings.TrimSpace(input) == "" {
		return m, nil
	}
	parts := strings.Fields(input)
	arg := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))

	switch parts[0] {
	case "project:add":
		if arg == "" {
			m.status = "usage: project:add <name>"
			return m, nil
		}
		return m, m.addCmd(arg)

	case "project:activate":
		if arg == "" {
			m.status = "usage: project:activate <name>"
			return m, nil
		}
		return m, m.activateCmd(arg)

	case "project:deactivate":
		if arg == "" {
			m.status = "usage: project:deactivate <name>"
			return m, nil
		}
		return m, m.deactivateCmd(arg)

	case "project:deactivate-all":
		return m, m.deactivateAllCmd()

	case "project:reload":
		m.status = "reloaded"
		return m, m.projects.Reload()

	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

// ─── async commands ───────────────────────────────────────────────────────────

func (m Model) addCmd(name string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.log.AddProject(context.Background(), name)
		return actionDoneMsg{status: "added " + name, err: err}
	}
}

func (m Model) activateCmd(name string) tea.Cmd {
	return func() tea.Msg {
		err := m.log.ActivateProject(context.Background(), name)
		return actionDoneMsg{status: "tracking " + name, err: err}
	}
}

func (m Model) deactivateCmd(name string) tea.Cmd {
	return func() tea.Msg {
		err := m.log.DeactivateProject(context.Background(), name)
		return actionDoneMsg{status: "stopped " + name, err: err}
	}
}

func (m Model) deactivateAllCmd() tea.Cmd {
	return func() tea.Msg {
		err := m.log.DeactivateAllProjects(context.Background())
		return actionDoneMsg{status: "stopped all projects", err: err}
	}
}
