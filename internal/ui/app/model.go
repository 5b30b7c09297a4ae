package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	plugindto "studysync/internal/modules/plugin/dto"
	studydto "studysync/internal/modules/study/dto"
	syncdto "studysync/internal/modules/sync/dto"
	"studysync/internal/ui/components"
	"studysync/internal/ui/theme"
	pluginsview "studysync/internal/ui/views/plugins"
	projectsview "studysync/internal/ui/views/projects"
	syncview "studysync/internal/ui/views/sync"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type StudyPort interface {
	ListProjects(ctx context.Context) ([]studydto.ProjectOutput, error)
	GetProject(ctx context.Context, id string) (studydto.ProjectDetailOutput, error)
	RecordReview(ctx context.Context, projectID string, index int, learned bool, difficult *bool) (studydto.SegmentOutput, error)
	RenameSpeaker(ctx context.Context, projectID, label, name string) (studydto.SpeakerOutput, error)
}

type SyncPort interface {
	Run(ctx context.Context, direction string) (syncdto.RunOutput, error)
	History(ctx context.Context, limit int) ([]syncdto.RunOutput, error)
}

type PluginPort interface {
	List(ctx context.Context) ([]plugindto.PluginInfo, error)
	Doctor(ctx context.Context) ([]plugindto.DoctorResult, error)
}

// ─── tab index ───────────────────────────────────────────────────────────────

type tabID int

const (
	tabProjects tabID = iota
	tabSync
	tabPlugins
	tabCount
)

var tabLabels = [tabCount]string{"Projects", "Sync", "Plugins"}

// paletteHints must match the switch in executePalette.
var paletteHints = []string{
	"sync:run [both|upload|download]",
	"sync:history",
	"review <index> <learned|unlearned> [difficult|easy]",
	"rename <label> <name>",
	"plugin:doctor",
}

type reviewDoneMsg struct {
	seg studydto.SegmentOutput
	err error
}

type renameDoneMsg struct {
	speaker studydto.SpeakerOutput
	err     error
}

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Tab     key.Binding
	Help    key.Binding
	Palette key.Binding
	Quit    key.Binding
	Sync    key.Binding
	Upload  key.Binding
	Down    key.Binding
	Hist    key.Binding
	Check   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette: key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
		Sync:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "sync (Sync tab)")),
		Upload:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "upload only")),
		Down:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "download only")),
		Hist:    key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "history")),
		Check:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "check plugins")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Help, k.Palette, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Sync, k.Upload, k.Down, k.Hist},
		{k.Check},
		{k.Help, k.Palette, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model. It routes tabs, the help overlay and
// the command palette, and leaves rendering to the sub-views.
type Model struct {
	study StudyPort

	projView   projectsview.Model
	syncView   syncview.Model
	pluginView pluginsview.Model

	activeTab tabID
	keys      keyMap
	help      help.Model
	showHelp  bool
	palette   components.Palette
	status    string
	width     int
	height    int
}

func NewModel(study StudyPort, syncPort SyncPort, plugin PluginPort) Model {
	return Model{
		study:      study,
		projView:   projectsview.New(study),
		syncView:   syncview.New(syncPort),
		pluginView: pluginsview.New(plugin),
		activeTab:  tabProjects,
		keys:       defaultKeys(),
		help:       help.New(),
		palette:    components.NewPalette(paletteHints),
		status:     "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.projView.Init(), m.syncView.Init(), m.pluginView.Init())
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		if _, ok := msg.(tea.KeyMsg); ok {
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
		m.propagateSize()
		return m, nil

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	// Results from other tabs' async work are routed to their owners
	// regardless of which tab is showing.
	case projectsview.ProjectsLoadedMsg, projectsview.DetailLoadedMsg:
		var cmd tea.Cmd
		m.projView, cmd = m.projView.Update(msg)
		return m, cmd

	case syncview.RunDoneMsg:
		if msg.Err != nil {
			m.status = "sync: " + msg.Err.Error()
		} else {
			m.status = msg.Out.Message
		}
		var cmd tea.Cmd
		m.syncView, cmd = m.syncView.Update(msg)
		return m, tea.Batch(cmd, m.projView.Reload())

	case syncview.HistoryLoadedMsg:
		var cmd tea.Cmd
		m.syncView, cmd = m.syncView.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var projCmd, syncCmd, pluginCmd tea.Cmd
		m.projView, projCmd = m.projView.Update(msg)
		m.syncView, syncCmd = m.syncView.Update(msg)
		m.pluginView, pluginCmd = m.pluginView.Update(msg)
		return m, tea.Batch(append(cmds, projCmd, syncCmd, pluginCmd)...)

	case pluginsview.PluginsLoadedMsg, pluginsview.DoctorDoneMsg:
		var cmd tea.Cmd
		m.pluginView, cmd = m.pluginView.Update(msg)
		return m, cmd

	case reviewDoneMsg:
		if msg.err != nil {
			m.status = "review: " + msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("segment %d: learned=%t count=%d", msg.seg.Index, msg.seg.Learned, msg.seg.LearnCount)
		return m, m.projView.Reload()

	case renameDoneMsg:
		if msg.err != nil {
			m.status = "rename: " + msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("speaker %s is now %s", msg.speaker.Label, msg.speaker.Name)
		return m, m.projView.Reload()

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		if m.subViewFiltering() {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab + tabCount - 1) % tabCount
			return m, nil
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		case ":":
			return m, m.palette.Open()
		}
	}

	var tabCmd tea.Cmd
	switch m.activeTab {
	case tabProjects:
		m.projView, tabCmd = m.projView.Update(msg)
	case tabSync:
		m.syncView, tabCmd = m.syncView.Update(msg)
	case tabPlugins:
		m.pluginView, tabCmd = m.pluginView.Update(msg)
	}
	cmds = append(cmds, tabCmd)
	return m, tea.Batch(cmds...)
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	tabBar := m.renderTabBar()
	statusBar := m.renderStatusBar()
	contentH := m.height - lipgloss.Height(tabBar) - lipgloss.Height(statusBar)
	if contentH < 1 {
		contentH = 1
	}

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH, lipgloss.Center, lipgloss.Center, m.palette.View())
	default:
		content = m.activeView()
	}
	return lipgloss.JoinVertical(lipgloss.Left, tabBar, content, statusBar)
}

func (m Model) activeView() string {
	switch m.activeTab {
	case tabProjects:
		return m.projView.View()
	case tabSync:
		return m.syncView.View()
	case tabPlugins:
		return m.pluginView.View()
	}
	return ""
}

func (m Model) renderTabBar() string {
	parts := make([]string, tabCount)
	for i := tabID(0); i < tabCount; i++ {
		if i == m.activeTab {
			parts[i] = theme.Hot.Render(" " + tabLabels[i] + " ")
		} else {
			parts[i] = theme.Muted.Render(" " + tabLabels[i] + " ")
		}
	}
	bar := "studysync  " + strings.Join(parts, theme.Muted.Render(" │ "))
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderStatusBar() string {
	left := m.status
	if m.syncView.Running() {
		left = theme.Hot.Render("● syncing") + "  " + left
	}
	right := theme.Muted.Render("?:help  tab:switch  :::palette  q:quit")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette execution ────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	selected, _ := m.projView.SelectedProjectID()

	switch parts[0] {
	case "sync:run":
		direction := "both"
		if len(parts) > 1 {
			direction = parts[1]
		}
		m.activeTab = tabSync
		return m, m.syncView.Start(direction)

	case "sync:history":
		m.activeTab = tabSync
		return m, m.syncView.ShowHistory()

	case "review":
		if selected == "" {
			m.status = "no project selected"
			return m, nil
		}
		if len(parts) < 3 {
			m.status = "usage: review <index> <learned|unlearned> [difficult|easy]"
			return m, nil
		}
		index, err := strconv.Atoi(parts[1])
		if err != nil {
			m.status = "invalid index"
			return m, nil
		}
		var learned bool
		switch parts[2] {
		case "learned":
			learned = true
		case "unlearned":
		default:
			m.status = "expected learned or unlearned"
			return m, nil
		}
		var difficult *bool
		if len(parts) > 3 {
			d := parts[3] == "difficult"
			difficult = &d
		}
		return m, m.reviewCmd(selected, index, learned, difficult)

	case "rename":
		if selected == "" {
			m.status = "no project selected"
			return m, nil
		}
		if len(parts) < 3 {
			m.status = "usage: rename <label> <name>"
			return m, nil
		}
		name := strings.Join(parts[2:], " ")
		return m, m.renameCmd(selected, parts[1], name)

	case "plugin:doctor":
		m.activeTab = tabPlugins
		return m, m.pluginView.RunDoctor()

	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (m Model) subViewFiltering() bool {
	switch m.activeTab {
	case tabProjects:
		return m.projView.Filtering()
	case tabSync:
		return m.syncView.Filtering()
	case tabPlugins:
		return m.pluginView.Filtering()
	}
	return false
}

func (m *Model) propagateSize() {
	sz := tea.WindowSizeMsg{Width: m.width, Height: m.height - 3}
	m.projView, _ = m.projView.Update(sz)
	m.syncView, _ = m.syncView.Update(sz)
	m.pluginView, _ = m.pluginView.Update(sz)
}

func (m Model) reviewCmd(projectID string, index int, learned bool, difficult *bool) tea.Cmd {
	return func() tea.Msg {
		seg, err := m.study.RecordReview(context.Background(), projectID, index, learned, difficult)
		return reviewDoneMsg{seg: seg, err: err}
	}
}

func (m Model) renameCmd(projectID, label, name string) tea.Cmd {
	return func() tea.Msg {
		sp, err := m.study.RenameSpeaker(context.Background(), projectID, label, name)
		return renameDoneMsg{speaker: sp, err: err}
	}
}
