package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	plugindto "studysync/internal/modules/plugin/dto"
	"studysync/internal/ui/theme"
)

// Port is the minimal interface this view needs from the plugin use-case.
type Port interface {
	List(ctx context.Context) ([]plugindto.PluginInfo, error)
	Doctor(ctx context.Context) ([]plugindto.DoctorResult, error)
}

type PluginsLoadedMsg struct {
	Plugins []plugindto.PluginInfo
	Err     error
}

// DoctorDoneMsg carries the result of checking every installed plugin.
type DoctorDoneMsg struct {
	Results []plugindto.DoctorResult
	Err     error
}

type pluginItem struct{ p plugindto.PluginInfo }

func (i pluginItem) Title() string { return i.p.Name + " " + i.p.Version }
func (i pluginItem) Description() string {
	state := theme.Good.Render("enabled")
	if !i.p.Enabled {
		state = theme.Muted.Render("disabled")
	}
	return state + "  " + strings.Join(i.p.Capabilities, ", ")
}
func (i pluginItem) FilterValue() string { return i.p.Name }

// Model shows installed transport plugins and their health.
type Model struct {
	port    Port
	list    list.Model
	detail  viewport.Model
	spinner spinner.Model
	doctor  map[string]plugindto.DoctorResult
	loadErr error
	loading bool
	width   int
	height  int
}

func New(port Port) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Plugins"
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
		detail:  vp,
		spinner: sp,
		doctor:  map[string]plugindto.DoctorResult{},
		loading: port != nil,
	}
}

func (m Model) Init() tea.Cmd {
	if m.port == nil {
		return nil
	}
	return tea.Batch(m.loadCmd(), m.spinner.Tick)
}

// RunDoctor checks every plugin, starting the enabled ones.
func (m *Model) RunDoctor() tea.Cmd {
	if m.port == nil {
		return nil
	}
	m.loading = true
	return tea.Batch(m.doctorCmd(), m.spinner.Tick)
}

// Filtering reports whether the list's search filter is active.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case PluginsLoadedMsg:
		m.loading = false
		m.loadErr = msg.Err
		if msg.Err == nil {
			items := make([]list.Item, len(msg.Plugins))
			for i, p := range msg.Plugins {
				items[i] = pluginItem{p: p}
			}
			cmds = append(cmds, m.list.SetItems(items))
		}
		m.detail.SetContent(m.renderDetail())

	case DoctorDoneMsg:
		m.loading = false
		if msg.Err != nil {
			m.loadErr = msg.Err
		} else {
			for _, r := range msg.Results {
				m.doctor[r.Name] = r
			}
		}
		m.detail.SetContent(m.renderDetail())

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		if !m.Filtering() && msg.String() == "c" {
			cmds = append(cmds, m.RunDoctor())
			return m, tea.Batch(cmds...)
		}
	}

	if !m.loading {
		prevIdx := m.list.Index()
		var lCmd tea.Cmd
		m.list, lCmd = m.list.Update(msg)
		cmds = append(cmds, lCmd)
		if m.list.Index() != prevIdx {
			m.detail.SetContent(m.renderDetail())
		}
		var vCmd tea.Cmd
		m.detail, vCmd = m.detail.Update(msg)
		cmds = append(cmds, vCmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.loading {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Checking plugins…")
	}
	listW := m.width * 4 / 10
	detailW := m.width - listW
	listPane := lipgloss.NewStyle().Width(listW).Height(m.height).Render(m.list.View())
	detailPane := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).BorderForeground(theme.Surface1).
		Background(theme.Mantle).Width(detailW - 2).Height(m.height - 2).
		Render(m.detail.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

func (m *Model) resize() {
	listW := m.width * 4 / 10
	m.list.SetSize(listW, m.height)
	m.detail.Width = m.width - listW - 4
	m.detail.Height = m.height - 4
}

func (m Model) renderDetail() string {
	if m.port == nil {
		return theme.Muted.Render("Plugins are not available in this session.")
	}
	if m.loadErr != nil {
		return theme.Bad.Render("Error: " + m.loadErr.Error())
	}
	item, ok := m.list.SelectedItem().(pluginItem)
	if !ok {
		return theme.Muted.Render("No plugins installed. Add them to plugins/plugins.yaml in the data dir.")
	}
	p := item.p
	var sb strings.Builder
	sb.WriteString(theme.Title.Render(p.Name) + "\n\n")
	sb.WriteString(theme.Muted.Render("version: ") + p.Version + "\n")
	sb.WriteString(theme.Muted.Render("binary:  ") + p.Binary + "\n")
	sb.WriteString(theme.Muted.Render("caps:    ") + strings.Join(p.Capabilities, ", ") + "\n")

	r, checked := m.doctor[p.Name]
	sb.WriteString("\n" + theme.Title.Render("Health") + "\n")
	if !checked {
		sb.WriteString(theme.Muted.Render("not checked, press c") + "\n")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("binary:   %s\n", yesNo(r.BinaryReachable)))
	sb.WriteString(fmt.Sprintf("checksum: %s\n", yesNo(r.ChecksumValid)))
	sb.WriteString(fmt.Sprintf("starts:   %s\n", yesNo(r.LifecycleOK)))
	if r.ReportedVersion != "" && r.ReportedVersion != p.Version {
		sb.WriteString(theme.Warn.Render("reports version "+r.ReportedVersion) + "\n")
	}
	if r.Error != "" {
		sb.WriteString(theme.Bad.Render(r.Error) + "\n")
	}
	return sb.String()
}

func yesNo(ok bool) string {
	if ok {
		return theme.Good.Render("ok")
	}
	return theme.Bad.Render("no")
}

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		plugins, err := m.port.List(context.Background())
		return PluginsLoadedMsg{Plugins: plugins, Err: err}
	}
}

func (m Model) doctorCmd() tea.Cmd {
	return func() tea.Msg {
		results, err := m.port.Doctor(context.Background())
		return DoctorDoneMsg{Results: results, Err: err}
	}
}
