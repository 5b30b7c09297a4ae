package projects

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	studydto "studysync/internal/modules/study/dto"
	"studysync/internal/ui/theme"
)

type Port interface {
	ListProjects(ctx context.Context) ([]studydto.ProjectOutput, error)
	GetProject(ctx context.Context, id string) (studydto.ProjectDetailOutput, error)
}

type ProjectsLoadedMsg struct {
	Projects []studydto.ProjectOutput
	Err      error
}

type DetailLoadedMsg struct {
	Detail studydto.ProjectDetailOutput
	Err    error
}

type projectItem struct {
	project studydto.ProjectOutput
}

func (i projectItem) Title() string { return i.project.Name }
func (i projectItem) Description() string {
	return fmt.Sprintf("%s  %d/%d learned", i.project.Status, i.project.Learned, i.project.TotalSegments)
}
func (i projectItem) FilterValue() string { return i.project.Name + " " + i.project.SyncKey }

// Model lists local projects next to the transcript of the selected one.
type Model struct {
	port    Port
	list    list.Model
	detail  studydto.ProjectDetailOutput
	preview viewport.Model
	spinner spinner.Model
	loading bool
	width   int
	height  int
}

func New(port Port) Model {
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
	vp.Style = lipgloss.NewStyle().Background(theme.Mantle).Foreground(theme.Text).Padding(1)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	return Model{port: port, list: l, preview: vp, spinner: sp, loading: true}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.Reload(), m.spinner.Tick)
}

// Reload fetches the project list again, for instance after a sync.
func (m Model) Reload() tea.Cmd {
	return func() tea.Msg {
		projects, err := m.port.ListProjects(context.Background())
		return ProjectsLoadedMsg{Projects: projects, Err: err}
	}
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
		if id, ok := m.SelectedProjectID(); ok {
			cmds = append(cmds, m.loadDetailCmd(id))
		} else {
			m.detail = studydto.ProjectDetailOutput{}
			m.preview.SetContent(m.renderDetail())
		}

	case DetailLoadedMsg:
		if msg.Err == nil {
			m.detail = msg.Detail
			m.preview.SetContent(m.renderDetail())
		}

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if !m.loading {
		var lCmd tea.Cmd
		prevIdx := m.list.Index()
		m.list, lCmd = m.list.Update(msg)
		cmds = append(cmds, lCmd)
		if m.list.Index() != prevIdx {
			if id, ok := m.SelectedProjectID(); ok {
				cmds = append(cmds, m.loadDetailCmd(id))
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

	listPane := lipgloss.NewStyle().Width(listW).Height(m.height).Render(m.list.View())
	detailPane := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.Surface1).
		Background(theme.Mantle).
		Width(detailW - 2).
		Height(m.height - 2).
		Render(m.preview.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

func (m Model) SelectedProjectID() (string, bool) {
	if item, ok := m.list.SelectedItem().(projectItem); ok {
		return item.project.ID, true
	}
	return "", false
}

// Filtering reports whether the list's search filter is active.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

func (m *Model) resize() {
	listW := m.width * 4 / 10
	detailW := m.width - listW
	m.list.SetSize(listW, m.height)
	m.preview.Width = detailW - 4
	m.preview.Height = m.height - 4
}

func (m Model) renderDetail() string {
	p := m.detail.Project
	if p.ID == "" {
		return theme.Muted.Render("Select a project to see its transcript")
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render(p.Name) + "\n\n")
	sb.WriteString(theme.Muted.Render("id:       ") + p.ID + "\n")
	sb.WriteString(theme.Muted.Render("sync key: ") + p.SyncKey + "\n")
	sb.WriteString(theme.Muted.Render("status:   ") + p.Status + "\n")
	sb.WriteString(fmt.Sprintf("%s%d / %d\n", theme.Muted.Render("learned:  "), p.Learned, p.TotalSegments))

	if len(m.detail.Speakers) > 0 {
		sb.WriteString("\n" + theme.Title.Render("Speakers") + "\n")
		for _, sp := range m.detail.Speakers {
			name := sp.Name
			if name == "" {
				name = theme.Muted.Render("(unnamed)")
			}
			marker := ""
			if sp.IsManual {
				marker = theme.Hot.Render(" ✎")
			}
			sb.WriteString(fmt.Sprintf("  %s  %s%s\n", sp.Label, name, marker))
		}
	}

	sb.WriteString("\n" + theme.Title.Render("Segments") + "\n")
	for _, seg := range m.detail.Segments {
		mark := theme.Muted.Render("○")
		if seg.Learned {
			mark = theme.Good.Render("●")
		}
		if seg.IsDifficult {
			mark += theme.Warn.Render("!")
		}
		sb.WriteString(fmt.Sprintf("%s %3d  %s %s\n", mark, seg.Index, theme.Muted.Render("["+seg.SpeakerLabel+"]"), seg.Text))
		if seg.Translation != "" {
			sb.WriteString("        " + theme.Muted.Render(seg.Translation) + "\n")
		}
	}
	sb.WriteString("\n" + theme.Muted.Render(":review <index> learned|unlearned   :rename <label> <name>"))
	return sb.String()
}

func (m Model) loadDetailCmd(id string) tea.Cmd {
	return func() tea.Msg {
		detail, err := m.port.GetProject(context.Background(), id)
		return DetailLoadedMsg{Detail: detail, Err: err}
	}
}
