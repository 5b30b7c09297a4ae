package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	syncdto "studysync/internal/modules/sync/dto"
	"studysync/internal/ui/theme"
)

const historyLimit = 20

type Port interface {
	Run(ctx context.Context, direction string) (syncdto.RunOutput, error)
	History(ctx context.Context, limit int) ([]syncdto.RunOutput, error)
}

// RunDoneMsg is emitted when a sync run finishes. The app model also uses it
// to refresh the project list.
type RunDoneMsg struct {
	Out syncdto.RunOutput
	Err error
}

type HistoryLoadedMsg struct {
	Runs []syncdto.RunOutput
	Err  error
}

type outcomeItem struct{ o syncdto.OutcomeOutput }

func (i outcomeItem) Title() string {
	name := i.o.Name
	if name == "" {
		name = i.o.ProjectKey
	}
	return name
}
func (i outcomeItem) Description() string {
	desc := i.o.Phase + "  " + theme.State(i.o.State)
	if i.o.Action != "" {
		desc += "  " + i.o.Action
	}
	if n := len(i.o.Warnings); n > 0 {
		desc += theme.Warn.Render(fmt.Sprintf("  %d warning(s)", n))
	}
	return desc
}
func (i outcomeItem) FilterValue() string { return i.o.ProjectKey + " " + i.o.Name }

type runItem struct{ r syncdto.RunOutput }

func (i runItem) Title() string       { return i.r.FinishedAt.Local().Format("2006-01-02 15:04:05") }
func (i runItem) Description() string { return i.r.Message }
func (i runItem) FilterValue() string { return i.r.RunID }

type mode int

const (
	modeLastRun mode = iota
	modeHistory
)

type Model struct {
	port    Port
	mode    mode
	list    list.Model
	detail  viewport.Model
	spinner spinner.Model
	last    *syncdto.RunOutput
	runs    []syncdto.RunOutput
	running bool
	err     error
	width   int
	height  int
}

func New(port Port) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Peach).BorderForeground(theme.Peach)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Peach)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Sync"
	l.Styles.Title = theme.Title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	vp := viewport.New(0, 0)
	vp.Style = lipgloss.NewStyle().Background(theme.Mantle).Foreground(theme.Text).Padding(1)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Peach)

	m := Model{port: port, list: l, detail: vp, spinner: sp}
	m.detail.SetContent(m.renderDetail())
	return m
}

func (m Model) Init() tea.Cmd {
	return m.loadHistoryCmd()
}

// Start launches a sync run unless one is already running in this view.
func (m *Model) Start(direction string) tea.Cmd {
	if m.running {
		return nil
	}
	m.running = true
	m.err = nil
	m.detail.SetContent(m.renderDetail())
	return tea.Batch(m.spinner.Tick, m.runCmd(direction))
}

func (m Model) Running() bool { return m.running }

// ShowHistory switches the list to past runs and refreshes them.
func (m *Model) ShowHistory() tea.Cmd {
	m.mode = modeHistory
	return tea.Batch(m.setItems(), m.loadHistoryCmd())
}

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

	case RunDoneMsg:
		m.running = false
		m.err = msg.Err
		if msg.Err == nil {
			out := msg.Out
			m.last = &out
			m.mode = modeLastRun
			cmds = append(cmds, m.setItems(), m.loadHistoryCmd())
		}
		m.detail.SetContent(m.renderDetail())

	case HistoryLoadedMsg:
		if msg.Err == nil {
			m.runs = msg.Runs
			if m.mode == modeHistory {
				cmds = append(cmds, m.setItems())
			}
		}

	case spinner.TickMsg:
		if m.running {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		if m.Filtering() {
			break
		}
		switch msg.String() {
		case "r":
			cmds = append(cmds, m.Start("both"))
		case "u":
			cmds = append(cmds, m.Start("upload"))
		case "d":
			cmds = append(cmds, m.Start("download"))
		case "h":
			if m.mode == modeHistory {
				m.mode = modeLastRun
			} else {
				m.mode = modeHistory
			}
			cmds = append(cmds, m.setItems())
		}
	}

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

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	listW := m.width * 4 / 10
	detailW := m.width - listW

	header := theme.Muted.Render("r: sync  u: upload  d: download  h: history")
	if m.running {
		header = m.spinner.View() + " syncing…"
	}
	listPane := lipgloss.NewStyle().Width(listW).Height(m.height).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, m.list.View()))
	detailPane := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.Surface1).
		Background(theme.Mantle).
		Width(detailW - 2).
		Height(m.height - 2).
		Render(m.detail.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

func (m *Model) setItems() tea.Cmd {
	var items []list.Item
	switch m.mode {
	case modeHistory:
		m.list.Title = "Sync: history"
		for i := len(m.runs) - 1; i >= 0; i-- {
			items = append(items, runItem{r: m.runs[i]})
		}
	default:
		m.list.Title = "Sync: last run"
		if m.last != nil {
			for _, o := range m.last.Outcomes {
				items = append(items, outcomeItem{o: o})
			}
		}
	}
	cmd := m.list.SetItems(items)
	m.detail.SetContent(m.renderDetail())
	return cmd
}

func (m *Model) resize() {
	listW := m.width * 4 / 10
	detailW := m.width - listW
	m.list.SetSize(listW, m.height-1)
	m.detail.Width = detailW - 4
	m.detail.Height = m.height - 4
}

func (m Model) renderDetail() string {
	var sb strings.Builder
	if m.err != nil {
		sb.WriteString(theme.Bad.Render("sync failed: "+m.err.Error()) + "\n\n")
	}
	switch item := m.list.SelectedItem().(type) {
	case runItem:
		writeRun(&sb, item.r)
		return sb.String()
	case outcomeItem:
		writeOutcome(&sb, item.o)
		sb.WriteString("\n")
	}
	if m.last == nil {
		sb.WriteString(theme.Muted.Render("No sync has run in this session. Press r to sync."))
		return sb.String()
	}
	writeRun(&sb, *m.last)
	return sb.String()
}

func writeRun(sb *strings.Builder, r syncdto.RunOutput) {
	sb.WriteString(theme.Title.Render(r.Message) + "\n")
	sb.WriteString(theme.Muted.Render(fmt.Sprintf("run %s  %s", r.RunID, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))) + "\n")
	if len(r.Failures) == 0 {
		return
	}
	sb.WriteString("\n" + theme.Bad.Render("Errors") + "\n")
	for _, f := range r.Failures {
		key := f.ProjectKey
		if key == "" {
			key = "run"
		}
		sb.WriteString(fmt.Sprintf("  %s %s [%s] %s\n", theme.Hot.Render(key), f.Phase, f.Kind, f.Reason))
	}
}

func writeOutcome(sb *strings.Builder, o syncdto.OutcomeOutput) {
	sb.WriteString(theme.Title.Render(o.ProjectKey) + "\n")
	sb.WriteString(theme.Muted.Render("phase:  ") + o.Phase + "\n")
	sb.WriteString(theme.Muted.Render("state:  ") + theme.State(o.State) + "\n")
	if o.Action != "" {
		sb.WriteString(theme.Muted.Render("action: ") + o.Action + "\n")
	}
	if o.ProjectID != "" {
		sb.WriteString(theme.Muted.Render("local:  ") + o.ProjectID + "\n")
	}
	if o.Reason != "" {
		sb.WriteString(theme.Muted.Render("reason: ") + o.Reason + "\n")
	}
	for _, w := range o.Warnings {
		sb.WriteString(theme.Warn.Render("  ! "+w) + "\n")
	}
}

func (m Model) runCmd(direction string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.port.Run(context.Background(), direction)
		return RunDoneMsg{Out: out, Err: err}
	}
}

func (m Model) loadHistoryCmd() tea.Cmd {
	return func() tea.Msg {
		runs, err := m.port.History(context.Background(), historyLimit)
		return HistoryLoadedMsg{Runs: runs, Err: err}
	}
}
