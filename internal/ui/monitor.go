// Package ui renders a live view of a running kernel: tick count, ready
// queue depth, live tasks and wakeup counters, fed by periodic stats
// snapshots.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"nucleus/internal/sched"
)

// StatsMsg is one snapshot of the running kernel.
type StatsMsg struct {
	Stats   sched.Stats
	Tick    uint64
	Pending int // sleep registrations outstanding
}

// DoneMsg signals that the workload finished and the monitor should exit.
type DoneMsg struct{}

type monitorModel struct {
	title   string
	updates <-chan StatsMsg
	spinner spinner.Model
	latest  StatsMsg
	width   int
	done    bool
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
)

// NewMonitorModel returns a Bubble Tea model that renders kernel stats until
// the updates channel closes.
func NewMonitorModel(title string, updates <-chan StatsMsg) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	return &monitorModel{
		title:   title,
		updates: updates,
		spinner: sp,
		width:   80,
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForUpdate())
}

func (m *monitorModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.updates
		if !ok {
			return DoneMsg{}
		}
		return s
	}
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StatsMsg:
		m.latest = msg
		return m, m.waitForUpdate()
	case DoneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *monitorModel) View() string {
	var sb strings.Builder

	title := runewidth.Truncate(m.title, max(m.width-4, 8), "…")
	sb.WriteString(titleStyle.Render(title))
	sb.WriteByte('\n')

	s := m.latest
	rows := []struct {
		label string
		value string
	}{
		{"tick", fmt.Sprintf("%d", s.Tick)},
		{"live tasks", fmt.Sprintf("%d", s.Stats.Live)},
		{"ready depth", fmt.Sprintf("%d", s.Stats.ReadyDepth)},
		{"sleeping", fmt.Sprintf("%d", s.Pending)},
		{"polls", fmt.Sprintf("%d", s.Stats.Polls)},
		{"completed", fmt.Sprintf("%d/%d", s.Stats.Completed, s.Stats.Spawned)},
		{"stale wakes", fmt.Sprintf("%d", s.Stats.StaleWakes)},
	}
	for _, row := range rows {
		sb.WriteString("  ")
		sb.WriteString(labelStyle.Render(runewidth.FillRight(row.label, 12)))
		sb.WriteString(valueStyle.Render(row.value))
		sb.WriteByte('\n')
	}

	if m.done {
		sb.WriteString(doneStyle.Render("done"))
	} else {
		sb.WriteString(m.spinner.View())
		sb.WriteString(" running (q to quit)")
	}
	sb.WriteByte('\n')
	return sb.String()
}
