package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"overseer/internal/audit"
	"overseer/internal/host"
)

const (
	defaultTick = 100 * time.Millisecond

	// Audit queries are cheap but not free; refresh them on a slower
	// cadence than the log pane.
	eventRefreshEvery = 10

	maxLogLines = 200
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	footerStyle = lipgloss.NewStyle().Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type tickMsg time.Time

type model struct {
	sys  *host.System
	tick time.Duration

	logs   viewport.Model
	ready  bool
	width  int
	height int

	started time.Time
	ticks   int
	events  []audit.TaskEvent
}

func newModel(sys *host.System, tick time.Duration) model {
	return model{sys: sys, tick: tick, started: time.Now()}
}

func (m model) tickCmd() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd { return m.tickCmd() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		logHeight := m.height - m.chromeHeight()
		if logHeight < 3 {
			logHeight = 3
		}
		if !m.ready {
			m.logs = viewport.New(m.width, logHeight)
			m.ready = true
		} else {
			m.logs.Width = m.width
			m.logs.Height = logHeight
		}
		return m, nil

	case tickMsg:
		// Level-triggered: once the bus fires, every future tick sees
		// it, so a poll is enough.
		if m.sys.Bus.Signaled() {
			return m, tea.Quit
		}
		m.ticks++
		m.refreshLogs()
		if m.sys.Audit != nil && m.ticks%eventRefreshEvery == 1 {
			m.refreshEvents()
		}
		return m, m.tickCmd()
	}
	return m, nil
}

func (m *model) refreshLogs() {
	if m.sys.LogSvc == nil || !m.ready {
		return
	}
	wasBottom := m.logs.AtBottom()
	m.logs.SetContent(strings.Join(m.sys.LogSvc.Cache().Recent(maxLogLines), "\n"))
	if wasBottom {
		m.logs.GotoBottom()
	}
}

func (m *model) refreshEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if evs, err := m.sys.Audit.Recent(ctx, 5); err == nil {
		m.events = evs
	}
}

func (m model) chromeHeight() int {
	// title + event header + event lines + footer
	return 3 + len(m.events) + 2
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}

	var b strings.Builder
	uptime := time.Since(m.started).Truncate(time.Second)
	b.WriteString(titleStyle.Render(fmt.Sprintf("overseer  up %s", uptime)))
	b.WriteString("\n")

	if len(m.events) > 0 {
		b.WriteString(headerStyle.Render("recent task events"))
		b.WriteString("\n")
		for _, e := range m.events {
			line := fmt.Sprintf("%s  %-10s %s", e.At.Format("15:04:05"), e.Task, e.Event)
			if e.Error != "" {
				line += "  " + errStyle.Render(e.Error)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString(headerStyle.Render("log"))
	b.WriteString("\n")
	b.WriteString(m.logs.View())
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("q to quit"))
	return b.String()
}
