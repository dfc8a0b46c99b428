package tui

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vmlink/internal/manager"
	"vmlink/internal/reporting"
	"vmlink/pkg/logging"
)

// Model is the bubbletea model for the endpoint monitor launched by
// `vmlink connect`. It renders the manager's current endpoint table, a log
// tail, and a status bar, and quits (stopping the manager) on q/ctrl+c.
type Model struct {
	mgr     *manager.Manager
	events  *reporting.EventSubscription
	logCh   <-chan logging.LogEntry
	spinner spinner.Model

	endpoints []manager.Endpoint
	selected  int
	logs      []string
	status    string

	width    int
	height   int
	quitting bool
}

// NewModel creates the monitor model. events must be a subscription on the
// manager's bus; logCh is the channel returned by logging.InitForTUI.
func NewModel(mgr *manager.Manager, events *reporting.EventSubscription, logCh <-chan logging.LogEntry) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#00CC00"))

	return Model{
		mgr:       mgr,
		events:    events,
		logCh:     logCh,
		spinner:   sp,
		endpoints: mgr.Endpoints(),
		status:    fmt.Sprintf("connected to %s", mgr.Address()),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForEvent(m.events),
		waitForLog(m.logCh),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case lifecycleEventMsg:
		m.endpoints = m.mgr.Endpoints()
		if m.selected >= len(m.endpoints) {
			m.selected = max(0, len(m.endpoints)-1)
		}
		m.appendLog(msg.event.String())
		return m, waitForEvent(m.events)

	case eventStreamClosedMsg:
		// The manager stopped underneath us.
		m.status = "event stream closed"
		return m, tea.Quit

	case logEntryMsg:
		m.appendLog(fmt.Sprintf("[%s] %s: %s", msg.entry.Level, msg.entry.Subsystem, msg.entry.Message))
		return m, waitForLog(m.logCh)

	case logStreamClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.endpoints)-1 {
			m.selected++
		}
	case "c":
		if m.selected < len(m.endpoints) {
			uri := m.endpoints[m.selected].URI
			if err := clipboard.WriteAll(uri); err != nil {
				m.status = fmt.Sprintf("clipboard copy failed: %v", err)
			} else {
				m.status = fmt.Sprintf("copied %s", uri)
			}
		}
	}
	return m, nil
}

func (m *Model) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

// Quitting reports whether the user asked to leave the monitor.
func (m Model) Quitting() bool {
	return m.quitting
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
