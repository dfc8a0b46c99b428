package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"vmlink/internal/reporting"
	"vmlink/pkg/logging"
)

type lifecycleEventMsg struct {
	event reporting.LifecycleEvent
}

type eventStreamClosedMsg struct{}

type logEntryMsg struct {
	entry logging.LogEntry
}

type logStreamClosedMsg struct{}

// waitForEvent returns a tea.Cmd that blocks for the next lifecycle event
// on the subscription. Channel close (manager stopped) is reported as its
// own message so the model can shut down.
func waitForEvent(sub *reporting.EventSubscription) tea.Cmd {
	return func() tea.Msg {
		if sub == nil || sub.Channel == nil {
			return eventStreamClosedMsg{}
		}
		event, ok := <-sub.Channel
		if !ok {
			return eventStreamClosedMsg{}
		}
		return lifecycleEventMsg{event: event}
	}
}

// waitForLog returns a tea.Cmd that blocks for the next log entry.
func waitForLog(ch <-chan logging.LogEntry) tea.Cmd {
	return func() tea.Msg {
		if ch == nil {
			return logStreamClosedMsg{}
		}
		entry, ok := <-ch
		if !ok {
			return logStreamClosedMsg{}
		}
		return logEntryMsg{entry: entry}
	}
}
