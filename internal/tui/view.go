package tui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := fmt.Sprintf("vmlink %s %s", m.spinner.View(), m.mgr.Address())
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n\n")

	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf("  %-12s %-12s %s", "REMOTE PORT", "LOCAL PORT", "URI")))
	b.WriteString("\n")

	if len(m.endpoints) == 0 {
		b.WriteString(logPaneStyle.Render("  no endpoints discovered yet"))
		b.WriteString("\n")
	}
	for i, ep := range m.endpoints {
		row := fmt.Sprintf("  %-12d %-12d %s", ep.RemotePort, ep.LocalPort, ep.URI)
		if i == m.selected {
			b.WriteString(selectedRowStyle.Render(row))
		} else {
			b.WriteString(liveStyle.Render(row))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	for _, line := range m.logTail() {
		b.WriteString(logPaneStyle.Render(m.truncate(line)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(statusBarStyle.Render(m.truncate(m.status)))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ select · c copy uri · q quit"))

	return appStyle.Render(b.String())
}

// logTail returns the slice of the log that fits under the endpoint table.
func (m Model) logTail() []string {
	// Header, blank lines, table, status bar, help line.
	used := 7 + len(m.endpoints)
	avail := m.height - used
	if avail < 0 {
		avail = 0
	}
	if avail > len(m.logs) {
		return m.logs
	}
	return m.logs[len(m.logs)-avail:]
}

func (m Model) truncate(line string) string {
	if m.width <= 2 {
		return line
	}
	return runewidth.Truncate(line, m.width-2, "…")
}
