package tui

import "github.com/charmbracelet/lipgloss"

const (
	// maxLogLines bounds the in-memory log tail shown in the bottom pane.
	maxLogLines = 200
)

// Styles for the TUI, defined using the lipgloss library.
var (
	appStyle = lipgloss.NewStyle().Margin(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}).
			Background(lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#303030"}).
			Padding(0, 2)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(lipgloss.Color("#005F87"))

	liveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#007700", Dark: "#00CC00"})

	logPaneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#444444", Dark: "#999999"})

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#CCCCCC"}).
			Background(lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#202020"}).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#888888", Dark: "#666666"})
)
