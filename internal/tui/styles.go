// Package tui holds the lipgloss styles and bubbles key bindings shared by
// the store's terminal browsers (cmd/walview), adapted from the teacher's
// pkg/debug/ui/styles.go palette and key map.
package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

var (
	PrimaryColor = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7C3AED"}
	SuccessColor = lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#10B981"}
	WarningColor = lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#F59E0B"}
	ErrorColor   = lipgloss.AdaptiveColor{Light: "#FF5F56", Dark: "#EF4444"}
	MutedColor   = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#94A3B8"}
	FgColor      = lipgloss.AdaptiveColor{Light: "#1E1E2E", Dark: "#CDD6F4"}
)

var (
	TitleStyle = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true).Padding(0, 1).MarginBottom(1)

	HeaderStyle = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true).
			BorderStyle(lipgloss.RoundedBorder()).BorderForeground(PrimaryColor).Padding(0, 1)

	SelectedItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).
				Background(PrimaryColor).Bold(true).Padding(0, 1)

	ItemStyle = lipgloss.NewStyle().Foreground(FgColor).Padding(0, 1)

	DetailStyle = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).Padding(1, 2).MarginTop(1)

	LabelStyle = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true)
	ValueStyle = lipgloss.NewStyle().Foreground(FgColor)

	HelpStyle = lipgloss.NewStyle().Foreground(MutedColor).MarginTop(1).Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).
			Background(PrimaryColor).Padding(0, 1).MarginTop(1)

	ErrorStyle = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true).Padding(1)
)

// KeyMap is the navigation key set every browser model shares.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Back   key.Binding
	Quit   key.Binding
}

var Keys = KeyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("up/k", "move up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("down/j", "move down")),
	Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "view details")),
	Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}
