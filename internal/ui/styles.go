package ui

import "github.com/charmbracelet/lipgloss"

var (
	// TitleStyle ANSI 6 (Cyan), readable on light and dark terminals
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)

	// UsageStyle ANSI 2 (Green) for arguments and usage lines
	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	// DescStyle ANSI 8 (Bright Black / Gray) for descriptions
	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	// FlagStyle ANSI 3 (Yellow) for flags
	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	// ThinkingStyle dims reasoning output so it reads apart from content
	ThinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)

	// ToolStyle ANSI 5 (Magenta) for tool-call notices
	ToolStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))

	// ErrorStyle ANSI 1 (Red)
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)

	// PromptStyle marks the user input line in the chat view
	PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
)
