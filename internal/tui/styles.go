package tui

import (
	"charm.land/lipgloss/v2"
)

// Accent color for the marketmate banner.
const accentGreen = "#26A269"

var banner = []string{
	"  ┌─┐┌─┐┬─┐┬┌─┌─┐┌┬┐┌┬┐┌─┐┌┬┐┌─┐",
	"  │││├─┤├┬┘├┴┐├┤  │ │││├─┤ │ ├┤ ",
	"  ┴ ┴┴ ┴┴└─┴ ┴└─┘ ┴ ┴ ┴┴ ┴ ┴ └─┘",
}

// Styles contains all lipgloss styles for the TUI.
type Styles struct {
	Banner      lipgloss.Style
	User        lipgloss.Style
	Assistant   lipgloss.Style
	System      lipgloss.Style
	Error       lipgloss.Style
	Prompt      lipgloss.Style
	Separator   lipgloss.Style
	WidgetTitle lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Banner:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accentGreen)),
		User:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Assistant:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		System:      lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		Error:       lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Prompt:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Separator:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		WidgetTitle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("110")),
	}
}

// RenderBanner draws the startup banner.
func (s Styles) RenderBanner() string {
	out := ""
	for _, line := range banner {
		out += s.Banner.Render(line) + "\n"
	}
	return out
}
