package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bitop-dev/chat"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	otherStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	statusStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#87ceeb"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555"))
)

// Label is the prefix shown before an entry, e.g. "user: " or "tool(read_file): ".
func Label(e chat.Entry) string {
	if e.Role == chat.RoleTool && e.Name != "" {
		return "tool(" + e.Name + "): "
	}
	return string(e.Role) + ": "
}

func labelStyle(r chat.Role) lipgloss.Style {
	switch r {
	case chat.RoleUser:
		return userStyle
	case chat.RoleAssistant:
		return assistantStyle
	}
	return otherStyle
}

// Render formats the transcript, wrapping to width when it is positive.
func Render(entries []chat.Entry, width int) string {
	var b strings.Builder
	wrap := lipgloss.NewStyle()
	if width > 0 {
		wrap = wrap.Width(width)
	}
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(wrap.Render(labelStyle(e.Role).Render(Label(e)) + e.Content))
	}
	return b.String()
}
