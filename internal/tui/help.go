package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

var (
	// HelpOverlayStyle frames the help overlay.
	HelpOverlayStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		MarginTop(2)
)

// filterExamples are shown below the key bindings.
var filterExamples = []string{
	`/checkpoint                 titles or keys containing "checkpoint"`,
	`=Priority == "Urgent"       expression filter`,
	`=HasLabel("backend") && !Local`,
	`=Is("in progress") || now() - CreatedAt < duration("72h")`,
}

// HelpModel wraps the bubbles help component.
type HelpModel struct {
	help   help.Model
	keymap KeyMap
}

// NewHelpModel creates a new help overlay model.
func NewHelpModel(keymap KeyMap) HelpModel {
	h := help.New()
	h.ShowAll = true

	return HelpModel{
		help:   h,
		keymap: keymap,
	}
}

// View renders the help overlay.
func (m HelpModel) View(width int) string {
	m.help.Width = width - 8 // Account for padding and border
	helpView := m.help.View(m.keymap)

	var b strings.Builder
	b.WriteString(helpView)
	b.WriteString("\n\n")
	b.WriteString(HelpStyle.Render("Filters"))
	for _, ex := range filterExamples {
		b.WriteString("\n  ")
		b.WriteString(dimStyle.Render(ex))
	}
	return HelpOverlayStyle.Render(b.String())
}
