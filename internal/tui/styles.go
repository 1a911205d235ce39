package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/h0rv/issuedeck/internal/domain"
)

var (
	// TitleStyle is used for screen titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")). // Purple
			MarginBottom(1)

	// SelectedItemStyle is used for highlighted/selected items.
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")). // Light purple
				Bold(true)

	// NormalItemStyle is used for non-selected items.
	NormalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")) // Light gray

	// ErrorStyle is used for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// HelpStyle is used for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")). // Dark gray
			MarginTop(1)

	// LocalBadgeStyle marks records that exist only in the local store.
	LocalBadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")) // Yellow
)

var priorityColors = map[domain.Priority]lipgloss.Color{
	domain.PriorityUrgent: lipgloss.Color("196"),
	domain.PriorityHigh:   lipgloss.Color("208"),
	domain.PriorityMedium: lipgloss.Color("220"),
	domain.PriorityLow:    lipgloss.Color("244"),
}

var healthColors = map[domain.Health]lipgloss.Color{
	domain.HealthOnTrack:  lipgloss.Color("34"),
	domain.HealthAtRisk:   lipgloss.Color("220"),
	domain.HealthOffTrack: lipgloss.Color("196"),
}

// PriorityStyle returns the style used to render priority p.
func PriorityStyle(p domain.Priority) lipgloss.Style {
	c, ok := priorityColors[p]
	if !ok {
		c = lipgloss.Color("252")
	}
	return lipgloss.NewStyle().Foreground(c)
}

// HealthStyle returns the style used to render project health h.
func HealthStyle(h domain.Health) lipgloss.Style {
	c, ok := healthColors[h]
	if !ok {
		c = lipgloss.Color("252")
	}
	return lipgloss.NewStyle().Foreground(c)
}

// ProjectStyle renders text in the project's derived color.
func ProjectStyle(p domain.Project) lipgloss.Style {
	if p.Color == "" {
		return NormalItemStyle
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(p.Color)).Bold(true)
}

// priorityMark is the one-character priority indicator shown on cards.
func priorityMark(p domain.Priority) string {
	switch p {
	case domain.PriorityUrgent:
		return "!"
	case domain.PriorityHigh:
		return "↑"
	case domain.PriorityLow:
		return "↓"
	default:
		return "·"
	}
}
