package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/browser"

	"github.com/h0rv/issuedeck/internal/domain"
	"github.com/h0rv/issuedeck/internal/jira"
	"github.com/h0rv/issuedeck/internal/store"
)

// Layout constants
const (
	leftPanelRatio = 0.35
	minLeftWidth   = 30
	maxLeftWidth   = 50
	headerHeight   = 1
	footerHeight   = 1
	borderSize     = 2 // Top + bottom border
)

// Detail view styles
var (
	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	detailLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	detailValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	focusedPanelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("205"))

	scrollIndicatorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")).
			Bold(true)
)

// DetailModel shows one issue: metadata on the left, description, links and
// sub-issues on the right. Local issues can have their description edited.
type DetailModel struct {
	// Dependencies
	store  *store.Store
	client *jira.Client
	ctx    context.Context

	issue domain.Issue

	// UI components
	spinner  spinner.Model
	editor   textarea.Model
	viewport viewport.Model

	// State
	editMode      bool
	confirmExit   bool // Unsaved edit prompt
	loading       bool
	loadingAction string
	refreshing    bool
	errorMsg      string
	successMsg    string

	width  int
	height int
}

// NewDetailModel creates a detail view for issue.
func NewDetailModel(issue domain.Issue, s *store.Store, client *jira.Client, ctx context.Context) DetailModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "Describe the issue..."
	ta.CharLimit = 65535
	ta.SetHeight(8)
	ta.SetWidth(40) // Resized on WindowSizeMsg
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("228"))
	ta.BlurredStyle.Base = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240"))

	vp := viewport.New(40, 10) // Resized on WindowSizeMsg
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	m := DetailModel{
		store:    s,
		client:   client,
		ctx:      ctx,
		issue:    issue,
		spinner:  sp,
		editor:   ta,
		viewport: vp,
	}
	m.refreshing = m.canRefresh()
	return m
}

func (m DetailModel) canRefresh() bool {
	return !m.isLocal() && m.client != nil && m.issue.IssueNumber != ""
}

func (m DetailModel) isLocal() bool {
	return m.issue.Origin == domain.OriginLocal
}

// Init refreshes remote issues from the service.
func (m DetailModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, tea.WindowSize()}
	if m.canRefresh() {
		cmds = append(cmds, m.loadIssue())
	}
	return tea.Batch(cmds...)
}

// Update handles messages
func (m DetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeComponents()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case issueLoadedMsg:
		m.refreshing = false
		if msg.err != nil {
			m.errorMsg = fmt.Sprintf("Refresh failed: %v", msg.err)
			return m, nil
		}
		m.issue = msg.issue
		m.updateViewportContent()
		return m, nil

	case issueSavedMsg:
		m.loading = false
		m.editMode = false
		m.editor.Blur()
		m.issue = msg.issue
		m.successMsg = "Saved"
		m.updateViewportContent()
		return m, nil

	case saveErrorMsg:
		m.loading = false
		m.errorMsg = fmt.Sprintf("Failed: %v", msg.err)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		if !m.editMode {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if m.editMode {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// resizeComponents fits the viewport and editor to the window.
func (m *DetailModel) resizeComponents() {
	leftWidth := min(max(int(float64(m.width)*leftPanelRatio), minLeftWidth), maxLeftWidth)
	rightWidth := max(m.width-leftWidth-3, 30)
	contentHeight := max(m.height-headerHeight-footerHeight-borderSize, 10)

	m.viewport.Width = rightWidth - borderSize - 2
	m.viewport.Height = contentHeight - borderSize - 1 // Panel title
	m.editor.SetWidth(rightWidth - borderSize - 4)

	m.updateViewportContent()
}

// handleKeyPress processes keyboard input
func (m DetailModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.confirmExit {
		switch msg.String() {
		case "y", "Y":
			m.confirmExit = false
			m.editMode = false
			m.editor.Reset()
			m.editor.Blur()
			return m, nil
		case "n", "N", "esc":
			m.confirmExit = false
			return m, nil
		case "s", "S":
			m.confirmExit = false
			cmd := m.save()
			return m, cmd
		}
		return m, nil
	}

	if m.editMode {
		switch msg.String() {
		case "esc":
			if m.editor.Value() != m.issue.Description {
				m.confirmExit = true
				return m, nil
			}
			m.editMode = false
			m.editor.Blur()
			return m, nil
		case "ctrl+s":
			cmd := m.save()
			return m, cmd
		default:
			var cmd tea.Cmd
			m.editor, cmd = m.editor.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "q", "esc":
		return m, func() tea.Msg { return closeDetailMsg{} }
	case "o":
		if !m.isLocal() && m.client != nil {
			_ = browser.OpenURL(m.client.BrowseURL(m.issue.IssueNumber))
		}
	case "e":
		if !m.isLocal() {
			m.errorMsg = "Remote issues are read-only"
			return m, nil
		}
		m.editMode = true
		m.editor.SetValue(m.issue.Description)
		m.editor.Focus()
		m.errorMsg = ""
		m.successMsg = ""
		return m, textarea.Blink
	case "j", "down":
		m.viewport.LineDown(1)
	case "k", "up":
		m.viewport.LineUp(1)
	case "ctrl+d":
		m.viewport.HalfViewDown()
	case "ctrl+u":
		m.viewport.HalfViewUp()
	case "g":
		m.viewport.GotoTop()
	case "G":
		m.viewport.GotoBottom()
	}

	return m, nil
}

// View renders the split-screen detail view
func (m DetailModel) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 100
	}
	if height == 0 {
		height = 30
	}

	leftWidth := min(max(int(float64(width)*leftPanelRatio), minLeftWidth), maxLeftWidth)
	rightWidth := width - leftWidth - 1
	contentHeight := max(height-headerHeight-footerHeight, 10)

	leftPanel := panelBorderStyle.
		Width(leftWidth - borderSize).
		Height(contentHeight - borderSize).
		Render(m.renderLeftPanel(leftWidth-borderSize, contentHeight-borderSize))

	rightBorder := focusedPanelBorderStyle
	if m.editMode {
		rightBorder = panelBorderStyle
	}
	rightPanel := rightBorder.
		Width(rightWidth - borderSize).
		Height(contentHeight - borderSize).
		Render(m.renderRightPanel())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, " ", rightPanel)
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), panels, m.renderFooter(width))
}

func (m DetailModel) renderHeader() string {
	if m.confirmExit {
		return warningStyle.Render("Unsaved description! [Y]discard [N]cancel [S]save")
	}
	if m.editMode {
		return dimStyle.Render("[Ctrl+S]save [ESC]cancel") + "  " + sectionStyle.Render("Editing description...")
	}

	parts := []string{"[q]back", "[j/k]scroll", "[g/G]top/bottom"}
	if m.isLocal() {
		parts = append(parts, "[e]edit")
	} else {
		parts = append(parts, "[o]open")
	}
	return dimStyle.Render(strings.Join(parts, " "))
}

func (m DetailModel) renderFooter(width int) string {
	var left, right string

	switch {
	case m.loading:
		left = m.spinner.View() + " " + m.loadingAction
	case m.refreshing:
		left = m.spinner.View() + " Refreshing..."
	case m.successMsg != "":
		left = lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Render("✓ " + m.successMsg)
	case m.errorMsg != "":
		left = errorStyle.Render("✗ " + m.errorMsg)
	case m.editMode:
		left = fmt.Sprintf("%d chars", len(m.editor.Value()))
	}

	if !m.editMode && m.viewport.TotalLineCount() > m.viewport.Height {
		switch {
		case m.viewport.AtTop():
			right = "TOP"
		case m.viewport.AtBottom():
			right = "END"
		default:
			right = fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100))
		}
	}

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return dimStyle.Render(left) + strings.Repeat(" ", padding) + dimStyle.Render(right)
}

// renderLeftPanel renders the issue metadata.
func (m DetailModel) renderLeftPanel(width, height int) string {
	var b strings.Builder

	heading := m.issue.IssueNumber
	if m.isLocal() {
		heading += LocalBadgeStyle.Render(" (local)")
	}
	b.WriteString(detailLabelStyle.Render(heading))
	b.WriteString("\n\n")

	b.WriteString(detailTitleStyle.Render(wordwrap.String(m.issue.Title, width-2)))
	b.WriteString("\n\n")

	field := func(label, value string, style lipgloss.Style) {
		if value == "" {
			return
		}
		value = truncate.StringWithTail(value, uint(max(width-len(label)-1, 4)), "...")
		b.WriteString(detailLabelStyle.Render(label + " "))
		b.WriteString(style.Render(value))
		b.WriteString("\n")
	}

	field("Status:", string(m.issue.Status), detailValueStyle)
	field("Priority:", string(m.issue.Priority), PriorityStyle(m.issue.Priority))
	field("Assignee:", m.issue.Assignee, detailValueStyle)
	field("Created by:", m.issue.CreatedBy, detailValueStyle)
	field("Labels:", strings.Join(m.issue.Labels, ", "), detailValueStyle)
	if !m.issue.CreatedAt.IsZero() {
		field("Created:", formatTimeAgo(m.issue.CreatedAt), detailValueStyle)
	}
	if n := len(m.issue.Links); n > 0 {
		field("Links:", fmt.Sprintf("%d", n), detailValueStyle)
	}
	if n := len(m.issue.SubIssues); n > 0 {
		field("Sub-issues:", fmt.Sprintf("%d", n), detailValueStyle)
	}

	return b.String()
}

// renderRightPanel renders the description viewport or the editor.
func (m DetailModel) renderRightPanel() string {
	var b strings.Builder

	if m.editMode {
		b.WriteString(sectionStyle.Render("Description"))
		b.WriteString("\n\n")
		b.WriteString(m.editor.View())
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("Ctrl+S to save • ESC to cancel"))
		return b.String()
	}

	scrollHint := ""
	if total := m.viewport.TotalLineCount(); total > m.viewport.Height {
		switch {
		case m.viewport.AtTop():
			scrollHint = " ↓"
		case m.viewport.AtBottom():
			scrollHint = " ↑"
		default:
			scrollHint = " ↕"
		}
	}
	b.WriteString(detailLabelStyle.Render("Details"))
	b.WriteString(scrollIndicatorStyle.Render(scrollHint))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	return b.String()
}

// updateViewportContent renders description, links and sub-issues into the
// viewport at its current width.
func (m *DetailModel) updateViewportContent() {
	wrapWidth := max(m.viewport.Width-4, 30)
	var b strings.Builder

	b.WriteString(sectionStyle.Render("Description"))
	b.WriteString("\n")
	if m.issue.Description == "" {
		b.WriteString(dimStyle.Render("No description"))
	} else {
		b.WriteString(bodyStyle.Render(wordwrap.String(m.issue.Description, wrapWidth)))
	}

	if len(m.issue.Links) > 0 {
		b.WriteString("\n\n")
		b.WriteString(sectionStyle.Render(fmt.Sprintf("Links (%d)", len(m.issue.Links))))
		for _, link := range m.issue.Links {
			b.WriteString("\n• ")
			b.WriteString(wordwrap.String(link.Title, wrapWidth-2))
			if link.URL != "" {
				b.WriteString("\n  ")
				b.WriteString(dimStyle.Render(link.URL))
			}
		}
	}

	if len(m.issue.SubIssues) > 0 {
		b.WriteString("\n\n")
		b.WriteString(sectionStyle.Render(fmt.Sprintf("Sub-issues (%d)", len(m.issue.SubIssues))))
		for _, sub := range m.issue.SubIssues {
			b.WriteString("\n")
			b.WriteString(dimStyle.Render(fmt.Sprintf("[%s] ", sub.Status)))
			b.WriteString(sub.Title)
		}
	}

	m.viewport.SetContent(b.String())
}

// save writes the edited description of a local issue to the store.
func (m *DetailModel) save() tea.Cmd {
	if m.store == nil {
		return nil
	}
	m.loading = true
	m.loadingAction = "Saving..."

	updated := m.issue
	updated.Description = strings.TrimSpace(m.editor.Value())
	s := m.store
	return func() tea.Msg {
		if err := s.UpsertIssue(updated); err != nil {
			return saveErrorMsg{err: err}
		}
		return issueSavedMsg{issue: updated}
	}
}

// loadIssue fetches the current version of a remote issue.
func (m DetailModel) loadIssue() tea.Cmd {
	key := m.issue.IssueNumber
	return func() tea.Msg {
		issue, err := m.client.GetIssue(m.ctx, key)
		return issueLoadedMsg{issue: issue, err: err}
	}
}

// formatTimeAgo renders t relative to now.
func formatTimeAgo(t time.Time) string {
	d := time.Since(t)

	ago := func(n int, unit string) string {
		return fmt.Sprintf("%d%s ago", n, unit)
	}

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return ago(int(d.Minutes()), "m")
	case d < 24*time.Hour:
		return ago(int(d.Hours()), "h")
	case d < 7*24*time.Hour:
		return ago(int(d.Hours()/24), "d")
	case d < 30*24*time.Hour:
		return ago(int(d.Hours()/24/7), "w")
	case d < 365*24*time.Hour:
		return ago(int(d.Hours()/24/30), "mo")
	default:
		return ago(int(d.Hours()/24/365), "y")
	}
}

// Message types for detail view
type (
	closeDetailMsg struct{}
	issueLoadedMsg struct {
		issue domain.Issue
		err   error
	}
	issueSavedMsg struct{ issue domain.Issue }
	saveErrorMsg  struct{ err error }
)
