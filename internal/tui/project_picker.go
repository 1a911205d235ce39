package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/h0rv/issuedeck/internal/domain"
	"github.com/h0rv/issuedeck/internal/reconcile"
)

// projectItem wraps a domain.Project for use in bubbles/list.
type projectItem struct {
	project domain.Project
}

func (i projectItem) FilterValue() string {
	return i.project.Key + " " + i.project.Name
}

func (i projectItem) Title() string {
	p := i.project
	title := fmt.Sprintf("%s %s", p.Icon, p.Name)
	if p.Key != "" {
		title = fmt.Sprintf("%s %s (%s)", p.Icon, p.Name, p.Key)
	}
	if p.Origin == domain.OriginLocal {
		title += " *"
	}
	return title
}

func (i projectItem) Description() string {
	p := i.project
	parts := []string{string(p.Status)}
	if p.IssueCount > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d done", p.CompletedIssueCount, p.IssueCount))
	}
	if p.Lead != nil && p.Lead.Name != "" {
		parts = append(parts, "lead "+p.Lead.Name)
	}
	return strings.Join(parts, " · ")
}

// projectDelegate renders project items with their color and health.
type projectDelegate struct{}

func (d projectDelegate) Height() int                             { return 2 }
func (d projectDelegate) Spacing() int                            { return 1 }
func (d projectDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d projectDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(projectItem)
	if !ok {
		return
	}

	str := fmt.Sprintf("%d. %s", index+1, i.Title())
	desc := i.Description()
	if i.project.IssueCount > 0 {
		desc += " · " + HealthStyle(i.project.Health).Render(string(i.project.Health))
	}

	if index == m.Index() {
		fmt.Fprint(w, SelectedItemStyle.Render("> "+str))
		fmt.Fprint(w, "\n  "+NormalItemStyle.Render(desc))
	} else {
		fmt.Fprint(w, ProjectStyle(i.project).Render("  "+str))
		fmt.Fprint(w, "\n  "+lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(desc))
	}
}

// ProjectPickerModel displays the reconciled project list for selection.
type ProjectPickerModel struct {
	list list.Model
	err  error
}

// NewProjectPickerModel creates a new ProjectPickerModel.
func NewProjectPickerModel(projects []domain.Project) ProjectPickerModel {
	l := list.New(projectItems(projects), projectDelegate{}, 80, 20)
	l.Title = "Select a Project"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = TitleStyle

	return ProjectPickerModel{
		list: l,
	}
}

func projectItems(projects []domain.Project) []list.Item {
	items := make([]list.Item, len(projects))
	for i, p := range projects {
		items[i] = projectItem{project: p}
	}
	return items
}

// Init initializes the model.
func (m ProjectPickerModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles messages and updates the model state.
func (m ProjectPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width - 2)
		m.list.SetHeight(msg.Height - 2)
		return m, nil

	case projectsResultMsg:
		cmd := m.setResult(msg.result)
		return m, cmd

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, func() tea.Msg {
				return QuitMsg{}
			}
		case "enter":
			if item, ok := m.list.SelectedItem().(projectItem); ok {
				return m, func() tea.Msg {
					return ProjectSelectedMsg{Project: item.project}
				}
			}
		}

	case ErrorMsg:
		m.err = msg.Err
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// setResult replaces the listed projects, keeping the cursor in range.
func (m *ProjectPickerModel) setResult(r reconcile.Result[domain.Project]) tea.Cmd {
	m.err = nil
	if r.IsError {
		m.err = r.Err
	}
	title := "Select a Project"
	if r.IsLoading {
		title += " (loading...)"
	}
	m.list.Title = title
	return m.list.SetItems(projectItems(r.Data))
}

// View renders the model.
func (m ProjectPickerModel) View() string {
	view := m.list.View()

	if m.err != nil {
		view += ErrorStyle.Render(fmt.Sprintf("\nError: %v", m.err))
	}

	return view
}
