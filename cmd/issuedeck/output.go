package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/wordwrap"

	"github.com/h0rv/issuedeck/internal/domain"
	"github.com/h0rv/issuedeck/internal/reconcile"
	"github.com/h0rv/issuedeck/internal/tui"
)

const descriptionWidth = 80

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func originMark(o domain.Origin) string {
	if o == domain.OriginLocal {
		return "*"
	}
	return ""
}

func displayIssues(w io.Writer, issues []domain.Issue) {
	t := newTable("KEY", "STATUS", "PRIORITY", "ASSIGNEE", "TITLE")
	for _, issue := range issues {
		t.Row(
			issue.IssueNumber+originMark(issue.Origin),
			string(issue.Status),
			string(issue.Priority),
			issue.Assignee,
			issue.Title,
		)
	}
	fmt.Fprintln(w, t.Render())
}

func displayIssue(w io.Writer, issue domain.Issue) {
	title := issue.IssueNumber
	if issue.Origin == domain.OriginLocal {
		title += " " + tui.LocalBadgeStyle.Render("(local)")
	}
	fmt.Fprintln(w, tui.TitleStyle.Render(title))
	fmt.Fprintln(w, issue.Title)
	fmt.Fprintln(w)

	field := func(name, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(w, "%-10s %s\n", name+":", value)
	}
	field("Status", string(issue.Status))
	field("Priority", tui.PriorityStyle(issue.Priority).Render(string(issue.Priority)))
	field("Assignee", issue.Assignee)
	field("Creator", issue.CreatedBy)
	field("Labels", strings.Join(issue.Labels, ", "))
	if !issue.CreatedAt.IsZero() {
		field("Created", issue.CreatedAt.Format("2006-01-02 15:04"))
	}

	if issue.Description != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, wordwrap.String(issue.Description, descriptionWidth))
	}
	if len(issue.Links) > 0 {
		fmt.Fprintf(w, "\nLinks (%d)\n", len(issue.Links))
		for _, link := range issue.Links {
			fmt.Fprintf(w, "  %s %s\n", link.Title, dimStyle.Render(link.URL))
		}
	}
	if len(issue.SubIssues) > 0 {
		fmt.Fprintf(w, "\nSub-issues (%d)\n", len(issue.SubIssues))
		for _, sub := range issue.SubIssues {
			fmt.Fprintf(w, "  [%s] %s\n", sub.Status, sub.Title)
		}
	}
}

func displayProjects(w io.Writer, projects []domain.Project) {
	t := newTable("KEY", "NAME", "STATUS", "DONE", "HEALTH", "LEAD")
	for _, p := range projects {
		lead := ""
		if p.Lead != nil {
			lead = p.Lead.Name
		}
		done := ""
		if p.IssueCount > 0 {
			done = fmt.Sprintf("%d/%d", p.CompletedIssueCount, p.IssueCount)
		}
		t.Row(p.Key+originMark(p.Origin), p.Name, string(p.Status), done, string(p.Health), lead)
	}
	fmt.Fprintln(w, t.Render())
}

func displayProject(w io.Writer, p domain.Project) {
	fmt.Fprintln(w, tui.ProjectStyle(p).Render(fmt.Sprintf("%s %s (%s)", p.Icon, p.Name, p.Key)))
	fmt.Fprintf(w, "%-10s %s\n", "Status:", p.Status)
	if p.IssueCount > 0 {
		fmt.Fprintf(w, "%-10s %d/%d done\n", "Issues:", p.CompletedIssueCount, p.IssueCount)
	}
	fmt.Fprintf(w, "%-10s %s\n", "Health:", tui.HealthStyle(p.Health).Render(string(p.Health)))
	if p.Lead != nil && p.Lead.Name != "" {
		fmt.Fprintf(w, "%-10s %s\n", "Lead:", p.Lead.Name)
	}
	if p.Description != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, wordwrap.String(p.Description, descriptionWidth))
	}
}

// displaySources reports which side of reconciliation the records came from,
// and the remote error when local records are shown in its place.
func displaySources[T any](w io.Writer, r reconcile.Result[T]) {
	line := fmt.Sprintf("%d shown · remote %d · local %d", len(r.Data), len(r.RemotePortion), len(r.LocalPortion))
	if r.IsError && r.Err != nil {
		line += " · remote error: " + r.Err.Error()
	}
	fmt.Fprintln(w, dimStyle.Render(line))
}
