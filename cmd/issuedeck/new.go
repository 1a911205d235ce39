package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/h0rv/issuedeck/internal/domain"
	"github.com/h0rv/issuedeck/internal/store"
)

var priorities = []domain.Priority{
	domain.PriorityUrgent,
	domain.PriorityHigh,
	domain.PriorityMedium,
	domain.PriorityLow,
}

func createNewCmd() *cobra.Command {
	var (
		title       string
		description string
		priority    string
		status      string
		labels      []string
		assignee    string
		prefix      string
	)

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Create a local issue",
		Long: `Create an issue in the local store. Local issues are listed next to
remote ones and are never overwritten by remote results.

Examples:
  issuedeck new --title "Try the new checkpoint API"
  issuedeck new --title "Bump deps" --priority High --labels build,deps`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := parseStatus(status)
			if err != nil {
				return err
			}
			pr, err := parsePriority(priority)
			if err != nil {
				return err
			}

			sess, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer sess.close()

			if assignee == "" {
				assignee = "Unassigned"
			}
			issue := domain.Issue{
				ID:          store.NewIssueID(),
				IssueNumber: sess.store.NextIssueNumber(strings.ToUpper(prefix)),
				Title:       strings.TrimSpace(title),
				Description: strings.TrimSpace(description),
				Status:      st,
				Priority:    pr,
				Assignee:    assignee,
				Labels:      labels,
				CreatedAt:   time.Now(),
				Origin:      domain.OriginLocal,
			}
			if issue.Title == "" {
				return fmt.Errorf("title cannot be blank")
			}
			if err := sess.store.UpsertIssue(issue); err != nil {
				return fmt.Errorf("failed to save issue: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", issue.IssueNumber, issue.ID)
			return nil
		},
	}

	newCmd.Flags().StringVarP(&title, "title", "t", "", "Issue title")
	newCmd.Flags().StringVarP(&description, "description", "d", "", "Issue description")
	newCmd.Flags().StringVar(&priority, "priority", string(domain.PriorityMedium), "Urgent, High, Medium or Low")
	newCmd.Flags().StringVar(&status, "status", string(domain.StatusTodo), "Initial status")
	newCmd.Flags().StringSliceVarP(&labels, "labels", "l", nil, "Comma-separated labels")
	newCmd.Flags().StringVar(&assignee, "assignee", "", "Assignee name")
	newCmd.Flags().StringVar(&prefix, "prefix", "LOC", "Key prefix for the new issue")
	_ = newCmd.MarkFlagRequired("title")

	return newCmd
}

// parseStatus accepts a canonical status name in any case.
func parseStatus(s string) (domain.Status, error) {
	for _, known := range domain.Statuses {
		if strings.EqualFold(string(known), s) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func parsePriority(s string) (domain.Priority, error) {
	for _, known := range priorities {
		if strings.EqualFold(string(known), s) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q", s)
}
