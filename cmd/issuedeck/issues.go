package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/h0rv/issuedeck/internal/domain"
	"github.com/h0rv/issuedeck/internal/filter"
	"github.com/h0rv/issuedeck/internal/reconcile"
	"github.com/h0rv/issuedeck/internal/store"
)

func createIssuesCmd() *cobra.Command {
	var (
		project    string
		jql        string
		maxResults int
		offline    bool
		where      string
	)

	issuesCmd := &cobra.Command{
		Use:   "issues",
		Short: "List issues, remote first with local fallback",
		Long: `List the issues of a project, or the results of a JQL query.

Remote results take precedence. Local issues are listed when the remote is
disabled (--offline), returns nothing, or fails.

Examples:
  issuedeck issues --project FLINK
  issuedeck issues --jql 'project = KAFKA AND priority = Blocker'
  issuedeck issues --offline --where 'Status == "Todo" && HasLabel("ui")'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := filter.Compile(where)
			if err != nil {
				return err
			}

			sess, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer sess.close()

			if !cmd.Flags().Changed("project") && jql == "" {
				project = sess.cfg.DefaultProject
			}
			if !cmd.Flags().Changed("max") {
				maxResults = sess.cfg.MaxResults
			}

			result := sess.engine.ResolveIssues(cmd.Context(), reconcile.IssueParams{
				ProjectKey: project,
				JQL:        jql,
				MaxResults: maxResults,
				Enabled:    !offline,
			})
			if result.IsError && len(result.Data) == 0 {
				if errors.Is(result.Err, reconcile.ErrNoRecords) {
					fmt.Fprintln(cmd.OutOrStdout(), "No issues found.")
					return nil
				}
				return fmt.Errorf("failed to list issues: %w", result.Err)
			}

			if len(result.Data) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No issues found.")
				return nil
			}

			issues, err := f.Apply(result.Data)
			if err != nil {
				return err
			}
			if len(issues) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No issues match.")
				return nil
			}

			displayIssues(cmd.OutOrStdout(), issues)
			displaySources(cmd.ErrOrStderr(), result)
			return nil
		},
	}

	issuesCmd.Flags().StringVarP(&project, "project", "p", "", "Project key (defaults to default_project)")
	issuesCmd.Flags().StringVar(&jql, "jql", "", "JQL query replacing the per-project query")
	issuesCmd.Flags().IntVarP(&maxResults, "max", "n", 0, "Maximum number of remote results")
	issuesCmd.Flags().BoolVar(&offline, "offline", false, "Only list local issues")
	issuesCmd.Flags().StringVarP(&where, "where", "w", "", "Filter expression, e.g. 'Priority == \"High\"'")

	return issuesCmd
}

func createIssueCmd() *cobra.Command {
	var offline bool

	issueCmd := &cobra.Command{
		Use:   "issue <key>",
		Short: "Show one issue",
		Long: `Show an issue by key. The remote issue is shown when it exists; otherwise
the local store is searched by key and by id.

Examples:
  issuedeck issue FLINK-1234
  issuedeck issue LOC-3 --offline`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer sess.close()

			key := args[0]
			if !offline {
				issue, err := sess.client.GetIssue(cmd.Context(), key)
				if err == nil {
					displayIssue(cmd.OutOrStdout(), issue)
					return nil
				}
				sess.logger.Debug("remote issue lookup failed, trying local store", "key", key, "error", err)
			}

			issue, ok := findLocalIssue(sess.store, key)
			if !ok {
				return fmt.Errorf("%w: %s", store.ErrIssueNotFound, key)
			}
			displayIssue(cmd.OutOrStdout(), issue)
			return nil
		},
	}

	issueCmd.Flags().BoolVar(&offline, "offline", false, "Only search the local store")
	return issueCmd
}

// findLocalIssue matches key against local issue keys, case-insensitively,
// and then against ids.
func findLocalIssue(s *store.Store, key string) (domain.Issue, bool) {
	for _, issue := range s.Issues() {
		if strings.EqualFold(issue.IssueNumber, key) {
			return issue, true
		}
	}
	issue, err := s.Issue(key)
	return issue, err == nil
}
