package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/h0rv/issuedeck/internal/reconcile"
	"github.com/h0rv/issuedeck/internal/store"
)

func createProjectsCmd() *cobra.Command {
	var (
		offline bool
		noStats bool
	)

	projectsCmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects, remote first with local fallback",
		Long: `List the projects of the Jira instance together with their issue
statistics. Statistics are fetched in small batches for the first projects
only; see stats_limit and the fetchStats setting.

Examples:
  issuedeck projects
  issuedeck projects --no-stats`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer sess.close()

			policy := sess.statsPolicy()
			if noStats {
				policy.Enabled = false
			}

			result := sess.engine.ResolveProjects(cmd.Context(), reconcile.ProjectParams{
				Enabled: !offline,
				Stats:   policy,
			})
			if result.IsError && len(result.Data) == 0 {
				if errors.Is(result.Err, reconcile.ErrNoRecords) {
					fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
					return nil
				}
				return fmt.Errorf("failed to list projects: %w", result.Err)
			}

			if len(result.Data) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
				return nil
			}

			displayProjects(cmd.OutOrStdout(), result.Data)
			displaySources(cmd.ErrOrStderr(), result)
			return nil
		},
	}

	projectsCmd.Flags().BoolVar(&offline, "offline", false, "Only list local projects")
	projectsCmd.Flags().BoolVar(&noStats, "no-stats", false, "Skip issue statistics")
	return projectsCmd
}

func createProjectCmd() *cobra.Command {
	var (
		offline bool
		noStats bool
	)

	projectCmd := &cobra.Command{
		Use:   "project <key>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer sess.close()

			key := args[0]
			if !offline {
				project, err := sess.client.GetProject(cmd.Context(), key, !noStats && sess.statsPolicy().Enabled)
				if err == nil {
					displayProject(cmd.OutOrStdout(), project)
					return nil
				}
				sess.logger.Debug("remote project lookup failed, trying local store", "key", key, "error", err)
			}

			project, err := sess.store.Project(key)
			if err != nil {
				if errors.Is(err, store.ErrProjectNotFound) {
					return fmt.Errorf("%w: %s", err, key)
				}
				return err
			}
			displayProject(cmd.OutOrStdout(), project)
			return nil
		},
	}

	projectCmd.Flags().BoolVar(&offline, "offline", false, "Only search the local store")
	projectCmd.Flags().BoolVar(&noStats, "no-stats", false, "Skip issue statistics")
	return projectCmd
}
