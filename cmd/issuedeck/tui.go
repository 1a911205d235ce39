package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/h0rv/issuedeck/internal/store"
	"github.com/h0rv/issuedeck/internal/tui"
)

type tuiFlags struct {
	project string
	jql     string
	offline bool
}

func createTUICmd() *cobra.Command {
	var flags tuiFlags

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive board (default)",
		Long: `Open the interactive board. Without --project or --jql a project picker
is shown first.

Examples:
  issuedeck tui --project FLINK
  issuedeck tui --offline`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, flags)
		},
	}

	tuiCmd.Flags().StringVarP(&flags.project, "project", "p", "", "Open this project's board (defaults to default_project)")
	tuiCmd.Flags().StringVar(&flags.jql, "jql", "", "Show the results of a JQL query")
	tuiCmd.Flags().BoolVar(&flags.offline, "offline", false, "Only show local records")

	return tuiCmd
}

func runTUI(cmd *cobra.Command, flags tuiFlags) error {
	sess, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer sess.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Picks up edits made by other processes, e.g. "issuedeck new".
	go sess.store.Watch(ctx, store.DefaultWatchInterval)

	project := flags.project
	if project == "" && flags.jql == "" {
		project = sess.cfg.DefaultProject
	}

	model := tui.NewAppModel(sess.engine, sess.store, sess.client, ctx, tui.Options{
		ProjectKey: project,
		JQL:        flags.jql,
		MaxResults: sess.cfg.MaxResults,
		Offline:    flags.offline,
		Stats:      sess.statsPolicy(),
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}
