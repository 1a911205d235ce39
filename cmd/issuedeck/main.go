// Package main provides the issuedeck command-line interface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	logJSON    bool
	baseURL    string
	storePath  string
	relayURL   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "issuedeck",
		Short: "Terminal issue tracker over a public Jira instance",
		Long: `issuedeck browses the issues and projects of a public Jira instance
(Apache's by default) next to issues you keep in a local store.

Requests go through CORS relays with retries. Remote results always win over
local ones; local records are shown when the remote is disabled, empty or down.

Configuration:
  $XDG_CONFIG_HOME/issuedeck/config.yaml, then ISSUEDECK_* environment
  variables, then the flags below.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, tuiFlags{})
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log as JSON")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Jira base URL")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Local store file")
	rootCmd.PersistentFlags().StringVar(&relayURL, "relay-url", "", "Relay template used instead of the built-in list ({url}, {raw} or appended)")

	rootCmd.AddCommand(
		createIssuesCmd(),
		createIssueCmd(),
		createProjectsCmd(),
		createProjectCmd(),
		createNewCmd(),
		createSettingsCmd(),
		createRelaysCmd(),
		createTUICmd(),
	)
	return rootCmd
}
