package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func createRelaysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relays",
		Short: "Show the relay list requests go through",
		Long: `Show the relay templates tried, in order, for every request. An override
(--relay-url, the relayUrl setting, relay_url in the config file or
ISSUEDECK_RELAY_URL, first one set wins) replaces the whole list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer sess.close()

			out := cmd.OutOrStdout()
			if sess.override.RelayOverride() != "" {
				fmt.Fprintln(out, dimStyle.Render("override in effect"))
			}
			for i, tmpl := range sess.resolver.Templates() {
				fmt.Fprintf(out, "%d. %s\n", i+1, tmpl)
			}
			return nil
		},
	}
}
