package main

import (
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/h0rv/issuedeck/internal/store"
)

var settingKeys = []string{store.SettingRelayURL, store.SettingFetchStats}

func createSettingsCmd() *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change stored settings",
		Long: `Settings live in the local store and take precedence over the config file.

Keys:
  relayUrl    relay template replacing the built-in list ("" restores it)
  fetchStats  true or false; whether project statistics are fetched`,
	}

	settingsCmd.AddCommand(createSettingsGetCmd(), createSettingsSetCmd())
	return settingsCmd
}

func createSettingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer sess.close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				if err := checkSettingKey(args[0]); err != nil {
					return err
				}
				value, _ := sess.store.Setting(args[0])
				fmt.Fprintln(out, value)
				return nil
			}

			settings := sess.store.Settings()
			keys := make([]string, 0, len(settings))
			for k := range settings {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s=%s\n", k, settings[k])
			}
			return nil
		},
	}
}

func createSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting; an empty value removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if err := checkSettingKey(key); err != nil {
				return err
			}
			if key == store.SettingFetchStats && value != "" {
				b, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("%s must be true or false: %w", key, err)
				}
				value = strconv.FormatBool(b)
			}

			sess, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer sess.close()

			if err := sess.store.SetSetting(key, value); err != nil {
				return fmt.Errorf("failed to save setting: %w", err)
			}
			return nil
		},
	}
}

func checkSettingKey(key string) error {
	if !slices.Contains(settingKeys, key) {
		return fmt.Errorf("unknown setting %q (known: %v)", key, settingKeys)
	}
	return nil
}
