package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// sessionCmd groups session inspection and maintenance.
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or clear remembered choices",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the remembered choices for this project",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		root, err := a.resolveRoot()
		if err != nil {
			return err
		}

		values := a.sessions.Values(root)
		if len(values) == 0 {
			fmt.Printf("no remembered choices for %s\n", root)
			return nil
		}

		keys := make([]string, 0, len(values))
		for key := range values {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			value := values[key]
			if value == "" {
				value = `"" (all)`
			}
			fmt.Printf("  %-14s %s\n", key, value)
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the remembered choices for this project",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		root, err := a.resolveRoot()
		if err != nil {
			return err
		}

		if err := a.sessions.Clear(root); err != nil {
			return err
		}
		fmt.Printf("cleared session for %s\n", root)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionClearCmd)
}
