package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// presetsCmd lists the resolved configure and build presets.
var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the project's configure and build presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		root, err := a.resolveRoot()
		if err != nil {
			return err
		}

		presets := a.presets.Load(root)
		if presets == nil {
			return fmt.Errorf("no preset files found in %s", root)
		}

		fmt.Println("configure presets:")
		for _, p := range presets {
			fmt.Printf("  %-20s %s\n", p.Name, p.BinaryDir)
		}

		filter, _ := cmd.Flags().GetString("configure-preset")
		buildPresets := a.presets.BuildPresets(root, filter)
		if len(buildPresets) > 0 {
			fmt.Println("build presets:")
			for _, bp := range buildPresets {
				fmt.Printf("  %-20s (configure: %s)\n", bp.Name, bp.ConfigurePreset)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
	presetsCmd.Flags().String("configure-preset", "", "Only list build presets for this configure preset")
}
