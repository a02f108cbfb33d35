package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dshills/taskstorm/internal/project"
	"github.com/dshills/taskstorm/internal/session"
)

// targetsCmd lists discovered and declared executable targets.
var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the project's executable targets",
	Long: `Lists targets discovered through generated build metadata plus any
declared in the project override document. Discovery requires a configured
build directory; before the first configure the list may be empty.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		root, err := a.resolveRoot()
		if err != nil {
			return err
		}

		binaryDir, _ := cmd.Flags().GetString("binary-dir")
		if binaryDir == "" {
			if remembered, ok := a.sessions.Get(root, session.KeyPreset); ok {
				if p, found := a.presets.Find(root, remembered); found {
					binaryDir = p.BinaryDir
				}
			}
		}
		if binaryDir == "" {
			binaryDir = "build"
		}
		if !filepath.IsAbs(binaryDir) {
			binaryDir = filepath.Join(root, binaryDir)
		}

		paths := make(map[string]string)
		for _, t := range a.presets.Targets(root, binaryDir) {
			paths[t.Name] = t.Path
		}
		for name, spec := range project.Load(root, a.logger).Targets {
			path := spec.Path
			if path != "" && !filepath.IsAbs(path) {
				path = filepath.Join(root, path)
			}
			paths[name] = path
		}

		if len(paths) == 0 {
			fmt.Printf("no targets found; configure %s first\n", root)
			return nil
		}

		names := make([]string, 0, len(paths))
		for name := range paths {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-20s %s\n", name, paths[name])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(targetsCmd)
	targetsCmd.Flags().String("binary-dir", "", "Build directory to read generated metadata from")
}
