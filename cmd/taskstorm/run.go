package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/taskstorm/internal/dispatch"
	"github.com/dshills/taskstorm/internal/preset"
	"github.com/dshills/taskstorm/internal/project"
	"github.com/dshills/taskstorm/internal/ui"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <task> [-- args...]",
	Short: "Resolve and run a task",
	Long: `Resolves the named task for the detected backend, prompting for any
missing preset or target, and runs the resulting command. Arguments after
-- are passed through to the command for tasks that accept them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("select")
		envFlags, _ := cmd.Flags().GetStringToString("env")
		watch, _ := cmd.Flags().GetBool("watch")

		if watch {
			watcher, err := preset.NewWatcher(a.presets, a.logger)
			if err == nil {
				defer watcher.Close()
				if root, rootErr := a.resolveRoot(); rootErr == nil {
					if err := watcher.Watch(root); err != nil {
						a.logger.Warn("watching %s: %v", root, err)
					}
				}
			}
		}

		sink := &ui.StreamSink{Out: os.Stdout, Err: os.Stderr}
		d := a.dispatcher(sink)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		handle, err := d.RunTask(ctx, args[0], dispatch.Options{
			Dir:         a.dir,
			Root:        a.root,
			Args:        args[1:],
			Env:         envFlags,
			ForceSelect: force,
		})
		if err != nil {
			return err
		}
		if handle == nil {
			return nil
		}

		<-handle.Done()
		result := handle.Result()
		if result.ExitCode != 0 && !result.Canceled {
			// Returned rather than os.Exit so deferred cleanup (the
			// preset watcher) still runs.
			return exitError{code: exitStatus(result.ExitCode)}
		}
		return nil
	},
}

// tasksCmd lists the tasks of the detected backend.
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the tasks available for this project",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		root, err := a.resolveRoot()
		if err != nil {
			return err
		}

		// Resolve project overrides the same way the dispatcher does, so
		// the listing includes project-added tasks.
		registry := project.Load(root, a.logger).Resolve(a.registry)
		name, be := registry.Detect(root)
		if be == nil {
			return fmt.Errorf("no backend matches %s", root)
		}

		fmt.Printf("%s (%s)\n", root, name)
		names := be.TaskNames()
		sort.Strings(names)
		for _, task := range names {
			fmt.Printf("  %s\n", task)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tasksCmd)

	runCmd.Flags().BoolP("select", "s", false, "Re-prompt instead of reusing remembered choices")
	runCmd.Flags().StringToString("env", nil, "Extra environment variables (key=value)")
	runCmd.Flags().BoolP("watch", "w", false, "Invalidate the preset cache when preset files change")
}
