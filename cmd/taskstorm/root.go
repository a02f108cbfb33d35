package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/taskstorm/internal/backend"
	"github.com/dshills/taskstorm/internal/config"
	"github.com/dshills/taskstorm/internal/dispatch"
	"github.com/dshills/taskstorm/internal/log"
	"github.com/dshills/taskstorm/internal/preset"
	"github.com/dshills/taskstorm/internal/runner"
	"github.com/dshills/taskstorm/internal/session"
	"github.com/dshills/taskstorm/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "taskstorm",
	Short: "Taskstorm is a project-aware build/run/test task dispatcher",
	Long: `Taskstorm detects a project's build system, resolves the preset and
target a task needs, and runs the resulting command, streaming its output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError propagates a task's exit status through cobra to Execute without
// skipping deferred cleanup the way a direct os.Exit would.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// exitStatus clamps a runner exit code into the valid process exit range.
// Wait failures that carry no real code (-1) become a plain failure.
func exitStatus(code int) int {
	if code < 0 || code > 255 {
		return 1
	}
	return code
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the settings file")
	rootCmd.PersistentFlags().String("dir", "", "Directory to discover the project root from")
	rootCmd.PersistentFlags().String("root", "", "Project root (skips discovery)")
	rootCmd.PersistentFlags().String("selector", "", "Selector implementation: tcell or plain")
	rootCmd.PersistentFlags().String("log-level", "", "Minimum log level: debug, info, warn, error")
}

// app holds the wired collaborators for one CLI invocation.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	registry *backend.Registry
	presets  *preset.Store
	sessions *session.Store
	dir      string
	root     string
}

// newApp loads settings and constructs the shared stores.
func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if sel, _ := cmd.Flags().GetString("selector"); sel != "" {
		cfg.Selector = sel
	}

	logger := log.New(log.Config{
		Level:  log.ParseLevel(cfg.LogLevel),
		Output: os.Stderr,
		Prefix: "taskstorm",
	})

	dir, _ := cmd.Flags().GetString("dir")
	root, _ := cmd.Flags().GetString("root")

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: backend.DefaultRegistry(),
		presets:  preset.NewStore(logger),
		sessions: session.New(cfg.SessionFile),
		dir:      dir,
		root:     root,
	}, nil
}

// resolveRoot returns the project root from the --root flag or discovery.
func (a *app) resolveRoot() (string, error) {
	if a.root != "" {
		return a.root, nil
	}
	root := a.registry.FindRoot(a.dir)
	if root == "" {
		return "", fmt.Errorf("no project root found")
	}
	return root, nil
}

// selector picks the configured selector implementation.
func (a *app) selector() dispatch.Selector {
	if a.cfg.Selector == "plain" {
		return &ui.PlainSelector{In: os.Stdin, Out: os.Stdout}
	}
	return ui.NewTcellSelector()
}

// dispatcher wires a dispatcher around the given sink.
func (a *app) dispatcher(sink dispatch.Sink) *dispatch.Dispatcher {
	return dispatch.New(dispatch.Config{
		Registry:   a.registry,
		Presets:    a.presets,
		Sessions:   a.sessions,
		Runner:     runner.New(a.logger),
		Selector:   a.selector(),
		Sink:       sink,
		Opener:     &ui.EditorOpener{},
		Notifier:   &ui.WriteNotifier{Out: os.Stderr},
		Logger:     a.logger,
		BufferSize: a.cfg.OutputBufferSize,
	})
}
