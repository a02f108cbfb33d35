// Package dispatch implements the task dispatcher: the state machine that
// turns a task name into a concrete command.
//
// For one request the dispatcher detects the project root and backend, looks
// up the task definition, resolves whatever the task declares it needs
// (configure preset, build preset, build target, run target) by consulting
// the session store first and the injected Selector otherwise, expands the
// command template, and hands the result to the output sink, the external
// launcher, or the file opener.
//
// Every "nothing found" and "nothing selected" condition is reported through
// the Notifier and the dispatch returns quietly. Nothing here is fatal to
// the host process.
package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/dshills/taskstorm/internal/backend"
	"github.com/dshills/taskstorm/internal/log"
	"github.com/dshills/taskstorm/internal/macro"
	"github.com/dshills/taskstorm/internal/preset"
	"github.com/dshills/taskstorm/internal/project"
	"github.com/dshills/taskstorm/internal/runner"
	"github.com/dshills/taskstorm/internal/session"
)

// CancelTaskName is the special task that cancels the live execution
// instead of dispatching a command.
const CancelTaskName = "cancel"

// allTargetsLabel is the synthetic build-target choice mapping to the empty
// string, which builds everything.
const allTargetsLabel = "(all targets)"

// Selector prompts the user to pick one item. The second result is false
// when the user declines.
type Selector interface {
	Select(items []string, label string) (string, bool)
}

// Sink is the execution/display surface command output streams to.
type Sink interface {
	// Start replaces the sink's current content with a new execution.
	Start(cmd []string, dir string)

	// Line appends one output line.
	Line(line runner.Line)

	// Complete marks the execution finished.
	Complete(result runner.Result)

	// Canceled marks the current content stale after a cancellation.
	Canceled()
}

// LaunchSpec is a fully expanded external launch description.
type LaunchSpec struct {
	Program string
	Args    []string
	Cwd     string
	Env     map[string]string
}

// Launcher hands a launch description to an external capability such as a
// debugger. A false return means the dispatcher falls back to sink
// execution.
type Launcher interface {
	Launch(spec LaunchSpec) bool
}

// Opener opens a file in the host environment instead of running a command.
type Opener interface {
	OpenFile(path string) error
}

// Notifier reports user-visible conditions.
type Notifier interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Options adjust a single dispatch.
type Options struct {
	// Dir is the starting path for project-root discovery. Empty means
	// the working directory.
	Dir string

	// Root pins the project root, skipping discovery.
	Root string

	// Args are passthrough arguments appended to the final command for
	// tasks that allow it. They are never macro-expanded.
	Args []string

	// Env are request-level environment overrides.
	Env map[string]string

	// ForceSelect re-prompts instead of reusing remembered session
	// values, and extends a build dispatch into build-target selection.
	ForceSelect bool
}

// Config wires a dispatcher's collaborators.
type Config struct {
	Registry *backend.Registry
	Presets  *preset.Store
	Sessions *session.Store
	Runner   *runner.Runner
	Selector Selector
	Sink     Sink
	Launcher Launcher
	Opener   Opener
	Notifier Notifier
	Logger   *log.Logger

	// BufferSize is the per-stream output buffer size passed to the
	// runner. Zero uses the runner default.
	BufferSize int
}

// Dispatcher resolves and executes tasks. One instance owns the preset and
// session caches for its lifetime; construct a fresh one per test.
type Dispatcher struct {
	registry   *backend.Registry
	presets    *preset.Store
	sessions   *session.Store
	runner     *runner.Runner
	selector   Selector
	sink       Sink
	launcher   Launcher
	opener     Opener
	notifier   Notifier
	logger     *log.Logger
	bufferSize int
}

// New creates a dispatcher from its collaborators. Launcher, Opener and
// Notifier may be nil; the corresponding capabilities then degrade to
// no-ops.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Null
	}
	return &Dispatcher{
		registry:   cfg.Registry,
		presets:    cfg.Presets,
		sessions:   cfg.Sessions,
		runner:     cfg.Runner,
		selector:   cfg.Selector,
		sink:       cfg.Sink,
		launcher:   cfg.Launcher,
		opener:     cfg.Opener,
		notifier:   cfg.Notifier,
		logger:     logger,
		bufferSize: cfg.BufferSize,
	}
}

// execContext carries the state of one dispatch as resolution proceeds.
type execContext struct {
	root        string
	backendName string
	backend     *backend.Backend
	task        backend.Task
	taskName    string
	project     *project.Config
	env         map[string]string
	vars        map[string]string
	extraArgs   []string // explicit target args, before passthrough
}

// RunTask dispatches one task by name. The returned handle is non-nil only
// when an external command was started; callers wait on it for completion.
// The error covers process start failures, not resolution outcomes, which
// are reported through the Notifier.
func (d *Dispatcher) RunTask(ctx context.Context, name string, opts Options) (*runner.Handle, error) {
	if name == CancelTaskName {
		d.cancelRunning()
		return nil, nil
	}

	ec, ok := d.buildContext(name, opts)
	if !ok {
		return nil, nil
	}

	if ec.task.NeedsConfigurePreset {
		if !d.resolveConfigurePreset(ec, opts.ForceSelect) {
			return nil, nil
		}
	}

	if ec.task.NeedsBuildPreset {
		if !d.resolveBuildPreset(ec, opts.ForceSelect) {
			return nil, nil
		}
	}

	if ec.task.NeedsTarget {
		if !d.resolveTarget(ec, opts.ForceSelect) {
			return nil, nil
		}
	}

	return d.finalize(ctx, ec, opts)
}

// cancelRunning terminates the live execution, if any, and marks the sink
// content stale.
func (d *Dispatcher) cancelRunning() {
	if d.runner != nil && d.runner.Cancel() {
		if d.sink != nil {
			d.sink.Canceled()
		}
		d.info("task canceled")
		return
	}
	d.info("no task is running")
}

// buildContext performs root discovery, backend detection, task lookup and
// environment/variable assembly.
func (d *Dispatcher) buildContext(name string, opts Options) (*execContext, bool) {
	root := opts.Root
	if root == "" {
		root = d.registry.FindRoot(opts.Dir)
	}
	if root == "" {
		d.warn("no project root found")
		return nil, false
	}

	projectCfg := project.Load(root, d.logger)
	registry := projectCfg.Resolve(d.registry)

	backendName, be := registry.Detect(root)
	if be == nil {
		d.warn("no backend matches %s", root)
		return nil, false
	}

	task, ok := be.Task(name)
	if !ok {
		d.warn("backend %q has no task %q", backendName, name)
		return nil, false
	}

	env := mergeMaps(be.Env, project.Dotenv(root), projectCfg.Env, opts.Env)
	vars := mergeMaps(be.Variables, projectCfg.Variables)
	vars["root"] = root

	d.logger.Debug("dispatching %s/%s in %s", backendName, name, root)

	return &execContext{
		root:        root,
		backendName: backendName,
		backend:     be,
		task:        task,
		taskName:    name,
		project:     projectCfg,
		env:         env,
		vars:        vars,
	}, true
}

// resolveConfigurePreset fills the preset and build_dir variables. It
// returns false when the dispatch must stop: no presets or a declined
// selection with no fallback command to fall through to.
func (d *Dispatcher) resolveConfigurePreset(ec *execContext, force bool) bool {
	presets := d.presets.Load(ec.root)
	if len(presets) == 0 {
		d.warn("no configure presets found in %s", ec.root)
		if len(ec.task.FallbackCmd) > 0 {
			return true
		}
		return false
	}

	if remembered, ok := d.sessions.Get(ec.root, session.KeyPreset); ok && !force {
		if p, found := findPreset(presets, remembered); found {
			ec.vars["preset"] = remembered
			ec.vars["build_dir"] = p.BinaryDir
			return true
		}
	}

	names := presetNames(presets)
	choice, ok := d.selector.Select(names, "Configure preset")
	if !ok {
		if len(ec.task.FallbackCmd) > 0 {
			return true
		}
		d.info("no configure preset selected")
		return false
	}

	if err := d.sessions.Set(ec.root, session.KeyPreset, choice); err != nil {
		d.logger.Warn("persisting preset choice: %v", err)
	}
	ec.vars["preset"] = choice
	if p, found := findPreset(presets, choice); found {
		ec.vars["build_dir"] = p.BinaryDir
	}
	return true
}

// ensureBinaryDir makes sure build_dir is known before build-preset or
// target resolution. It reuses the session value without forcing a prompt,
// prompts once when nothing is remembered, and falls back to a literal
// "build" directory when the project has no presets at all.
func (d *Dispatcher) ensureBinaryDir(ec *execContext) {
	if _, ok := ec.vars["build_dir"]; ok {
		return
	}

	presets := d.presets.Load(ec.root)

	if remembered, ok := d.sessions.Get(ec.root, session.KeyPreset); ok {
		if p, found := findPreset(presets, remembered); found {
			ec.vars["preset"] = remembered
			ec.vars["build_dir"] = p.BinaryDir
			return
		}
	}

	if len(presets) > 0 {
		if choice, ok := d.selector.Select(presetNames(presets), "Configure preset"); ok {
			if err := d.sessions.Set(ec.root, session.KeyPreset, choice); err != nil {
				d.logger.Warn("persisting preset choice: %v", err)
			}
			ec.vars["preset"] = choice
			if p, found := findPreset(presets, choice); found {
				ec.vars["build_dir"] = p.BinaryDir
			}
			return
		}
	}

	ec.vars["build_dir"] = "build"
}

// resolveBuildPreset fills build_preset and, for tasks that support it, the
// build-target variables. When the project has no build presets the
// variable stays unset so the fallback command triggers at finalize.
func (d *Dispatcher) resolveBuildPreset(ec *execContext, force bool) bool {
	d.ensureBinaryDir(ec)

	if !d.presets.HasBuildPresets(ec.root) {
		if ec.task.SupportsBuildTarget {
			d.resolveBuildTarget(ec, force, true)
		}
		return true
	}

	if remembered, ok := d.sessions.Get(ec.root, session.KeyBuildPreset); ok && !force {
		ec.vars["build_preset"] = remembered
	} else {
		buildPresets := d.presets.BuildPresets(ec.root, ec.vars["preset"])
		if len(buildPresets) == 0 {
			buildPresets = d.presets.BuildPresets(ec.root, "")
		}

		names := make([]string, 0, len(buildPresets))
		for _, bp := range buildPresets {
			names = append(names, bp.Name)
		}

		choice, ok := d.selector.Select(names, "Build preset")
		if !ok {
			if len(ec.task.FallbackCmd) > 0 {
				if ec.task.SupportsBuildTarget {
					d.resolveBuildTarget(ec, force, force)
				}
				return true
			}
			d.info("no build preset selected")
			return false
		}

		if err := d.sessions.Set(ec.root, session.KeyBuildPreset, choice); err != nil {
			d.logger.Warn("persisting build preset choice: %v", err)
		}
		ec.vars["build_preset"] = choice
	}

	if ec.task.SupportsBuildTarget {
		_, remembered := d.sessions.Get(ec.root, session.KeyBuildTarget)
		switch {
		case force:
			d.resolveBuildTarget(ec, true, true)
		case remembered:
			d.resolveBuildTarget(ec, false, false)
		}
	}
	return true
}

// resolveBuildTarget fills build_target and build_target_args. An empty
// stored value means "all targets" and erases the --target token from the
// command entirely. A remembered non-empty name is trusted even when
// discovery returns a different set; only an explicit re-selection replaces
// it.
func (d *Dispatcher) resolveBuildTarget(ec *execContext, force, allowPrompt bool) {
	if remembered, ok := d.sessions.Get(ec.root, session.KeyBuildTarget); ok && !force {
		d.applyBuildTarget(ec, remembered)
		return
	}

	if !allowPrompt {
		return
	}

	targets := d.presets.Targets(ec.root, d.absBuildDir(ec))
	items := []string{allTargetsLabel}
	for _, t := range targets {
		items = append(items, t.Name)
	}

	choice, ok := d.selector.Select(items, "Build target")
	if !ok {
		return
	}

	value := ""
	if choice != allTargetsLabel {
		value = choice
	}
	if err := d.sessions.Set(ec.root, session.KeyBuildTarget, value); err != nil {
		d.logger.Warn("persisting build target choice: %v", err)
	}
	d.applyBuildTarget(ec, value)
}

func (d *Dispatcher) applyBuildTarget(ec *execContext, value string) {
	ec.vars["build_target"] = value
	if value == "" {
		ec.vars["build_target_args"] = ""
	} else {
		ec.vars["build_target_args"] = "--target=" + value
	}
}

// candidate is one run/debug target choice: discovered or declared.
type candidate struct {
	path string
	args []string
	env  map[string]string
}

// resolveTarget fills target and target_path for run/debug tasks. Explicit
// project-config targets merge over discovered ones by name.
func (d *Dispatcher) resolveTarget(ec *execContext, force bool) bool {
	if ec.backend.ConfigureMarker != "" {
		d.ensureBinaryDir(ec)
	}

	candidates := make(map[string]candidate)
	for _, t := range d.presets.Targets(ec.root, d.absBuildDir(ec)) {
		candidates[t.Name] = candidate{path: t.Path}
	}
	for name, spec := range ec.project.Targets {
		path := spec.Path
		if path != "" && !filepath.IsAbs(path) {
			path = filepath.Join(ec.root, path)
		}
		candidates[name] = candidate{path: path, args: spec.Args, env: spec.Env}
	}

	if len(candidates) == 0 {
		d.warn("no targets found in %s", ec.root)
		return false
	}

	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	var chosen string
	if remembered, ok := d.sessions.Get(ec.root, session.KeyTarget); ok && !force {
		if _, found := candidates[remembered]; found {
			chosen = remembered
		}
	}
	if chosen == "" {
		choice, ok := d.selector.Select(names, "Target")
		if !ok {
			d.info("no target selected")
			return false
		}
		if err := d.sessions.Set(ec.root, session.KeyTarget, choice); err != nil {
			d.logger.Warn("persisting target choice: %v", err)
		}
		chosen = choice
	}

	c := candidates[chosen]
	ec.vars["target"] = chosen
	ec.vars["target_path"] = c.path
	ec.extraArgs = c.args
	ec.env = mergeMaps(ec.env, c.env)
	return true
}

// finalize builds and dispatches the command: open a file, hand off to the
// external launcher, or execute through the sink.
func (d *Dispatcher) finalize(ctx context.Context, ec *execContext, opts Options) (*runner.Handle, error) {
	if ec.task.EditFile != "" {
		path := macro.Expand(ec.task.EditFile, ec.vars)
		if d.opener == nil {
			d.warn("no file opener available for %s", path)
			return nil, nil
		}
		if err := d.opener.OpenFile(path); err != nil {
			d.err("opening %s: %v", path, err)
		}
		return nil, nil
	}

	ec.env = mergeMaps(ec.env, ec.task.Env)

	if ec.task.RequiresConfigured && ec.backend.ConfigureMarker != "" {
		dir := d.absBuildDir(ec)
		if dir == "" {
			dir = filepath.Join(ec.root, "build")
		}
		marker := filepath.Join(dir, ec.backend.ConfigureMarker)
		if _, err := os.Stat(marker); err != nil {
			d.err("%s is not configured (missing %s); run the configure task first",
				ec.root, ec.backend.ConfigureMarker)
			return nil, nil
		}
	}

	template := ec.task.Cmd
	if len(ec.task.FallbackCmd) > 0 && d.fallbackTriggered(ec) {
		template = ec.task.FallbackCmd
	}

	args := macro.ExpandArgs(template, ec.vars)
	args = append(args, ec.extraArgs...)
	if ec.task.ArgsPassthrough {
		args = append(args, opts.Args...)
	}
	if len(args) == 0 {
		d.warn("task %q produced an empty command", ec.taskName)
		return nil, nil
	}

	if ec.task.UsesExternalLaunch && ec.task.Launch != nil && d.launcher != nil {
		spec := LaunchSpec{
			Program: macro.Expand(ec.task.Launch.Program, ec.vars),
			Args:    macro.ExpandArgs(ec.task.Launch.Args, ec.vars),
			Cwd:     macro.Expand(ec.task.Launch.Cwd, ec.vars),
			Env:     mergeMaps(ec.env, ec.task.Launch.Env),
		}
		spec.Args = append(spec.Args, ec.extraArgs...)
		if ec.task.ArgsPassthrough {
			spec.Args = append(spec.Args, opts.Args...)
		}
		if d.launcher.Launch(spec) {
			d.info("launched %s externally", spec.Program)
			return nil, nil
		}
		d.logger.Debug("external launch declined, running through sink")
	}

	return d.execute(ctx, ec, args)
}

// fallbackTriggered reports whether a declared prerequisite variable for
// the fallback path is still unresolved.
func (d *Dispatcher) fallbackTriggered(ec *execContext) bool {
	if ec.task.NeedsConfigurePreset {
		if _, ok := ec.vars["preset"]; !ok {
			return true
		}
	}
	if ec.task.NeedsBuildPreset {
		if _, ok := ec.vars["build_preset"]; !ok {
			return true
		}
	}
	return false
}

// execute streams the command through the sink.
func (d *Dispatcher) execute(ctx context.Context, ec *execContext, args []string) (*runner.Handle, error) {
	d.sink.Start(args, ec.root)

	handle, err := d.runner.Start(ctx, runner.Request{
		Args:       args,
		Dir:        ec.root,
		Env:        ec.env,
		BufferSize: d.bufferSize,
	}, d.sink.Line, func(result runner.Result) {
		d.sink.Complete(result)
		if result.ExitCode != 0 {
			d.err("task %q exited with code %d", ec.taskName, result.ExitCode)
		}
	})
	if err != nil {
		d.err("starting task %q: %v", ec.taskName, err)
		return nil, err
	}
	return handle, nil
}

// absBuildDir resolves the build_dir variable against the root. Empty when
// build_dir is unknown.
func (d *Dispatcher) absBuildDir(ec *execContext) string {
	dir, ok := ec.vars["build_dir"]
	if !ok || dir == "" {
		return ""
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(ec.root, dir)
}

func (d *Dispatcher) info(format string, args ...any) {
	if d.notifier != nil {
		d.notifier.Info(format, args...)
	}
	d.logger.Info(format, args...)
}

func (d *Dispatcher) warn(format string, args ...any) {
	if d.notifier != nil {
		d.notifier.Warn(format, args...)
	}
	d.logger.Warn(format, args...)
}

func (d *Dispatcher) err(format string, args ...any) {
	if d.notifier != nil {
		d.notifier.Error(format, args...)
	}
	d.logger.Error(format, args...)
}

func findPreset(presets []preset.Preset, name string) (preset.Preset, bool) {
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return preset.Preset{}, false
}

func presetNames(presets []preset.Preset) []string {
	names := make([]string, 0, len(presets))
	for _, p := range presets {
		names = append(names, p.Name)
	}
	return names
}

// mergeMaps combines maps left to right, later entries winning. The result
// is always a fresh map.
func mergeMaps(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
