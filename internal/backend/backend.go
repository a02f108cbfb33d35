// Package backend defines the data-driven build-system integrations.
//
// A Backend is pure data: marker files that identify it, a table of named
// tasks, and default variables and environment. The dispatcher is the single
// interpreter over these tables; adding a backend never adds code paths.
package backend

// Task is a declarative command template plus the prerequisite flags for one
// action (configure, build, run, ...). Tasks are immutable data.
type Task struct {
	// Cmd is the primary command template. Each element may contain
	// ${name} macros.
	Cmd []string `json:"cmd,omitempty"`

	// FallbackCmd is used instead of Cmd when the fallback-trigger
	// variable for this task (preset or build_preset) is unresolved.
	FallbackCmd []string `json:"fallback_cmd,omitempty"`

	// NeedsConfigurePreset requires a configure preset to be resolved
	// before the command is built.
	NeedsConfigurePreset bool `json:"needs_configure_preset,omitempty"`

	// NeedsBuildPreset requires a build preset to be resolved (with the
	// configure preset's binary dir as a prerequisite).
	NeedsBuildPreset bool `json:"needs_build_preset,omitempty"`

	// NeedsTarget requires a run/debug target to be resolved.
	NeedsTarget bool `json:"needs_target,omitempty"`

	// SupportsBuildTarget allows selecting a discovered build target
	// (including the synthetic "all targets" choice).
	SupportsBuildTarget bool `json:"supports_build_target,omitempty"`

	// ArgsPassthrough appends caller-supplied args to the final command.
	ArgsPassthrough bool `json:"args_passthrough,omitempty"`

	// UsesExternalLaunch offers the command to the external launch
	// capability (debugger) before falling back to sink execution.
	UsesExternalLaunch bool `json:"uses_external_launch,omitempty"`

	// RequiresConfigured refuses execution when the backend's configure
	// marker is absent from the resolved binary dir.
	RequiresConfigured bool `json:"requires_configured,omitempty"`

	// Launch is the structured launch description template for
	// UsesExternalLaunch tasks.
	Launch *LaunchTemplate `json:"launch,omitempty"`

	// Env holds task-specific environment overrides.
	Env map[string]string `json:"env,omitempty"`

	// EditFile, when set, opens the expanded path instead of running a
	// command.
	EditFile string `json:"edit_file,omitempty"`
}

// LaunchTemplate describes an external (debugger) launch. Fields may contain
// ${name} macros.
type LaunchTemplate struct {
	Program string            `json:"program"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Backend describes one build-tool integration.
type Backend struct {
	// Name identifies the backend ("cmake", "python", ...).
	Name string `json:"name"`

	// Markers are filenames whose presence under a project root selects
	// this backend. Order matters only for display.
	Markers []string `json:"markers"`

	// ConfigureMarker is the file whose presence in the binary dir marks
	// the project as configured (e.g. CMakeCache.txt). Empty when the
	// backend has no configure step.
	ConfigureMarker string `json:"configure_marker,omitempty"`

	// Tasks maps task names to their definitions.
	Tasks map[string]Task `json:"tasks"`

	// Variables are backend-default macro values.
	Variables map[string]string `json:"variables,omitempty"`

	// Env are backend-default environment values.
	Env map[string]string `json:"env,omitempty"`
}

// Task returns the named task definition.
func (b *Backend) Task(name string) (Task, bool) {
	t, ok := b.Tasks[name]
	return t, ok
}

// TaskNames returns the backend's task names, unsorted.
func (b *Backend) TaskNames() []string {
	names := make([]string, 0, len(b.Tasks))
	for name := range b.Tasks {
		names = append(names, name)
	}
	return names
}

// clone returns a deep copy so registered backends stay immutable when an
// override is merged on top.
func (b *Backend) clone() *Backend {
	out := &Backend{
		Name:            b.Name,
		Markers:         append([]string(nil), b.Markers...),
		ConfigureMarker: b.ConfigureMarker,
		Tasks:           make(map[string]Task, len(b.Tasks)),
		Variables:       cloneStringMap(b.Variables),
		Env:             cloneStringMap(b.Env),
	}
	for name, task := range b.Tasks {
		out.Tasks[name] = cloneTask(task)
	}
	return out
}

func cloneTask(t Task) Task {
	t.Cmd = append([]string(nil), t.Cmd...)
	t.FallbackCmd = append([]string(nil), t.FallbackCmd...)
	t.Env = cloneStringMap(t.Env)
	if t.Launch != nil {
		launch := *t.Launch
		launch.Args = append([]string(nil), t.Launch.Args...)
		launch.Env = cloneStringMap(t.Launch.Env)
		t.Launch = &launch
	}
	return t
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
