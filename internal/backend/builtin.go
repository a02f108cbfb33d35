package backend

// DefaultRegistry returns a registry populated with the built-in backends.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(cmakeBackend())
	r.Register(pythonBackend())
	r.Register(cargoBackend())
	r.Register(goBackend())
	r.Register(makeBackend())
	return r
}

// cmakeBackend drives CMake projects through configure presets, build
// presets and File API target discovery. build_target_args expands to
// "--target=<name>" for a specific target and to nothing for the "all"
// choice, so the token disappears from the command entirely.
func cmakeBackend() *Backend {
	return &Backend{
		Name:            "cmake",
		Markers:         []string{"CMakePresets.json", "CMakeLists.txt"},
		ConfigureMarker: "CMakeCache.txt",
		Tasks: map[string]Task{
			"configure": {
				Cmd:                  []string{"cmake", "--preset", "${preset}"},
				FallbackCmd:          []string{"cmake", "-B", "build", "-S", "${root}"},
				NeedsConfigurePreset: true,
			},
			"build": {
				Cmd:                 []string{"cmake", "--build", "--preset", "${build_preset}", "${build_target_args}"},
				FallbackCmd:         []string{"cmake", "--build", "${build_dir}", "${build_target_args}"},
				NeedsBuildPreset:    true,
				SupportsBuildTarget: true,
				RequiresConfigured:  true,
			},
			"test": {
				Cmd:                []string{"ctest", "--preset", "${build_preset}"},
				FallbackCmd:        []string{"ctest", "--test-dir", "${build_dir}"},
				NeedsBuildPreset:   true,
				RequiresConfigured: true,
				ArgsPassthrough:    true,
			},
			"package": {
				Cmd:                []string{"cmake", "--build", "--preset", "${build_preset}", "--target", "package"},
				FallbackCmd:        []string{"cmake", "--build", "${build_dir}", "--target", "package"},
				NeedsBuildPreset:   true,
				RequiresConfigured: true,
			},
			"run": {
				Cmd:             []string{"${target_path}"},
				NeedsTarget:     true,
				ArgsPassthrough: true,
			},
			"debug": {
				Cmd:                []string{"${target_path}"},
				NeedsTarget:        true,
				UsesExternalLaunch: true,
				Launch: &LaunchTemplate{
					Program: "${target_path}",
					Cwd:     "${root}",
				},
			},
			"clean": {
				Cmd:                  []string{"cmake", "-E", "rm", "-rf", "${build_dir}"},
				FallbackCmd:          []string{"cmake", "-E", "rm", "-rf", "build"},
				NeedsConfigurePreset: true,
			},
			"edit_presets": {
				EditFile: "${root}/CMakePresets.json",
			},
		},
	}
}

// pythonBackend drives uv-managed Python projects. There is no configure
// step, so no task carries preset flags.
func pythonBackend() *Backend {
	return &Backend{
		Name:    "python",
		Markers: []string{"pyproject.toml"},
		Tasks: map[string]Task{
			"run": {
				Cmd:             []string{"uv", "run", "${main_file}"},
				ArgsPassthrough: true,
			},
			"test": {
				Cmd:             []string{"uv", "run", "pytest"},
				ArgsPassthrough: true,
			},
			"package": {
				Cmd: []string{"uv", "build"},
			},
			"clean": {
				Cmd: []string{"rm", "-rf", "dist"},
			},
			"edit_project": {
				EditFile: "${root}/pyproject.toml",
			},
		},
		Variables: map[string]string{
			"main_file": "main.py",
		},
	}
}

func cargoBackend() *Backend {
	return &Backend{
		Name:    "cargo",
		Markers: []string{"Cargo.toml"},
		Tasks: map[string]Task{
			"build": {Cmd: []string{"cargo", "build"}},
			"run":   {Cmd: []string{"cargo", "run"}, ArgsPassthrough: true},
			"test":  {Cmd: []string{"cargo", "test"}, ArgsPassthrough: true},
			"clean": {Cmd: []string{"cargo", "clean"}},
		},
	}
}

func goBackend() *Backend {
	return &Backend{
		Name:    "go",
		Markers: []string{"go.mod"},
		Tasks: map[string]Task{
			"build": {Cmd: []string{"go", "build", "./..."}},
			"run":   {Cmd: []string{"go", "run", "."}, ArgsPassthrough: true},
			"test":  {Cmd: []string{"go", "test", "./..."}, ArgsPassthrough: true},
			"clean": {Cmd: []string{"go", "clean"}},
		},
	}
}

func makeBackend() *Backend {
	return &Backend{
		Name:    "make",
		Markers: []string{"Makefile", "makefile", "GNUmakefile"},
		Tasks: map[string]Task{
			"build": {Cmd: []string{"make"}, ArgsPassthrough: true},
			"test":  {Cmd: []string{"make", "test"}},
			"clean": {Cmd: []string{"make", "clean"}},
		},
	}
}
