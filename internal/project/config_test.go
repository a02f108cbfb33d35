package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/taskstorm/internal/backend"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_MissingDocument(t *testing.T) {
	cfg := Load(t.TempDir(), nil)
	if cfg == nil {
		t.Fatal("Load returned nil")
	}
	if len(cfg.Backends) != 0 || len(cfg.Targets) != 0 {
		t.Errorf("missing document should yield empty config: %+v", cfg)
	}
}

func TestLoad_JSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, JSONFileName), `{
		"env": {"CC": "clang"},
		"variables": {"main_file": "app.py"},
		"backends": {
			"cmake": {
				"tasks": {
					"lint": {"cmd": ["run-clang-tidy"], "args_passthrough": true}
				}
			}
		},
		"targets": {
			"server": {"path": "build/bin/server", "args": ["--port", "8080"]}
		}
	}`)

	cfg := Load(root, nil)

	if cfg.Env["CC"] != "clang" || cfg.Variables["main_file"] != "app.py" {
		t.Errorf("env/variables not decoded: %+v", cfg)
	}

	cmake, ok := cfg.Backends["cmake"]
	if !ok {
		t.Fatal("cmake override missing")
	}
	lint, ok := cmake.Tasks["lint"]
	if !ok || !lint.ArgsPassthrough {
		t.Errorf("task flags lost in decode: %+v", cmake.Tasks)
	}

	server, ok := cfg.Targets["server"]
	if !ok || server.Path != "build/bin/server" || len(server.Args) != 2 {
		t.Errorf("targets not decoded: %+v", cfg.Targets)
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, JSONFileName), `{broken`)

	cfg := Load(root, nil)
	if len(cfg.Backends) != 0 {
		t.Errorf("malformed document should yield empty config: %+v", cfg)
	}
}

func TestLoad_Lua(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, LuaFileName), `
return {
  env = { CC = "gcc" },
  backends = {
    python = {
      variables = { main_file = "serve.py" },
      tasks = {
        serve = { cmd = { "uv", "run", "serve.py" }, args_passthrough = true },
      },
    },
  },
}
`)

	cfg := Load(root, nil)

	if cfg.Env["CC"] != "gcc" {
		t.Errorf("env not decoded from lua: %+v", cfg.Env)
	}
	py, ok := cfg.Backends["python"]
	if !ok {
		t.Fatal("python override missing")
	}
	if py.Variables["main_file"] != "serve.py" {
		t.Errorf("variables = %+v", py.Variables)
	}
	serve, ok := py.Tasks["serve"]
	if !ok || len(serve.Cmd) != 3 || !serve.ArgsPassthrough {
		t.Errorf("serve task = %+v", serve)
	}
}

func TestLoad_LuaNonTable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, LuaFileName), `return 42`)

	cfg := Load(root, nil)
	if len(cfg.Backends) != 0 {
		t.Errorf("non-table script should yield empty config: %+v", cfg)
	}
}

func TestLoad_JSONPreferredOverLua(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, JSONFileName), `{"env": {"FROM": "json"}}`)
	writeFile(t, filepath.Join(root, LuaFileName), `return { env = { FROM = "lua" } }`)

	cfg := Load(root, nil)
	if cfg.Env["FROM"] != "json" {
		t.Errorf("Env = %+v, want the json document to win", cfg.Env)
	}
}

func TestApply_MergesIntoRegistry(t *testing.T) {
	registry := backend.DefaultRegistry()

	cfg := &Config{
		Backends: map[string]backend.Backend{
			"cmake": {
				Env: map[string]string{"CMAKE_COLOR_DIAGNOSTICS": "ON"},
				Tasks: map[string]backend.Task{
					"install": {Cmd: []string{"cmake", "--install", "${build_dir}"}},
				},
			},
		},
	}
	cfg.Apply(registry)

	cmake, ok := registry.Get("cmake")
	if !ok {
		t.Fatal("cmake disappeared from registry")
	}
	if cmake.Env["CMAKE_COLOR_DIAGNOSTICS"] != "ON" {
		t.Errorf("override env not merged: %+v", cmake.Env)
	}
	if _, ok := cmake.Tasks["install"]; !ok {
		t.Error("override task not merged")
	}
	if _, ok := cmake.Tasks["build"]; !ok {
		t.Error("built-in task lost during merge")
	}
}

func TestResolve_LeavesBaseUntouched(t *testing.T) {
	base := backend.DefaultRegistry()

	cfg := &Config{
		Backends: map[string]backend.Backend{
			"cmake": {
				Tasks: map[string]backend.Task{
					"greet": {Cmd: []string{"echo", "hi"}},
				},
			},
		},
	}
	view := cfg.Resolve(base)

	if view == base {
		t.Fatal("Resolve with overrides returned the base registry")
	}
	cmake, _ := view.Get("cmake")
	if _, ok := cmake.Task("greet"); !ok {
		t.Error("override task missing from the view")
	}
	if _, ok := cmake.Task("build"); !ok {
		t.Error("built-in task missing from the view")
	}

	pristine, _ := base.Get("cmake")
	if _, ok := pristine.Task("greet"); ok {
		t.Error("override leaked into the base registry")
	}
}

func TestResolve_NoOverridesReturnsBase(t *testing.T) {
	base := backend.DefaultRegistry()
	if view := (&Config{}).Resolve(base); view != base {
		t.Error("empty config should not clone the registry")
	}
}

func TestDotenv(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".env"), "API_KEY=secret\nPORT=8080\n")

	env := Dotenv(root)
	if env["API_KEY"] != "secret" || env["PORT"] != "8080" {
		t.Errorf("Dotenv = %+v", env)
	}

	if got := Dotenv(t.TempDir()); got != nil {
		t.Errorf("Dotenv without file = %+v, want nil", got)
	}
}
