package preset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/taskstorm/internal/log"
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

func newTestStore() *Store {
	return NewStore(log.Null)
}

func TestLoad_NoFiles(t *testing.T) {
	s := newTestStore()
	if got := s.Load(t.TempDir()); got != nil {
		t.Errorf("Load with no preset files = %v, want nil", got)
	}
}

func TestLoad_HiddenFilteredAndSorted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, BaseFileName), `{
		"configurePresets": [
			{"name": "release", "binaryDir": "${sourceDir}/build/${presetName}"},
			{"name": "base", "hidden": true, "binaryDir": "${sourceDir}/build/${presetName}"},
			{"name": "debug", "inherits": "base"}
		]
	}`)

	s := newTestStore()
	presets := s.Load(root)

	if len(presets) != 2 {
		t.Fatalf("got %d presets, want 2: %+v", len(presets), presets)
	}
	if presets[0].Name != "debug" || presets[1].Name != "release" {
		t.Errorf("presets not sorted by name: %q, %q", presets[0].Name, presets[1].Name)
	}
}

func TestLoad_InheritanceUsesChildName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, BaseFileName), `{
		"configurePresets": [
			{"name": "base", "hidden": true, "binaryDir": "${sourceDir}/build/${presetName}"},
			{"name": "debug", "inherits": "base"}
		]
	}`)

	s := newTestStore()
	presets := s.Load(dir)

	if len(presets) != 1 {
		t.Fatalf("got %d presets, want 1", len(presets))
	}
	want := filepath.Join(dir, "build", "debug")
	if presets[0].BinaryDir != want {
		t.Errorf("BinaryDir = %q, want %q (child's own name, not the parent's)", presets[0].BinaryDir, want)
	}
	if presets[0].Hidden {
		t.Error("hidden must not be inherited")
	}
}

func TestLoad_DefaultBinaryDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, BaseFileName), `{
		"configurePresets": [{"name": "plain"}]
	}`)

	s := newTestStore()
	presets := s.Load(root)

	if len(presets) != 1 {
		t.Fatalf("got %d presets, want 1", len(presets))
	}
	if presets[0].BinaryDir != "build/plain" {
		t.Errorf("BinaryDir = %q, want build/plain", presets[0].BinaryDir)
	}
}

func TestLoad_InheritanceCycleTerminates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, BaseFileName), `{
		"configurePresets": [
			{"name": "a", "inherits": "b", "cacheVariables": {"FROM_A": "1"}},
			{"name": "b", "inherits": "a", "cacheVariables": {"FROM_B": "1"}}
		]
	}`)

	s := newTestStore()
	presets := s.Load(root)

	if len(presets) != 2 {
		t.Fatalf("cycle resolution lost presets: %+v", presets)
	}
	for _, p := range presets {
		cache, ok := p.Fields["cacheVariables"].(map[string]any)
		if !ok {
			t.Fatalf("preset %q lost cacheVariables", p.Name)
		}
		if len(cache) != 2 {
			t.Errorf("preset %q cacheVariables = %v, want both parents' values", p.Name, cache)
		}
	}
}

func TestLoad_KeepMergeChildWins(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, BaseFileName), `{
		"configurePresets": [
			{"name": "base", "hidden": true, "generator": "Ninja",
			 "cacheVariables": {"OPT": "base", "SHARED": "yes"}},
			{"name": "child", "inherits": "base",
			 "cacheVariables": {"OPT": "child"}}
		]
	}`)

	s := newTestStore()
	p, ok := s.Find(root, "child")
	if !ok {
		t.Fatal("child preset not found")
	}

	if p.Fields["generator"] != "Ninja" {
		t.Errorf("missing inherited field: %v", p.Fields)
	}
	cache := p.Fields["cacheVariables"].(map[string]any)
	if cache["OPT"] != "child" {
		t.Errorf("child value overridden by parent: %v", cache)
	}
	if cache["SHARED"] != "yes" {
		t.Errorf("parent value not merged into nested map: %v", cache)
	}
}

func TestLoad_MultipleInheritsLeftToRight(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, BaseFileName), `{
		"configurePresets": [
			{"name": "first", "hidden": true, "generator": "Ninja", "toolset": "v1"},
			{"name": "second", "hidden": true, "generator": "Make", "architecture": "x64"},
			{"name": "child", "inherits": ["first", "second"]}
		]
	}`)

	s := newTestStore()
	p, ok := s.Find(root, "child")
	if !ok {
		t.Fatal("child preset not found")
	}

	// Left-to-right priority: first's generator wins, second still
	// contributes fields first lacks.
	if p.Fields["generator"] != "Ninja" {
		t.Errorf("generator = %v, want Ninja (left parent wins)", p.Fields["generator"])
	}
	if p.Fields["toolset"] != "v1" || p.Fields["architecture"] != "x64" {
		t.Errorf("fields = %v, want both parents' contributions", p.Fields)
	}
}

func TestLoad_UserLayerReplacesBaseEntry(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, BaseFileName), `{
		"configurePresets": [{"name": "debug", "generator": "Ninja", "binaryDir": "from-base"}]
	}`)
	writeFile(t, filepath.Join(root, UserFileName), `{
		"configurePresets": [{"name": "debug", "binaryDir": "from-user"}]
	}`)

	s := newTestStore()
	p, ok := s.Find(root, "debug")
	if !ok {
		t.Fatal("debug preset not found")
	}

	if p.BinaryDir != "from-user" {
		t.Errorf("BinaryDir = %q, want user layer value", p.BinaryDir)
	}
	// Replacement is wholesale, not a merge: base-only fields vanish.
	if _, ok := p.Fields["generator"]; ok {
		t.Error("user-layer entry should fully replace the base entry")
	}
}

func TestLoad_ParseFailureTreatedAsAbsent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, BaseFileName), `{broken`)
	writeFile(t, filepath.Join(root, UserFileName), `{
		"configurePresets": [{"name": "only"}]
	}`)

	s := newTestStore()
	presets := s.Load(root)

	if len(presets) != 1 || presets[0].Name != "only" {
		t.Errorf("user layer should still contribute: %+v", presets)
	}
}

func TestLoad_BothFilesUnparseable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, BaseFileName), `nope`)

	s := newTestStore()
	// Base exists but is unparseable and no user file exists; both layers
	// are treated as absent, so the result is nil.
	if got := s.Load(root); got != nil {
		t.Errorf("Load = %v, want nil", got)
	}
}

func TestLoad_CacheInvalidation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, BaseFileName), `{
		"configurePresets": [{"name": "v1"}]
	}`)

	s := newTestStore()
	if got := s.Load(root); len(got) != 1 || got[0].Name != "v1" {
		t.Fatalf("initial load: %+v", got)
	}

	writeFile(t, filepath.Join(root, BaseFileName), `{
		"configurePresets": [{"name": "v2"}]
	}`)

	// Still cached.
	if got := s.Load(root); got[0].Name != "v1" {
		t.Errorf("cache should serve the first read: %+v", got)
	}

	s.Invalidate(root)
	if got := s.Load(root); got[0].Name != "v2" {
		t.Errorf("after Invalidate: %+v", got)
	}
}

func TestBuildPresets_FilterByConfigurePreset(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, BaseFileName), `{
		"configurePresets": [{"name": "debug"}, {"name": "release"}],
		"buildPresets": [
			{"name": "debug", "configurePreset": "debug"},
			{"name": "release", "configurePreset": "release"}
		]
	}`)
	writeFile(t, filepath.Join(root, UserFileName), `{
		"buildPresets": [{"name": "debug-verbose", "configurePreset": "debug"}]
	}`)

	s := newTestStore()

	all := s.BuildPresets(root, "")
	if len(all) != 3 {
		t.Fatalf("got %d build presets, want 3: %+v", len(all), all)
	}
	// Base document entries come before user document entries.
	if all[0].Name != "debug" || all[2].Name != "debug-verbose" {
		t.Errorf("document order not preserved: %+v", all)
	}

	debug := s.BuildPresets(root, "debug")
	if len(debug) != 2 {
		t.Errorf("filtered = %+v, want 2 entries", debug)
	}
	for _, bp := range debug {
		if bp.ConfigurePreset != "debug" {
			t.Errorf("filter leaked %+v", bp)
		}
	}
}

func TestHasBuildPresets(t *testing.T) {
	withBuild := t.TempDir()
	writeFile(t, filepath.Join(withBuild, BaseFileName), `{
		"configurePresets": [{"name": "debug"}],
		"buildPresets": [{"name": "debug", "configurePreset": "debug"}]
	}`)

	configureOnly := t.TempDir()
	writeFile(t, filepath.Join(configureOnly, BaseFileName), `{
		"configurePresets": [{"name": "debug"}]
	}`)

	s := newTestStore()
	if !s.HasBuildPresets(withBuild) {
		t.Error("HasBuildPresets = false for project with build presets")
	}
	if s.HasBuildPresets(configureOnly) {
		t.Error("HasBuildPresets = true for configure-only project")
	}
}
