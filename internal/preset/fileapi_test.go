package preset

import (
	"os"
	"path/filepath"
	"testing"
)

// writeReply lays out a minimal File API reply under binaryDir.
func writeReply(t *testing.T, binaryDir, indexName string, targets map[string]string) {
	t.Helper()
	replyDir := filepath.Join(binaryDir, ".cmake", "api", "v1", "reply")

	codemodel := `{"configurations": [{"targets": [`
	first := true
	for file := range targets {
		if !first {
			codemodel += ","
		}
		codemodel += `{"jsonFile": "` + file + `"}`
		first = false
	}
	codemodel += `]}]}`

	writeFile(t, filepath.Join(replyDir, indexName),
		`{"objects": [{"kind": "codemodel", "jsonFile": "codemodel-v2-abc.json"}]}`)
	writeFile(t, filepath.Join(replyDir, "codemodel-v2-abc.json"), codemodel)
	for file, content := range targets {
		writeFile(t, filepath.Join(replyDir, file), content)
	}
}

func TestTargets_EmptyBinaryDir(t *testing.T) {
	s := newTestStore()
	if got := s.Targets(t.TempDir(), ""); got != nil {
		t.Errorf("Targets with empty binaryDir = %v, want nil", got)
	}
}

func TestTargets_NoReplyWritesQuery(t *testing.T) {
	root := t.TempDir()
	binaryDir := filepath.Join(root, "build", "debug")

	s := newTestStore()
	got := s.Targets(root, "build/debug")
	if got != nil {
		t.Errorf("Targets = %v, want nil before configure", got)
	}

	queryDir := filepath.Join(binaryDir, ".cmake", "api", "v1", "query", "client-taskstorm")
	for _, name := range []string{"codemodel-v2", "cache-v2", "toolchains-v1"} {
		if _, err := os.Stat(filepath.Join(queryDir, name)); err != nil {
			t.Errorf("query file %s not written: %v", name, err)
		}
	}
}

func TestTargets_FiltersExecutables(t *testing.T) {
	root := t.TempDir()
	binaryDir := filepath.Join(root, "build", "debug")

	writeReply(t, binaryDir, "index-2024.json", map[string]string{
		"target-app.json": `{"name": "app", "type": "EXECUTABLE", "artifacts": [{"path": "bin/app"}]}`,
		"target-lib.json": `{"name": "core", "type": "STATIC_LIBRARY", "artifacts": [{"path": "lib/libcore.a"}]}`,
	})

	s := newTestStore()
	targets := s.Targets(root, binaryDir)

	if len(targets) != 1 {
		t.Fatalf("got %d targets, want 1 (library filtered): %+v", len(targets), targets)
	}
	if targets[0].Name != "app" {
		t.Errorf("Name = %q, want app", targets[0].Name)
	}
	want := filepath.Join(binaryDir, "bin", "app")
	if targets[0].Path != want {
		t.Errorf("Path = %q, want %q (relative artifact joined to binary dir)", targets[0].Path, want)
	}
}

func TestTargets_AbsoluteArtifactKept(t *testing.T) {
	root := t.TempDir()
	binaryDir := filepath.Join(root, "build")

	writeReply(t, binaryDir, "index-1.json", map[string]string{
		"target-app.json": `{"name": "app", "type": "EXECUTABLE", "artifacts": [{"path": "/opt/out/app"}]}`,
	})

	s := newTestStore()
	targets := s.Targets(root, binaryDir)
	if len(targets) != 1 || targets[0].Path != "/opt/out/app" {
		t.Errorf("targets = %+v, want absolute path preserved", targets)
	}
}

func TestTargets_PicksLatestIndex(t *testing.T) {
	root := t.TempDir()
	binaryDir := filepath.Join(root, "build")
	replyDir := filepath.Join(binaryDir, ".cmake", "api", "v1", "reply")

	// Stale index points at a codemodel that no longer exists; the
	// lexicographically greatest index must be the one consulted.
	writeFile(t, filepath.Join(replyDir, "index-2024-01.json"),
		`{"objects": [{"kind": "codemodel", "jsonFile": "gone.json"}]}`)
	writeReply(t, binaryDir, "index-2024-02.json", map[string]string{
		"target-app.json": `{"name": "app", "type": "EXECUTABLE", "artifacts": [{"path": "app"}]}`,
	})

	s := newTestStore()
	targets := s.Targets(root, binaryDir)
	if len(targets) != 1 || targets[0].Name != "app" {
		t.Errorf("targets = %+v, want app from the latest index", targets)
	}
}

func TestTargets_MalformedTargetFileSkipped(t *testing.T) {
	root := t.TempDir()
	binaryDir := filepath.Join(root, "build")

	writeReply(t, binaryDir, "index-1.json", map[string]string{
		"target-bad.json": `{broken`,
		"target-app.json": `{"name": "app", "type": "EXECUTABLE", "artifacts": [{"path": "app"}]}`,
	})

	s := newTestStore()
	targets := s.Targets(root, binaryDir)
	if len(targets) != 1 || targets[0].Name != "app" {
		t.Errorf("targets = %+v, want the good sibling to survive", targets)
	}
}
