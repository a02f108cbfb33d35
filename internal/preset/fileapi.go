package preset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Target is a discovered executable artifact available for run/debug.
type Target struct {
	// Name is the target name as declared to the build system.
	Name string

	// Path is the absolute artifact path.
	Path string

	// Type is the build-system type tag (only EXECUTABLE entries are
	// returned by Targets).
	Type string
}

// File API layout under a binary directory.
const (
	replyDirRel = ".cmake/api/v1/reply"
	queryDirRel = ".cmake/api/v1/query/client-taskstorm"
)

// queryFiles are written to request metadata generation on the next
// configure.
var queryFiles = []string{"codemodel-v2", "cache-v2", "toolchains-v1"}

// Targets discovers executable targets for root from the File API reply
// under binaryDir. It returns nil when binaryDir is empty.
//
// When no reply exists yet, Targets writes the query marker files so the
// next configure generates one, and returns nil: discovery is eventually
// consistent, not synchronous. Parse failures at any stage yield an empty
// result for that stage without aborting sibling entries.
func (s *Store) Targets(root, binaryDir string) []Target {
	if binaryDir == "" {
		return nil
	}
	if !filepath.IsAbs(binaryDir) {
		binaryDir = filepath.Join(root, binaryDir)
	}

	replyDir := filepath.Join(binaryDir, filepath.FromSlash(replyDirRel))
	if info, err := os.Stat(replyDir); err != nil || !info.IsDir() {
		s.writeQuery(binaryDir)
		return nil
	}

	indexPath := latestIndex(replyDir)
	if indexPath == "" {
		return nil
	}

	indexData, err := os.ReadFile(indexPath)
	if err != nil {
		return nil
	}

	// The index references the codemodel document, which references
	// per-configuration target documents.
	var codemodelFile string
	gjson.GetBytes(indexData, "objects").ForEach(func(_, obj gjson.Result) bool {
		if obj.Get("kind").String() == "codemodel" {
			codemodelFile = obj.Get("jsonFile").String()
			return false
		}
		return true
	})
	if codemodelFile == "" {
		return nil
	}

	codemodelData, err := os.ReadFile(filepath.Join(replyDir, codemodelFile))
	if err != nil {
		return nil
	}

	var targets []Target
	seen := make(map[string]bool)
	gjson.GetBytes(codemodelData, "configurations").ForEach(func(_, cfg gjson.Result) bool {
		cfg.Get("targets").ForEach(func(_, ref gjson.Result) bool {
			jsonFile := ref.Get("jsonFile").String()
			if jsonFile == "" {
				return true
			}
			target, ok := s.readTarget(replyDir, jsonFile)
			if !ok || seen[target.Name] {
				return true
			}
			seen[target.Name] = true
			targets = append(targets, target)
			return true
		})
		return true
	})

	sort.Slice(targets, func(i, j int) bool {
		return targets[i].Name < targets[j].Name
	})
	return targets
}

// readTarget parses one target document and keeps only EXECUTABLE entries.
// A relative artifact path resolves against the binary directory, four
// levels above the reply directory.
func (s *Store) readTarget(replyDir, jsonFile string) (Target, bool) {
	data, err := os.ReadFile(filepath.Join(replyDir, jsonFile))
	if err != nil {
		return Target{}, false
	}

	typ := gjson.GetBytes(data, "type").String()
	if typ != "EXECUTABLE" {
		return Target{}, false
	}

	name := gjson.GetBytes(data, "name").String()
	artifact := gjson.GetBytes(data, "artifacts.0.path").String()
	if name == "" || artifact == "" {
		return Target{}, false
	}

	if !filepath.IsAbs(artifact) {
		binaryDir := filepath.Dir(filepath.Dir(filepath.Dir(filepath.Dir(replyDir))))
		artifact = filepath.Join(binaryDir, artifact)
	}

	return Target{Name: name, Path: artifact, Type: typ}, true
}

// latestIndex returns the lexicographically greatest index-*.json in the
// reply directory. Index names embed sortable content, so greatest acts as
// latest.
func latestIndex(replyDir string) string {
	entries, err := os.ReadDir(replyDir)
	if err != nil {
		return ""
	}

	var latest string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "index-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if name > latest {
			latest = name
		}
	}
	if latest == "" {
		return ""
	}
	return filepath.Join(replyDir, latest)
}

// writeQuery drops query marker files requesting metadata generation on the
// next configure. Failures are logged and otherwise ignored.
func (s *Store) writeQuery(binaryDir string) {
	queryDir := filepath.Join(binaryDir, filepath.FromSlash(queryDirRel))
	if err := os.MkdirAll(queryDir, 0o755); err != nil {
		s.logger.Debug("creating file API query dir: %v", err)
		return
	}
	for _, name := range queryFiles {
		path := filepath.Join(queryDir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			s.logger.Debug("writing file API query %s: %v", name, err)
		}
	}
}
