// Package preset loads, merges and resolves CMake configure/build presets
// and discovers build targets through the CMake File API.
//
// Presets come from two layered documents under the project root:
// CMakePresets.json (base) and CMakeUserPresets.json (user). User entries
// with the same name fully replace base entries before inheritance
// resolution. The raw documents are cached per root; the cache can be
// invalidated explicitly or by a file watcher.
package preset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/mapstructure"

	"github.com/dshills/taskstorm/internal/log"
	"github.com/dshills/taskstorm/internal/macro"
)

// Layered preset document filenames.
const (
	BaseFileName = "CMakePresets.json"
	UserFileName = "CMakeUserPresets.json"
)

// documentCacheSize bounds the per-root raw document cache.
const documentCacheSize = 32

// Preset is a resolved configure preset.
type Preset struct {
	// Name is the preset's unique key within a project.
	Name string `mapstructure:"name"`

	// Hidden presets are usable as inheritance parents but excluded from
	// selection lists. Hidden is never inherited.
	Hidden bool `mapstructure:"hidden"`

	// Inherits lists parent preset names, left-to-right priority.
	Inherits []string `mapstructure:"-"`

	// BinaryDir is the macro-expanded build directory. Defaults to
	// build/<name> when neither the preset nor an ancestor supplies one.
	BinaryDir string `mapstructure:"binaryDir"`

	// Fields carries all remaining preset fields verbatim.
	Fields map[string]any `mapstructure:",remain"`
}

// BuildPreset is a build preset, loaded verbatim without inheritance
// resolution.
type BuildPreset struct {
	// Name is the build preset name.
	Name string `mapstructure:"name"`

	// ConfigurePreset names the configure preset this build preset
	// belongs to.
	ConfigurePreset string `mapstructure:"configurePreset"`

	// Fields carries all remaining fields verbatim.
	Fields map[string]any `mapstructure:",remain"`
}

// document is one parsed preset file.
type document struct {
	ConfigurePresets []map[string]any
	BuildPresets     []map[string]any
}

// documents is the cached pair of layered files for one root.
type documents struct {
	base *document // nil when absent or unparseable
	user *document
}

// Store loads and caches preset documents per project root.
type Store struct {
	cache  *lru.Cache[string, *documents]
	logger *log.Logger
}

// NewStore creates a preset store. A nil logger disables warnings.
func NewStore(logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Null
	}
	cache, _ := lru.New[string, *documents](documentCacheSize)
	return &Store{cache: cache, logger: logger}
}

// Invalidate drops the cached documents for root.
func (s *Store) Invalidate(root string) {
	s.cache.Remove(root)
}

// InvalidateAll drops every cached document.
func (s *Store) InvalidateAll() {
	s.cache.Purge()
}

// Load returns the resolved, non-hidden configure presets for root, sorted
// by name. It returns nil when neither layered file exists. A parse failure
// on either file is logged as a warning and that file contributes nothing.
func (s *Store) Load(root string) []Preset {
	docs := s.documents(root)
	if docs.base == nil && docs.user == nil {
		return nil
	}

	// Merge raw presets by name, user layer replacing base wholesale.
	byName := make(map[string]map[string]any)
	var order []string
	add := func(doc *document) {
		if doc == nil {
			return
		}
		for _, raw := range doc.ConfigurePresets {
			name, _ := raw["name"].(string)
			if name == "" {
				continue
			}
			if _, seen := byName[name]; !seen {
				order = append(order, name)
			}
			byName[name] = raw
		}
	}
	add(docs.base)
	add(docs.user)

	var result []Preset
	for _, name := range order {
		raw := byName[name]
		if hidden, _ := raw["hidden"].(bool); hidden {
			continue
		}

		resolved := resolveInheritance(name, byName, make(map[string]bool))

		if _, ok := resolved["binaryDir"].(string); !ok {
			resolved["binaryDir"] = "build/${presetName}"
		}

		vars := map[string]string{
			"sourceDir":  root,
			"presetName": name,
		}
		if dir, ok := resolved["binaryDir"].(string); ok {
			resolved["binaryDir"] = macro.Expand(dir, vars)
		}

		preset, err := decodePreset(resolved)
		if err != nil {
			s.logger.Warn("preset %q in %s: %v", name, root, err)
			continue
		}
		result = append(result, preset)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Find returns the resolved preset with the given name.
func (s *Store) Find(root, name string) (Preset, bool) {
	for _, p := range s.Load(root) {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// BuildPresets returns the build presets for root, base document first then
// user document, optionally filtered by configure preset name.
func (s *Store) BuildPresets(root, configurePreset string) []BuildPreset {
	docs := s.documents(root)

	var result []BuildPreset
	collect := func(doc *document) {
		if doc == nil {
			return
		}
		for _, raw := range doc.BuildPresets {
			var bp BuildPreset
			if err := mapstructure.Decode(raw, &bp); err != nil || bp.Name == "" {
				continue
			}
			if configurePreset != "" && bp.ConfigurePreset != configurePreset {
				continue
			}
			result = append(result, bp)
		}
	}
	collect(docs.base)
	collect(docs.user)
	return result
}

// HasBuildPresets reports whether either layered document defines at least
// one build preset.
func (s *Store) HasBuildPresets(root string) bool {
	docs := s.documents(root)
	return (docs.base != nil && len(docs.base.BuildPresets) > 0) ||
		(docs.user != nil && len(docs.user.BuildPresets) > 0)
}

// documents returns the cached layered documents for root, loading them on
// first use.
func (s *Store) documents(root string) *documents {
	if cached, ok := s.cache.Get(root); ok {
		return cached
	}

	docs := &documents{
		base: s.readDocument(filepath.Join(root, BaseFileName)),
		user: s.readDocument(filepath.Join(root, UserFileName)),
	}
	s.cache.Add(root, docs)
	return docs
}

// readDocument parses one preset file. A missing file returns nil silently;
// a parse failure returns nil with a warning so the other layer still
// contributes.
func (s *Store) readDocument(path string) *document {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var parsed struct {
		ConfigurePresets []map[string]any `json:"configurePresets"`
		BuildPresets     []map[string]any `json:"buildPresets"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		s.logger.Warn("parsing %s: %v", path, err)
		return nil
	}

	return &document{
		ConfigurePresets: parsed.ConfigurePresets,
		BuildPresets:     parsed.BuildPresets,
	}
}

// resolveInheritance deep-merges a preset over its transitively resolved
// parents with "keep" semantics: fields already present on the child win.
// A name visited once during one resolution is never revisited, which
// breaks inheritance cycles without raising an error.
func resolveInheritance(name string, byName map[string]map[string]any, visited map[string]bool) map[string]any {
	raw, ok := byName[name]
	if !ok || visited[name] {
		return map[string]any{}
	}
	visited[name] = true

	merged := deepCopy(raw)

	for _, parent := range inheritsList(raw) {
		if visited[parent] {
			continue
		}
		parentResolved := resolveInheritance(parent, byName, visited)
		// hidden is never inherited.
		delete(parentResolved, "hidden")
		keepMerge(merged, parentResolved)
	}

	return merged
}

// inheritsList normalizes the inherits field, which may be a single name or
// an ordered list of names.
func inheritsList(raw map[string]any) []string {
	switch v := raw["inherits"].(type) {
	case string:
		return []string{v}
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			if name, ok := item.(string); ok {
				names = append(names, name)
			}
		}
		return names
	default:
		return nil
	}
}

// keepMerge copies parent fields into child only where the child has none.
// Nested maps merge recursively with the same rule.
func keepMerge(child, parent map[string]any) {
	for key, parentVal := range parent {
		childVal, exists := child[key]
		if !exists {
			child[key] = deepCopyValue(parentVal)
			continue
		}

		childMap, childIsMap := childVal.(map[string]any)
		parentMap, parentIsMap := parentVal.(map[string]any)
		if childIsMap && parentIsMap {
			keepMerge(childMap, parentMap)
		}
	}
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopy(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}

// decodePreset converts a resolved raw preset into a typed Preset, keeping
// unrecognized fields in Fields.
func decodePreset(raw map[string]any) (Preset, error) {
	var p Preset
	if err := mapstructure.Decode(raw, &p); err != nil {
		return Preset{}, err
	}
	p.Inherits = inheritsList(raw)
	delete(p.Fields, "inherits")
	return p, nil
}
