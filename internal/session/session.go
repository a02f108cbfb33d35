// Package session persists per-project last-chosen values (preset, build
// preset, target, build target) across process restarts.
//
// The backing document is a single JSON object keyed by absolute project
// root, each value an object of string keys to string values. The file is
// read once per process and rewritten whole on every mutation; documents are
// small and writes happen once per user selection, so incremental writes
// would buy nothing.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Well-known session keys.
const (
	KeyPreset      = "preset"
	KeyBuildPreset = "build_preset"
	KeyTarget      = "target"
	KeyBuildTarget = "build_target"
)

// Store is a durable per-root key/value store of last choices.
//
// An absent root or key is distinct from a stored empty string: the empty
// string records an explicit "all targets" choice, while absence means the
// user has never chosen.
type Store struct {
	mu     sync.Mutex
	path   string
	data   map[string]map[string]string
	loaded bool
}

// New creates a store backed by the given file path. The file is not read
// until the first access.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// load reads the backing file once. A missing file or a parse failure
// initializes an empty store; session loss must never block task execution.
func (s *Store) load() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.data = make(map[string]map[string]string)

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	var parsed map[string]map[string]string
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return
	}
	if parsed != nil {
		s.data = parsed
	}
}

// Get returns the stored value for root and key. The second result is false
// when no value has been stored, which callers must distinguish from a
// stored empty string.
func (s *Store) Get(root, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	entry, ok := s.data[root]
	if !ok {
		return "", false
	}
	value, ok := entry[key]
	return value, ok
}

// Set stores a value for root and key and persists immediately.
func (s *Store) Set(root, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	entry, ok := s.data[root]
	if !ok {
		entry = make(map[string]string)
		s.data[root] = entry
	}
	entry[key] = value

	return s.persist()
}

// Clear removes all stored values for root and persists. Other roots are
// untouched.
func (s *Store) Clear(root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	delete(s.data, root)
	return s.persist()
}

// Roots returns the roots with stored values.
func (s *Store) Roots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	roots := make([]string, 0, len(s.data))
	for root := range s.data {
		roots = append(roots, root)
	}
	return roots
}

// Values returns a copy of all stored values for root.
func (s *Store) Values(root string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	entry, ok := s.data[root]
	if !ok {
		return nil
	}
	result := make(map[string]string, len(entry))
	for k, v := range entry {
		result[k] = v
	}
	return result
}

// Invalidate drops the in-memory cache so the next access re-reads the
// backing file.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.data = nil
}

// persist rewrites the whole backing document. Caller holds the lock.
func (s *Store) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o644)
}
