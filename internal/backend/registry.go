package backend

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// detectionPriority is checked in order before any remaining registered
// backends, so a project carrying both CMake and generic markers resolves to
// CMake.
var detectionPriority = []string{"cmake", "python", "cargo", "go", "make"}

// Registry maps backend names to their definitions.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]*Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]*Backend)}
}

// Register adds a backend. The first registration for a name wins; later
// registrations for the same name are ignored. Project-level overrides go
// through Override instead.
func (r *Registry) Register(b *Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[b.Name]; exists {
		return
	}
	r.backends[b.Name] = b.clone()
}

// Override deep-merges a project-level backend definition over the
// registered one, the override winning field by field. An override for an
// unknown name registers a new backend.
func (r *Registry) Override(o *Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()

	base, exists := r.backends[o.Name]
	if !exists {
		r.backends[o.Name] = o.clone()
		return
	}

	merged := base.clone()
	if len(o.Markers) > 0 {
		merged.Markers = append([]string(nil), o.Markers...)
	}
	if o.ConfigureMarker != "" {
		merged.ConfigureMarker = o.ConfigureMarker
	}
	for name, task := range o.Tasks {
		merged.Tasks[name] = cloneTask(task)
	}
	merged.Variables = mergeStringMaps(merged.Variables, o.Variables)
	merged.Env = mergeStringMaps(merged.Env, o.Env)

	r.backends[o.Name] = merged
}

// Clone returns a deep copy of the registry. Project-level overrides merge
// onto a clone so one root's document never changes what another root sees.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := NewRegistry()
	for name, b := range r.backends {
		out.backends[name] = b.clone()
	}
	return out
}

// Get returns a registered backend by name.
func (r *Registry) Get(name string) (*Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// Names returns all registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Markers returns the union of all registered marker files, sorted and
// de-duplicated. FindRoot walks upward looking for any of these.
func (r *Registry) Markers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var markers []string
	for _, b := range r.backends {
		for _, m := range b.Markers {
			if !seen[m] {
				seen[m] = true
				markers = append(markers, m)
			}
		}
	}
	sort.Strings(markers)
	return markers
}

// Detect returns the backend matching the given root. Priority-listed names
// are checked first in order, then the remaining registered backends. A
// backend matches when any of its markers exists directly under root. No
// match returns ("", nil).
func (r *Registry) Detect(root string) (string, *Backend) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	checked := make(map[string]bool)

	for _, name := range detectionPriority {
		checked[name] = true
		if b, ok := r.backends[name]; ok && matchesRoot(root, b) {
			return name, b
		}
	}

	// Remaining backends in sorted order for determinism.
	rest := make([]string, 0, len(r.backends))
	for name := range r.backends {
		if !checked[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	for _, name := range rest {
		if b := r.backends[name]; matchesRoot(root, b) {
			return name, b
		}
	}

	return "", nil
}

// matchesRoot reports whether any backend marker exists directly under root.
func matchesRoot(root string, b *Backend) bool {
	for _, marker := range b.Markers {
		if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
			return true
		}
	}
	return false
}

// FindRoot walks upward from start looking for the nearest ancestor
// directory containing any registered marker file. It returns "" when no
// ancestor up to the filesystem root matches. An empty start defaults to the
// working directory.
func (r *Registry) FindRoot(start string) string {
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return ""
		}
		start = cwd
	}

	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}

	// A file start walks from its directory.
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	markers := r.Markers()
	for {
		for _, marker := range markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeStringMaps combines two string maps, override winning.
func mergeStringMaps(base, override map[string]string) map[string]string {
	if base == nil && override == nil {
		return nil
	}
	result := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		result[k] = v
	}
	return result
}
