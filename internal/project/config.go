// Package project loads per-project overrides: backend definitions,
// environment, variables and explicitly declared run targets.
//
// The override document lives under the project root as
// .taskstorm/project.json or .taskstorm/project.lua. When both exist the
// JSON form wins. A parse failure is logged as a warning and treated as an
// absent document; project overrides are a convenience and must never block
// task execution.
package project

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"

	"github.com/dshills/taskstorm/internal/backend"
	"github.com/dshills/taskstorm/internal/log"
)

// Override document filenames, relative to the project root.
const (
	JSONFileName = ".taskstorm/project.json"
	LuaFileName  = ".taskstorm/project.lua"
)

// TargetSpec declares an explicit run target, bypassing discovery.
type TargetSpec struct {
	// Path is the executable path, absolute or root-relative.
	Path string `json:"path"`

	// Args are extra arguments passed to the target.
	Args []string `json:"args,omitempty"`

	// Env are target-specific environment overrides.
	Env map[string]string `json:"env,omitempty"`
}

// Config is the per-project override document.
type Config struct {
	// Backends are deep-merged over the built-in definitions, the
	// override winning. The map key supplies the backend name.
	Backends map[string]backend.Backend `json:"backends,omitempty"`

	// Env are project-level environment overrides.
	Env map[string]string `json:"env,omitempty"`

	// Variables are project-level macro values.
	Variables map[string]string `json:"variables,omitempty"`

	// Targets declares explicit run targets by name.
	Targets map[string]TargetSpec `json:"targets,omitempty"`
}

// Load reads the project override document for root. A missing document
// yields an empty config; a malformed one is logged and also yields an
// empty config. A nil logger disables warnings.
func Load(root string, logger *log.Logger) *Config {
	if logger == nil {
		logger = log.Null
	}

	jsonPath := filepath.Join(root, JSONFileName)
	if data, err := os.ReadFile(jsonPath); err == nil {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			logger.Warn("parsing %s: %v", jsonPath, err)
			return &Config{}
		}
		cfg, err := decodeConfig(raw)
		if err != nil {
			logger.Warn("decoding %s: %v", jsonPath, err)
			return &Config{}
		}
		return cfg
	}

	luaPath := filepath.Join(root, LuaFileName)
	if _, err := os.Stat(luaPath); err == nil {
		raw, err := loadLua(luaPath)
		if err != nil {
			logger.Warn("loading %s: %v", luaPath, err)
			return &Config{}
		}
		cfg, err := decodeConfig(raw)
		if err != nil {
			logger.Warn("decoding %s: %v", luaPath, err)
			return &Config{}
		}
		return cfg
	}

	return &Config{}
}

// Apply merges the config's backend overrides into the registry. The map
// key wins over any name set inside the entry, so a document can override
// "cmake" without repeating the name.
func (c *Config) Apply(registry *backend.Registry) {
	for name, b := range c.Backends {
		b.Name = name
		registry.Override(&b)
	}
}

// Resolve returns a registry view with the config's backend overrides
// applied. The overrides are scoped to this config's root: the base registry
// is never mutated, and a config without overrides returns the base
// unchanged.
func (c *Config) Resolve(base *backend.Registry) *backend.Registry {
	if len(c.Backends) == 0 {
		return base
	}
	view := base.Clone()
	c.Apply(view)
	return view
}

// Dotenv reads the project's .env file into a map. A missing or malformed
// file yields nil.
func Dotenv(root string) map[string]string {
	env, err := godotenv.Read(filepath.Join(root, ".env"))
	if err != nil {
		return nil
	}
	return env
}

// decodeConfig converts a raw document into a typed Config. The decoder
// keys off json tags so JSON and Lua documents share one field naming.
func decodeConfig(raw map[string]any) (*Config, error) {
	cfg := &Config{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}
	return cfg, nil
}
