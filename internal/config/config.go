// Package config loads taskstorm's application settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config holds application settings. Zero values fall back to defaults at
// load time, so a partial file only overrides what it names.
type Config struct {
	// SessionFile is the session store path. Defaults to
	// <user-config>/taskstorm/sessions.json.
	SessionFile string `toml:"session_file"`

	// Selector picks the selector implementation: "tcell" or "plain".
	Selector string `toml:"selector"`

	// LogLevel is the minimum log level name.
	LogLevel string `toml:"log_level"`

	// OutputBufferSize is the per-stream read buffer size in bytes.
	OutputBufferSize int `toml:"output_buffer_size"`
}

// ParseError wraps a settings parse failure with its source path.
type ParseError struct {
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		SessionFile:      defaultSessionFile(),
		Selector:         "tcell",
		LogLevel:         "info",
		OutputBufferSize: 64 * 1024,
	}
}

// DefaultPath returns the default settings file location.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "taskstorm", "config.toml")
}

func defaultSessionFile() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "taskstorm", "sessions.json")
}

// Load reads settings from path, falling back to DefaultPath when path is
// empty. A missing file yields the defaults; a malformed file yields a
// ParseError.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &ParseError{Path: path, Message: err.Error(), Err: err}
	}

	// Re-apply defaults for fields the file left empty.
	defaults := Default()
	if cfg.SessionFile == "" {
		cfg.SessionFile = defaults.SessionFile
	}
	if cfg.Selector == "" {
		cfg.Selector = defaults.Selector
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.OutputBufferSize <= 0 {
		cfg.OutputBufferSize = defaults.OutputBufferSize
	}

	return cfg, nil
}
