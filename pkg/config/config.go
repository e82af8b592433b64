// Package config loads ft settings from .ft/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/flatree/pkg/loader"
)

// FileName is the config file inside the state directory.
const FileName = "config.yaml"

// Config represents a config file (.ft/config.yaml)
type Config struct {
	// Source is opened when no -source flag is given
	Source string `yaml:"source,omitempty" json:"source,omitempty"`

	// ShowHidden includes dot files in directory sources
	ShowHidden bool `yaml:"show_hidden,omitempty" json:"show_hidden,omitempty"`

	// ExpandDepth opens this many levels on start (0: top level only)
	ExpandDepth int `yaml:"expand_depth,omitempty" json:"expand_depth,omitempty"`

	// MaxExpandRows stops bulk expansion once this many rows are visible
	MaxExpandRows int `yaml:"max_expand_rows,omitempty" json:"max_expand_rows,omitempty"`

	// Log configures the log file (the TUI owns stdout)
	Log LogConfig `yaml:"log,omitempty" json:"log,omitempty"`

	// Watch configures live updates for directory sources
	Watch WatchConfig `yaml:"watch,omitempty" json:"watch,omitempty"`

	// Sources are bookmarked sources offered by the picker
	Sources []Bookmark `yaml:"sources,omitempty" json:"sources,omitempty"`

	// Discovery finds more sources for the picker
	Discovery DiscoveryConfig `yaml:"discovery,omitempty" json:"discovery,omitempty"`
}

// LogConfig controls logging.
type LogConfig struct {
	// File receives the log; empty disables logging
	File string `yaml:"file,omitempty" json:"file,omitempty"`

	// Level is a zerolog level name (default: info)
	Level string `yaml:"level,omitempty" json:"level,omitempty"`
}

// WatchConfig controls the filesystem watcher.
type WatchConfig struct {
	// Enabled turns live updates on (default: true)
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// DebounceMs waits this long for changes to settle (default: 200)
	DebounceMs int `yaml:"debounce_ms,omitempty" json:"debounce_ms,omitempty"`
}

// Bookmark is a named source.
type Bookmark struct {
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	Path string `yaml:"path" json:"path"`
}

// DiscoveryConfig controls scanning for sources
type DiscoveryConfig struct {
	// ScanPaths are directories searched for documents and databases
	ScanPaths []string `yaml:"scan_paths,omitempty" json:"scan_paths,omitempty"`

	// MaxDepth limits directory traversal depth (default: 3)
	MaxDepth int `yaml:"max_depth,omitempty" json:"max_depth,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		MaxExpandRows: 10000,
		Log:           LogConfig{Level: "info"},
		Watch:         WatchConfig{DebounceMs: 200},
		Discovery:     DiscoveryConfig{MaxDepth: 3},
	}
}

// applyDefaults fills zero values from Default.
func (c *Config) applyDefaults() {
	d := Default()
	if c.MaxExpandRows == 0 {
		c.MaxExpandRows = d.MaxExpandRows
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Watch.DebounceMs == 0 {
		c.Watch.DebounceMs = d.Watch.DebounceMs
	}
	if c.Discovery.MaxDepth == 0 {
		c.Discovery.MaxDepth = d.Discovery.MaxDepth
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.ExpandDepth < 0 {
		return fmt.Errorf("expand_depth (%d) cannot be negative", c.ExpandDepth)
	}
	if c.MaxExpandRows < 0 {
		return fmt.Errorf("max_expand_rows (%d) cannot be negative", c.MaxExpandRows)
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("watch.debounce_ms (%d) cannot be negative", c.Watch.DebounceMs)
	}
	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}

	seen := make(map[string]bool)
	for i, b := range c.Sources {
		if b.Path == "" {
			return fmt.Errorf("sources[%d]: path is required", i)
		}
		name := b.DisplayName()
		if seen[name] {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
	}
	return nil
}

// WatchEnabled reports whether live updates are on.
func (c *Config) WatchEnabled() bool {
	if c.Watch.Enabled == nil {
		return true
	}
	return *c.Watch.Enabled
}

// Debounce returns the watcher debounce as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// LogLevel returns the parsed level, falling back to info.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || c.Log.Level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// DisplayName returns the bookmark name, defaulting to the base name.
func (b Bookmark) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return filepath.Base(b.Path)
}

// ResolvedPath expands a leading ~ in the bookmark path.
func (b Bookmark) ResolvedPath() string {
	return expandHome(b.Path)
}

// Load reads a configuration file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOrDefault loads the config at path, or the one found from the
// current directory when path is empty. A missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		found, err := Find("")
		if err != nil {
			cfg := Default()
			return &cfg, nil
		}
		path = found
	}
	return Load(path)
}

// Find searches for .ft/config.yaml starting from dir and walking up.
func Find(dir string) (string, error) {
	root, ok := DetectProjectFrom(dir)
	if !ok {
		return "", os.ErrNotExist
	}
	candidate := filepath.Join(root, loader.StateDir, FileName)
	if _, err := os.Stat(candidate); err != nil {
		return "", err
	}
	return candidate, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
