// internal/config/config.go
//
// This package handles configuration and the .hub directory structure.
// Every project served by the hub gets a .hub/ folder in its root holding
// config.yaml (project settings and plugin activation records) and logs/.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// HubDir is the name of the directory we create in each project
	HubDir = ".hub"

	// TestingEnv forces the testing flag (root devDependencies are crawled).
	TestingEnv = "HUB_TESTING"
)

const defaultProjectConfigYAML = `# hub project configuration
version: 1

# When true the plugin crawl also follows the project's devDependencies.
testing: false

log:
  level: info
  format: console
  # Write to .hub/logs/hub.log instead of stderr.
  file: false

# Activation records. A plugin is active when a record names it in
# attributes.module; attributes and relationships are merged into the
# configuration handed to the plugin.
plugins: []
#  - type: plugin-configs
#    id: "@hub/git"
#    attributes:
#      module: "@hub/git"
#      remote: https://example.com/repo.git
`

// LogConfig captures logger preferences.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   bool   `yaml:"file"`
}

// PluginConfig is one activation record.
type PluginConfig struct {
	Type          string         `yaml:"type,omitempty" json:"type,omitempty"`
	ID            string         `yaml:"id,omitempty" json:"id,omitempty"`
	Attributes    map[string]any `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Relationships map[string]any `yaml:"relationships,omitempty" json:"relationships,omitempty"`
}

// Module returns the plugin name the record activates, if it has one.
func (pc PluginConfig) Module() (string, bool) {
	raw, ok := pc.Attributes["module"]
	if !ok {
		return "", false
	}
	name, ok := raw.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}

func (pc PluginConfig) String() string {
	return fmt.Sprintf("{type=%s id=%s attributes=%v}", pc.Type, pc.ID, pc.Attributes)
}

// ProjectConfig models .hub/config.yaml.
type ProjectConfig struct {
	Version int            `yaml:"version"`
	Testing bool           `yaml:"testing"`
	Log     LogConfig      `yaml:"log"`
	Plugins []PluginConfig `yaml:"plugins"`
}

// Config holds the runtime configuration for the hub.
type Config struct {
	// ProjectDir is the absolute project root the plugin crawl starts from.
	ProjectDir string

	// HubProjectDir is ProjectDir/.hub
	HubProjectDir string

	Project ProjectConfig
}

// InitHubDir creates the .hub directory structure in the given project
// directory and writes a default config.yaml when none exists.
func InitHubDir(projectDir string) error {
	hubDir := filepath.Join(projectDir, HubDir)
	if err := os.MkdirAll(filepath.Join(hubDir, "logs"), 0o755); err != nil {
		return err
	}
	return ensureProjectConfig(filepath.Join(hubDir, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings.
// A missing config.yaml leaves the defaults in place.
func NewConfig(projectDir string) (*Config, error) {
	if strings.TrimSpace(projectDir) == "" {
		return nil, fmt.Errorf("config: project dir is required")
	}
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve project dir: %w", err)
	}
	cfg := &Config{
		ProjectDir:    abs,
		HubProjectDir: filepath.Join(abs, HubDir),
		Project:       defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if forced, ok := envBool(TestingEnv); ok {
		cfg.Project.Testing = forced
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.HubProjectDir, "logs")
}

// LogFilePath returns the file used when file logging is enabled.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.LogsDir(), "hub.log")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.HubProjectDir, "config.yaml")
}

// Testing reports whether the crawl includes the project's devDependencies.
func (c *Config) Testing() bool {
	return c.Project.Testing
}

// PluginConfigs returns the activation records.
func (c *Config) PluginConfigs() []PluginConfig {
	return c.Project.Plugins
}

// Activate appends (or replaces) the activation record for module and
// persists config.yaml.
func (c *Config) Activate(module string, attributes map[string]any) error {
	module = strings.TrimSpace(module)
	if module == "" {
		return fmt.Errorf("config: module is required")
	}
	attrs := make(map[string]any, len(attributes)+1)
	for key, value := range attributes {
		attrs[key] = value
	}
	attrs["module"] = module
	record := PluginConfig{Type: "plugin-configs", ID: module, Attributes: attrs}
	for i, existing := range c.Project.Plugins {
		if name, ok := existing.Module(); ok && name == module {
			c.Project.Plugins[i] = record
			return c.saveProjectConfig()
		}
	}
	c.Project.Plugins = append(c.Project.Plugins, record)
	return c.saveProjectConfig()
}

// Deactivate removes every activation record for module and persists
// config.yaml. It reports whether anything was removed.
func (c *Config) Deactivate(module string) (bool, error) {
	kept := c.Project.Plugins[:0]
	removed := false
	for _, record := range c.Project.Plugins {
		if name, ok := record.Module(); ok && name == module {
			removed = true
			continue
		}
		kept = append(kept, record)
	}
	c.Project.Plugins = kept
	if !removed {
		return false, nil
	}
	return true, c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Log.Level == "" {
		pc.Log.Level = "info"
	}
	if pc.Log.Format == "" {
		pc.Log.Format = "console"
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Log.Level = strings.ToLower(strings.TrimSpace(pc.Log.Level))
	pc.Log.Format = strings.ToLower(strings.TrimSpace(pc.Log.Format))
	for i := range pc.Plugins {
		pc.Plugins[i].Type = strings.TrimSpace(pc.Plugins[i].Type)
		pc.Plugins[i].ID = strings.TrimSpace(pc.Plugins[i].ID)
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	switch pc.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be 'console' or 'json'")
	}
	return nil
}

func envBool(key string) (bool, bool) {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	default:
		return false, false
	}
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.HubProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure hub dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
