package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models rollplane.yml.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Actor struct {
		// ID is recorded as creator on plans, sheets and tasks when the
		// caller does not supply one.
		ID string `yaml:"id"`
	} `yaml:"actor"`
	Features struct {
		ScheduledTasks bool `yaml:"scheduled_tasks"`
		MultiTenancy   bool `yaml:"multi_tenancy"`
	} `yaml:"features"`
}

// Feature flag names accepted by IsFeatureEnabled.
const (
	FeatureScheduledTasks = "scheduled_tasks"
	FeatureMultiTenancy   = "multi_tenancy"
)

// IsFeatureEnabled reports whether a named feature flag is on.
func (c *Config) IsFeatureEnabled(name string) bool {
	if c == nil {
		return false
	}
	switch name {
	case FeatureScheduledTasks:
		return c.Features.ScheduledTasks
	case FeatureMultiTenancy:
		return c.Features.MultiTenancy
	}
	return false
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Actor.ID == "" {
		return fmt.Errorf("config.actor.id is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "rollplane.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8642

actor:
  id: admin

features:
  scheduled_tasks: true
  multi_tenancy: false
`
