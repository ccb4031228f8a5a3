package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/clusterupgrade/pkg/log"
	"github.com/cuemby/clusterupgrade/pkg/transformations"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of the upgrade service
type Config struct {
	// DataDir holds the bbolt database
	DataDir string `yaml:"data_dir"`
	// APIAddr is the listen address of the REST API
	APIAddr string `yaml:"api_addr"`
	// ReadOnly serves only GET requests
	ReadOnly bool `yaml:"read_only"`
	// ProvisionDelay is how long the simulated provisioner takes per task
	ProvisionDelay time.Duration `yaml:"provision_delay"`

	Log LogConfig `yaml:"log"`

	// Transformations overrides the default transformer names per domain
	// and version. A listed version replaces the default list of that
	// version; unlisted versions keep their defaults.
	Transformations transformations.Settings `yaml:"transformations"`
}

// LogConfig configures the global logger
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir: "/var/lib/clusterupgrade",
		APIAddr: ":8090",
		Log: LogConfig{
			Level: string(log.InfoLevel),
		},
	}
}

// Load reads a YAML configuration file on top of the defaults. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.APIAddr == "" {
		return fmt.Errorf("api_addr is required")
	}
	if c.ProvisionDelay < 0 {
		return fmt.Errorf("provision_delay must not be negative")
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	for domain, versions := range c.Transformations {
		for version := range versions {
			if _, err := transformations.ParseVersion(version); err != nil {
				return fmt.Errorf("transformations.%s: %w", domain, err)
			}
		}
	}
	return nil
}

// Logging returns the logger configuration
func (c *Config) Logging() (log.Config, error) {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.Config{}, err
	}
	return log.Config{
		Level:      level,
		JSONOutput: c.Log.JSON,
	}, nil
}
