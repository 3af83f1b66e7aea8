package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/justapithecus/freetracer/types"
)

// Load reads a YAML config file, expands environment variables, and
// unmarshals into a Config struct with defaults applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	expanded := ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.SocketPath == "" {
		c.SocketPath = DefaultSocketPath
	}
	if c.Helper.ExpectedVersion == "" {
		c.Helper.ExpectedVersion = types.HelperProtocolVersion
	}
	if c.Helper.UnitPath == "" {
		c.Helper.UnitPath = DefaultUnitPath
	}
	if c.Devices.PathPrefix == "" {
		c.Devices.PathPrefix = "/dev/"
	}
}
