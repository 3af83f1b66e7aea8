package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/freetracer/types"
)

// DefaultSocketPath is where the helper daemon listens. The runtime
// directory is named by the shared service identity.
const DefaultSocketPath = "/run/" + types.ServiceName + "/helper.sock"

// DefaultUnitPath is where the helper's systemd unit is registered,
// named by the shared service identity.
const DefaultUnitPath = "/etc/systemd/system/" + types.ServiceName + ".service"

// Config represents a freetracer.yaml configuration file.
// All values are optional and act as defaults for flash flags.
// CLI flags always override config values.
type Config struct {
	SocketPath string        `yaml:"socket_path"`
	Helper     HelperConfig  `yaml:"helper"`
	Devices    DevicesConfig `yaml:"devices"`
	Adapter    AdapterConfig `yaml:"adapter"`
}

// HelperConfig holds helper lifecycle defaults from the config file.
type HelperConfig struct {
	ExpectedVersion     string   `yaml:"expected_version"`
	UnitPath            string   `yaml:"unit_path"`
	InstallCommand      []string `yaml:"install_command"`
	InstallWaitAttempts int      `yaml:"install_wait_attempts"`
	InstallWaitInterval Duration `yaml:"install_wait_interval"`
}

// DevicesConfig holds device selection defaults from the config file.
type DevicesConfig struct {
	// PathPrefix restricts flashable devices to paths under it,
	// e.g. "/dev/". Empty means no restriction beyond removability.
	PathPrefix string `yaml:"path_prefix"`
}

// AdapterConfig holds completion notification defaults from the
// config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	// Channel is the pub/sub channel name for the redis adapter.
	Channel string   `yaml:"channel,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
	Retries *int     `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
