package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from Go duration strings
// ("1.5s", "1m") in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level configuration structure for vmlink.
type Config struct {
	SSH       SSHSettings       `yaml:"ssh"`
	Discovery DiscoverySettings `yaml:"discovery"`
	LogLevel  string            `yaml:"logLevel,omitempty"` // debug, info, warn, error
}

// SSHSettings configures how the device is reached over SSH.
type SSHSettings struct {
	// ConfigPath is an ssh_config file passed as -F to every ssh
	// invocation (command execution, forward setup, forward cancel).
	ConfigPath string `yaml:"configPath,omitempty"`

	// Interface is the outgoing network interface, only meaningful for
	// IPv6 link-local device addresses (combined as address%interface).
	Interface string `yaml:"interface,omitempty"`
}

// DiscoverySettings tunes the endpoint discovery loop.
type DiscoverySettings struct {
	// PollInterval is the pause between discovery cycles.
	PollInterval Duration `yaml:"pollInterval,omitempty"`

	// RPCTimeout bounds each VM service round trip.
	RPCTimeout Duration `yaml:"rpcTimeout,omitempty"`

	// IsolateWaitTimeout bounds isolate searches that wait for a new
	// endpoint to appear.
	IsolateWaitTimeout Duration `yaml:"isolateWaitTimeout,omitempty"`
}
