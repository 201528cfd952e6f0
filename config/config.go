// Package config loads the runtime's process-wide configuration from
// YAML, following config/notifiers.go's pattern: a defaulted value type,
// a `type plain X` alias to avoid UnmarshalYAML recursing on itself, and
// validation performed right after the plain decode.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultBindAddr is used when Cluster.BindAddr is empty.
const DefaultBindAddr = "0.0.0.0:7946"

// DefaultTimeToLive is the process-wide time-to-live handed to a Behavior
// that doesn't override TimeToLive, unless the behavior does.
const DefaultTimeToLive = 10 * time.Minute

// DefaultPersister names the bundled disk-resident store.
const DefaultPersister = "badger"

// Config is the top-level process configuration.
type Config struct {
	Cluster           ClusterConfig   `yaml:"cluster,omitempty"`
	Persister         PersisterConfig `yaml:"persister,omitempty"`
	DefaultTimeToLive time.Duration   `yaml:"default_time_to_live,omitempty"`
	Stopper           StopperConfig   `yaml:"stopper,omitempty"`
	Log               LogConfig       `yaml:"log,omitempty"`
}

// ClusterConfig configures gossip membership.
type ClusterConfig struct {
	BindAddr      string   `yaml:"bind_addr,omitempty"`
	AdvertiseAddr string   `yaml:"advertise_addr,omitempty"`
	KnownPeers    []string `yaml:"known_peers,omitempty"`
	ClientOnly    bool     `yaml:"client_only,omitempty"`
}

// PersisterConfig selects and configures the durable backend.
type PersisterConfig struct {
	// Kind is one of "badger" (default, disk-resident) or "memory" (no
	// durability; for tests and throwaway runs).
	Kind string `yaml:"kind,omitempty"`
	// Dir is the badger data directory, used only when Kind is "badger".
	Dir string `yaml:"dir,omitempty"`
}

// StopperConfig configures the memory-pressure eviction policy.
type StopperConfig struct {
	PollInterval          time.Duration `yaml:"poll_interval,omitempty"`
	FreeFractionThreshold float64       `yaml:"free_fraction_threshold,omitempty"`
}

// LogConfig configures theaterlog's slog handler.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns a Config with every field set to its process default.
func Default() Config {
	return Config{
		Cluster: ClusterConfig{
			BindAddr: DefaultBindAddr,
		},
		Persister: PersisterConfig{
			Kind: DefaultPersister,
			Dir:  "./data",
		},
		DefaultTimeToLive: DefaultTimeToLive,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// UnmarshalYAML implements the yaml.Unmarshaler interface, applying
// Default() before the plain decode so unspecified fields keep their
// defaults rather than zero values.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	*c = Default()
	type plain Config
	if err := unmarshal((*plain)(c)); err != nil {
		return err
	}
	return c.Validate()
}

// Validate checks field invariants that a bare YAML decode can't enforce.
func (c *Config) Validate() error {
	switch c.Persister.Kind {
	case "badger", "memory":
	default:
		return fmt.Errorf("unknown persister kind %q", c.Persister.Kind)
	}
	if c.Stopper.FreeFractionThreshold < 0 || c.Stopper.FreeFractionThreshold > 1 {
		return fmt.Errorf("stopper free_fraction_threshold must be in [0,1], got %v", c.Stopper.FreeFractionThreshold)
	}
	return nil
}

// Load reads and parses a YAML config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
