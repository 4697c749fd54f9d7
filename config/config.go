// Package config loads the process-wide bus configuration from an optional
// YAML file with environment overrides on top.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config selects the transport backend and its parameters.
type Config struct {
	Backend string `yaml:"backend"` // "slcan" or "loopback"
	Channel string `yaml:"channel"` // serial device for slcan
	Bitrate int    `yaml:"bitrate"`

	Monitor MonitorConfig `yaml:"monitor"`
	Log     LogConfig     `yaml:"log"`
}

type MonitorConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

type LogConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	return Config{
		Backend: "loopback",
		Channel: "/dev/ttyACM0",
		Bitrate: 500000,
		Monitor: MonitorConfig{
			Enabled:    false,
			ListenAddr: ":8080",
		},
		Log: LogConfig{
			Dir:    ".",
			Prefix: "can_log_",
		},
	}
}

// Load reads the YAML file at path (missing file falls back to defaults),
// then applies the CAN_BACKEND, CAN_CHANNEL and CAN_BITRATE environment
// overrides.
func Load(path string) Config {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("config: no file at %s, using defaults", path)
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Printf("config: error parsing %s: %v, using defaults", path, err)
			cfg = Default()
		}
	}
	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CAN_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("CAN_CHANNEL"); v != "" {
		c.Channel = v
	}
	if v := os.Getenv("CAN_BITRATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Bitrate = n
		}
	}
}

// Validate rejects configurations no backend can serve.
func (c *Config) Validate() error {
	switch c.Backend {
	case "slcan", "loopback":
	default:
		return fmt.Errorf("unknown CAN backend %q", c.Backend)
	}
	if c.Bitrate <= 0 {
		return fmt.Errorf("bitrate must be positive, got %d", c.Bitrate)
	}
	return nil
}
