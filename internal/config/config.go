// Package config loads the service configuration from TOML.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the full service configuration.
type Config struct {
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Profiles ProfilesConfig `toml:"profiles"`
	Redis    RedisConfig    `toml:"redis"`
	Stream   StreamConfig   `toml:"stream"`
	Jobs     JobsConfig     `toml:"jobs"`
	Log      LogConfig      `toml:"log"`
	Timezone string         `toml:"timezone"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the listen address.
func (a APIConfig) Addr() string { return fmt.Sprintf("%s:%d", a.Host, a.Port) }

// DatabaseConfig configures the history store.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// ProfilesConfig configures profile loading.
type ProfilesConfig struct {
	Dir string `toml:"dir"`

	// SchedulesPath points at the recurring-run definitions; empty
	// disables the schedule runner.
	SchedulesPath string `toml:"schedules_path"`
}

// RedisConfig configures the metadata cache backend.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// StreamConfig configures the job event stream.
type StreamConfig struct {
	// KeepaliveSeconds is the ping interval for streaming connections;
	// must be at most 30 so stale connections are detected.
	KeepaliveSeconds int `toml:"keepalive_seconds"`

	// SubscriberBuffer is the per-subscriber event buffer.
	SubscriberBuffer int `toml:"subscriber_buffer"`
}

// JobsConfig configures job retention.
type JobsConfig struct {
	RetentionHours int `toml:"retention_hours"`
	MaxJobs        int `toml:"max_jobs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		API:      APIConfig{Host: "127.0.0.1", Port: 8500},
		Database: DatabaseConfig{Path: "airgrid.db"},
		Profiles: ProfilesConfig{Dir: "profiles"},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Stream:   StreamConfig{KeepaliveSeconds: 25, SubscriberBuffer: 64},
		Jobs:     JobsConfig{RetentionHours: 24, MaxJobs: 200},
		Log:      LogConfig{Level: "info"},
		Timezone: "Local",
	}
}

// Load reads a TOML config file over the defaults. A missing path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if c.Stream.KeepaliveSeconds <= 0 || c.Stream.KeepaliveSeconds > 30 {
		return fmt.Errorf("stream.keepalive_seconds must be in (0,30]")
	}
	return nil
}
