// Package config loads server configuration from defaults, an optional
// config file, environment variables, and command-line flags, in the same
// layering the teacher's gofast-server used: github.com/spf13/viper bound
// to github.com/spf13/cobra flags, with github.com/fsnotify/fsnotify
// powering a live config-file watch.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds the subset of server configuration the event loop, accept
// loop, and CLI surface depend on. Persistence/auth/TLS fields from the
// teacher are not carried forward — this core has no such concerns.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	MaxConnections int `mapstructure:"max_connections"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// DefaultConfig returns the baseline configuration used before any file,
// environment, or flag override is applied.
func DefaultConfig() *Config {
	return &Config{
		Host:           "0.0.0.0",
		Port:           6380,
		MaxConnections: 10000,
		LogLevel:       "info",
		LogFormat:      "text",
		PollTimeout:    time.Second,
	}
}

// Load reads configuration the way the teacher's LoadConfig did: defaults,
// then an optional gofast.yaml/gofast.toml, then GOFAST_* environment
// variables, then whatever flags the caller has already bound into v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	v.SetConfigName("gofast")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/gofast/")
	v.AddConfigPath("$HOME/.gofast")

	v.SetEnvPrefix("GOFAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("max_connections", cfg.MaxConnections)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("poll_timeout", cfg.PollTimeout)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Validate checks field ranges before the server attempts to bind.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 0-65535)", c.Port)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("max_connections must be at least 1")
	}
	validLevels := []string{"trace", "debug", "info", "warn", "error", "fatal"}
	ok := false
	for _, l := range validLevels {
		if c.LogLevel == l {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLevels, ", "))
	}
	return nil
}

// WatchForLogLevelChanges arms viper's fsnotify-backed config watch and
// calls onLevelChange whenever the on-disk log_level changes. The bind
// port is deliberately NOT live-reloaded — a running listener can't move
// without a restart, so a port change in the file is logged and ignored.
func WatchForLogLevelChanges(v *viper.Viper, boundPort int, onLevelChange func(string), onPortChangeIgnored func(int)) {
	level := v.GetString("log_level")
	v.OnConfigChange(func(e fsnotify.Event) {
		if newLevel := v.GetString("log_level"); newLevel != level {
			level = newLevel
			onLevelChange(newLevel)
		}

		if newPort := v.GetInt("port"); newPort != boundPort {
			onPortChangeIgnored(newPort)
		}
	})
	v.WatchConfig()
}
