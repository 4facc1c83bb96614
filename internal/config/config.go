// Package config loads daemon configuration from file, environment and
// flags via viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/portal"
)

// PreviewConfig controls the diagnostic preview server.
type PreviewConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// Config is the daemon configuration.
type Config struct {
	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty" yaml:"log_pretty"`

	// ChannelCapacity bounds the frame channel between the capture thread
	// and the consumer. When full, the producer drops frames.
	ChannelCapacity int `mapstructure:"channel_capacity" yaml:"channel_capacity"`

	// Encoder selects the frame encoder: "raw" or "h264".
	Encoder string `mapstructure:"encoder" yaml:"encoder"`

	// RestoreTokenPath stores the portal restore token between runs.
	RestoreTokenPath string `mapstructure:"restore_token_path" yaml:"restore_token_path"`

	Preview PreviewConfig `mapstructure:"preview" yaml:"preview"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		LogLevel:         "info",
		LogPretty:        false,
		ChannelCapacity:  8,
		Encoder:          "raw",
		RestoreTokenPath: portal.DefaultTokenPath(),
		Preview:          PreviewConfig{Enabled: false, Port: 8389},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.Getenv("HOME")
	}
	return filepath.Join(configDir, "cosmic-ext-rdp-server", "config.yaml")
}

// Load reads configuration from the given file (or the default location when
// empty), layered under environment variables prefixed COSMIC_RDP_. A missing
// config file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := Defaults()
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_pretty", defaults.LogPretty)
	v.SetDefault("channel_capacity", defaults.ChannelCapacity)
	v.SetDefault("encoder", defaults.Encoder)
	v.SetDefault("restore_token_path", defaults.RestoreTokenPath)
	v.SetDefault("preview.enabled", defaults.Preview.Enabled)
	v.SetDefault("preview.port", defaults.Preview.Port)

	v.SetEnvPrefix("COSMIC_RDP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigFile(DefaultPath())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: failed to read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.ChannelCapacity <= 0 {
		return fmt.Errorf("config: channel_capacity must be positive, got %d", c.ChannelCapacity)
	}
	switch c.Encoder {
	case "raw", "bitmap", "h264":
	default:
		return fmt.Errorf("config: unknown encoder %q", c.Encoder)
	}
	if c.Preview.Enabled && (c.Preview.Port <= 0 || c.Preview.Port > 65535) {
		return fmt.Errorf("config: invalid preview port %d", c.Preview.Port)
	}
	return nil
}

// Write saves the configuration as YAML.
func (c *Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: failed to create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: failed to marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
