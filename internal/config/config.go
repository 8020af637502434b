// Package config loads the server configuration from a TOML file.
//
// Values resolve in this order: CLI flag, environment variable, file, default.
// The CLI layer applies flags and environment variables on top of what Load
// returns; Load itself only merges the file over Default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ironsheep/yail-server/internal/logger"
	"github.com/ironsheep/yail-server/internal/source"
)

// Config represents the server configuration file structure.
// Field names map to snake_case keys via struct tags.
type Config struct {
	// Addr is the host:port the YAIL listener binds.
	// Default: :5556
	Addr string `toml:"addr"`

	// Paths are directories (or single files) scanned for local images at startup.
	Paths []string `toml:"paths"`

	// Extensions restricts the directory scan. Default: .jpg .jpeg .gif .png
	Extensions []string `toml:"extensions"`

	// LogLevel controls logging verbosity: debug, info, warn, error.
	// Default: info
	LogLevel string `toml:"log_level"`

	// MaxEncodes caps concurrent image conversions. 0 means one per CPU.
	MaxEncodes int `toml:"max_encodes"`

	// MaxConnections caps concurrently served clients.
	// Default: 64
	MaxConnections int `toml:"max_connections"`

	// IdleTimeoutSeconds closes connections that send nothing for this long.
	// Default: 300
	IdleTimeoutSeconds int `toml:"idle_timeout_seconds"`

	// GenTimeoutSeconds bounds a single image generation request.
	// Default: 120
	GenTimeoutSeconds int `toml:"gen_timeout_seconds"`

	// CameraURL is the snapshot endpoint answering "video". Empty disables it.
	CameraURL string `toml:"camera_url"`

	// MetricsAddr is where /metrics and /health are served. Empty disables it.
	MetricsAddr string `toml:"metrics_addr"`

	// MdnsEnabled advertises the server as _yail._tcp on the local network.
	// Default: false
	MdnsEnabled bool `toml:"mdns_enabled"`

	OpenAIAPIKey string `toml:"openai_api_key"`
	GeminiAPIKey string `toml:"gemini_api_key"`

	// GenModel is the initial generation model. Default: dall-e-3
	GenModel      string `toml:"gen_model"`
	OpenAISize    string `toml:"openai_size"`
	OpenAIQuality string `toml:"openai_quality"`
	OpenAIStyle   string `toml:"openai_style"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Addr:               DefaultAddr,
		Extensions:         append([]string(nil), source.DefaultExtensions...),
		LogLevel:           DefaultLogLevel,
		MaxConnections:     DefaultMaxConnections,
		IdleTimeoutSeconds: DefaultIdleTimeoutSeconds,
		GenTimeoutSeconds:  DefaultGenTimeoutSeconds,
		GenModel:           source.DefaultModel,
		OpenAISize:         source.DefaultSize,
		OpenAIQuality:      source.DefaultQuality,
		OpenAIStyle:        source.DefaultStyle,
	}
}

// DefaultConfigPath returns ~/.yail/config.toml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".yail", "config.toml"), nil
}

// Load reads a TOML config file and merges it over Default.
//
// Behavior:
//   - If path is empty, the default location is tried; a missing default
//     file yields the defaults without error.
//   - If path is given, a missing file is an error.
//   - A file that exists but cannot be parsed is always an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			return cfg, nil
		}
		path = defaultPath
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		logger.Warn("unknown config key ignored", "key", key.String(), "file", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from YAIL_* environment variables and the
// provider API key variables. Empty variables are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAIAPIKey = v
	}
	if v := getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
	if v := getenv("YAIL_CAMERA_URL"); v != "" {
		c.CameraURL = v
	}
	if v := getenv("YAIL_GEN_MODEL"); v != "" {
		c.GenModel = v
	}
}

// Validate checks ranges and generation setting values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.MaxEncodes < 0 {
		return fmt.Errorf("max_encodes must not be negative")
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("max_connections must not be negative")
	}
	if c.IdleTimeoutSeconds < 0 || c.GenTimeoutSeconds < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	return c.ApplyGenSettings(source.NewGenSettings())
}

// ApplyGenSettings pushes the configured generation options into s.
func (c *Config) ApplyGenSettings(s *source.GenSettings) error {
	pairs := [][2]string{
		{"model", c.GenModel},
		{"size", c.OpenAISize},
		{"quality", c.OpenAIQuality},
		{"style", c.OpenAIStyle},
	}
	for _, p := range pairs {
		if p[1] == "" {
			continue
		}
		if err := s.Set(p[0], p[1]); err != nil {
			return err
		}
	}
	return nil
}

// IdleTimeout returns IdleTimeoutSeconds as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// GenTimeout returns GenTimeoutSeconds as a duration.
func (c *Config) GenTimeout() time.Duration {
	return time.Duration(c.GenTimeoutSeconds) * time.Second
}
