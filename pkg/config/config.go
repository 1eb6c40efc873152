package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the RingDB configuration
type Config struct {
	// DataDir holds the metadata document and, by default, the volumes.
	DataDir string `yaml:"data_dir"`
	// BaseName names the storage instance inside DataDir.
	BaseName string `yaml:"base_name"`
	// VolumesDir overrides where page files live. Empty means DataDir.
	VolumesDir string `yaml:"volumes_dir"`
	NumVolumes int    `yaml:"num_volumes"`
	// PageSize is the fixed size of one volume file in bytes.
	PageSize int `yaml:"page_size"`
	// MaxLateWrite is the tolerated write lateness; it bounds how long
	// offsets may sit unsorted in a staging cache.
	MaxLateWrite time.Duration `yaml:"max_late_write"`
	// MaxCacheSize bounds one staging generation in entries.
	MaxCacheSize int     `yaml:"max_cache_size"`
	Port         int     `yaml:"port"`
	Bind         string  `yaml:"bind"`
	Logging      Logging `yaml:"logging"`
}

// Logging contains logging configuration
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:      "./data",
		BaseName:     "ringdb",
		NumVolumes:   4,
		PageSize:     4 * 1024 * 1024,
		MaxLateWrite: 10 * time.Second,
		MaxCacheSize: 4096,
		Port:         8181,
		Bind:         "127.0.0.1",
		Logging: Logging{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.BaseName == "" {
		return fmt.Errorf("base_name must not be empty")
	}
	if c.NumVolumes <= 0 {
		return fmt.Errorf("num_volumes must be positive, got %d", c.NumVolumes)
	}
	if c.PageSize < 4096 {
		return fmt.Errorf("page_size %d is too small", c.PageSize)
	}
	if c.MaxCacheSize <= 0 {
		return fmt.Errorf("max_cache_size must be positive, got %d", c.MaxCacheSize)
	}
	return nil
}

// MetadataPath returns the location of the storage root document.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.DataDir, c.BaseName+".ringdb")
}

// VolumesPath returns where page files live.
func (c *Config) VolumesPath() string {
	if c.VolumesDir != "" {
		return c.VolumesDir
	}
	return c.DataDir
}

// LogLevel maps the configured level onto slog.
func (c *Config) LogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
