// Package config loads and validates the FlexSearch server configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the complete FlexSearch server configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	Write   WriteConfig   `yaml:"write" json:"write"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PathsConfig configures on-disk locations.
type PathsConfig struct {
	// DataRoot is the directory holding one subdirectory per index.
	DataRoot string `yaml:"data_root" json:"data_root"`

	// SettingsPath is the sqlite database holding persisted index
	// definitions. Defaults to <data_root>/settings.db.
	SettingsPath string `yaml:"settings_path" json:"settings_path"`
}

// WriteConfig configures the write pipeline.
type WriteConfig struct {
	// QueueCapacity is the bounded command queue size. Producers block when
	// the queue is full.
	QueueCapacity int `yaml:"queue_capacity" json:"queue_capacity"`

	// Workers is the number of pipeline workers. Defaults to one per
	// logical CPU.
	Workers int `yaml:"workers" json:"workers"`

	// VersionCacheSize is the per-stripe capacity of the versioning cache.
	VersionCacheSize int `yaml:"version_cache_size" json:"version_cache_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level         string `yaml:"level" json:"level"`
	FilePath      string `yaml:"file_path" json:"file_path"`
	MaxSizeMB     int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles      int    `yaml:"max_files" json:"max_files"`
	WriteToStderr bool   `yaml:"write_to_stderr" json:"write_to_stderr"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataRoot: defaultDataRoot(),
		},
		Write: WriteConfig{
			QueueCapacity:    1000,
			Workers:          runtime.NumCPU(),
			VersionCacheSize: 65536,
		},
		Logging: LoggingConfig{
			Level:         "info",
			MaxSizeMB:     10,
			MaxFiles:      5,
			WriteToStderr: true,
		},
	}
}

// Load reads configuration from path, falling back to defaults for any
// omitted value. A missing file yields the defaults. Environment variables
// override the file (highest priority).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No config file is fine; defaults apply.
		case err != nil:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	if c.Paths.DataRoot == "" {
		c.Paths.DataRoot = defaultDataRoot()
	}
	if c.Paths.SettingsPath == "" {
		c.Paths.SettingsPath = filepath.Join(c.Paths.DataRoot, "settings.db")
	}
	if c.Write.QueueCapacity == 0 {
		c.Write.QueueCapacity = 1000
	}
	if c.Write.Workers == 0 {
		c.Write.Workers = runtime.NumCPU()
	}
	if c.Write.VersionCacheSize == 0 {
		c.Write.VersionCacheSize = 65536
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxFiles == 0 {
		c.Logging.MaxFiles = 5
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Write.QueueCapacity < 1 {
		return fmt.Errorf("write.queue_capacity must be >= 1, got %d", c.Write.QueueCapacity)
	}
	if c.Write.Workers < 1 {
		return fmt.Errorf("write.workers must be >= 1, got %d", c.Write.Workers)
	}
	if c.Write.VersionCacheSize < 1 {
		return fmt.Errorf("write.version_cache_size must be >= 1, got %d", c.Write.VersionCacheSize)
	}
	if c.Paths.DataRoot == "" {
		return fmt.Errorf("paths.data_root must not be empty")
	}
	return nil
}

// applyEnvOverrides applies FLEXSEARCH_* environment variables.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("FLEXSEARCH_DATA_ROOT"); v != "" {
		c.Paths.DataRoot = v
	}
	if v := os.Getenv("FLEXSEARCH_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Write.QueueCapacity = n
		}
	}
	if v := os.Getenv("FLEXSEARCH_WRITE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Write.Workers = n
		}
	}
	if v := os.Getenv("FLEXSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// defaultDataRoot returns ~/.flexsearch/data, or a temp fallback when the
// home directory is unavailable.
func defaultDataRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".flexsearch", "data")
	}
	return filepath.Join(home, ".flexsearch", "data")
}
