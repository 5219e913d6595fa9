// Package config handles configuration loading and management for stagehand.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for stagehand.
type Config struct {
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Review   ReviewConfig   `mapstructure:"review"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

// DefaultsConfig holds default values for workflow runs.
type DefaultsConfig struct {
	// MaxParallel bounds in-group concurrency for workflows that don't set
	// their own limit.
	MaxParallel int `mapstructure:"max_parallel"`
}

// ReviewConfig holds review-gate settings.
type ReviewConfig struct {
	// ConfidenceThreshold is the minimum confidence that passes without review.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	// Timeout bounds how long an unresolved review may block a task.
	Timeout time.Duration `mapstructure:"timeout"`
}

// RetryConfig holds retry-manager settings.
type RetryConfig struct {
	// Delay is the fixed wait between execution attempts.
	Delay time.Duration `mapstructure:"delay"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	// Definitions is the directory of YAML workflow definitions.
	Definitions string `mapstructure:"definitions"`
	// Database overrides the run-archive database path.
	Database string `mapstructure:"database"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (STAGEHAND_*)
// 2. Project config (.stagehand.yaml in current directory or parent)
// 3. User config (~/.config/stagehand/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path.
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present.
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence).
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides.
	v.SetEnvPrefix("STAGEHAND")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("defaults.max_parallel", 4)

	v.SetDefault("review.confidence_threshold", 0.7)
	v.SetDefault("review.timeout", "30m")

	v.SetDefault("retry.delay", "2s")

	v.SetDefault("paths.definitions", "workflows")
	v.SetDefault("paths.database", "")
}

// getUserConfigDir returns the XDG config directory for stagehand.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "stagehand")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "stagehand")
	}
	return filepath.Join(home, ".config", "stagehand")
}

// findProjectConfig searches for .stagehand.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		candidate := filepath.Join(dir, ".stagehand.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
