package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default client settings
const (
	DefaultServerURL  = "http://localhost:8080"
	DefaultAPITimeout = 30 * time.Second
)

// Config holds client configuration, loaded from an optional YAML file
// and overridden by flags.
type Config struct {
	ServerURL string `yaml:"server_url"`
	UserID    string `yaml:"user_id"`
	StorePath string `yaml:"store_path"`
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".assist-chat", "config.yaml"), nil
}

// DefaultStorePath returns the standard history database location.
func DefaultStorePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".assist-chat", "history.db"), nil
}

// LoadConfig reads configuration from path. A missing file yields
// defaults; a malformed file is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{ServerURL: DefaultServerURL}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	return cfg, nil
}
