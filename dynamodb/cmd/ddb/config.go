package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const configFilename = "ddb.yaml"

// Config holds the ddb CLI settings, loaded from ddb.yaml if present.
type Config struct {
	// Schema is the schema file path, relative to the config file.
	Schema string `yaml:"schema"`

	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`

	// Endpoint overrides the DynamoDB endpoint, e.g. http://localhost:8000.
	Endpoint string `yaml:"endpoint"`

	Retry RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseDelay   time.Duration `yaml:"baseDelay"`
}

// LoadConfig searches for ddb.yaml starting from the current directory
// and walking up to the filesystem root. Returns empty config if not found.
func LoadConfig() (Config, error) {
	var cfg Config

	configPath := findConfigFile()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", configPath, err)
	}
	if cfg.Schema != "" && !filepath.IsAbs(cfg.Schema) {
		cfg.Schema = filepath.Join(filepath.Dir(configPath), cfg.Schema)
	}
	return cfg, nil
}

// findConfigFile searches for ddb.yaml walking up from current directory.
func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, configFilename)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}
