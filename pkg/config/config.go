// Package config loads sqlseed settings from a YAML file, an optional .env
// file and SQLSEED_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wemcdonald/sqlseed/pkg/loader"
	"github.com/wemcdonald/sqlseed/pkg/workflow"
)

// Environment variables overriding file settings
const (
	EnvDatabase     = "SQLSEED_DATABASE"
	EnvScript       = "SQLSEED_SCRIPT"
	EnvMaxBatchSize = "SQLSEED_MAX_BATCH_SIZE"
	EnvWorkers      = "SQLSEED_WORKERS"
)

// DefaultEnvFile is the .env file read by Load
const DefaultEnvFile = ".env"

// Breaker configures the circuit breaker around repeated loads
type Breaker struct {
	Threshold int           `yaml:"threshold"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// Config represents the entire configuration
type Config struct {
	Database     string          `yaml:"database"`
	Script       string          `yaml:"script"`
	MaxBatchSize int             `yaml:"max_batch_size"`
	Workers      int             `yaml:"workers"`
	DryRun       bool            `yaml:"dry_run"`
	Verbose      bool            `yaml:"verbose"`
	Groups       workflow.Groups `yaml:"groups"`
	Breaker      Breaker         `yaml:"breaker"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Database:     "sqlseed.db",
		MaxBatchSize: loader.DefaultMaxBatchSize,
		Workers:      workflow.DefaultWorkers,
		Breaker: Breaker{
			Threshold: 5,
			Cooldown:  30 * time.Second,
		},
	}
}

// Load reads the YAML file at path, if any, then DefaultEnvFile and the
// process environment
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, DefaultEnvFile)
}

// LoadWithEnv is Load with an explicit .env file. Missing files are
// skipped; an empty path means no YAML file.
func LoadWithEnv(path, envFile string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = values
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := config.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDatabase); ok {
		c.Database = v
	}
	if v, ok := lookup(EnvScript); ok {
		c.Script = v
	}
	if v, ok := lookup(EnvMaxBatchSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxBatchSize, err)
		}
		c.MaxBatchSize = n
	}
	if v, ok := lookup(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Database == "" {
		return errors.New("database is required")
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive, got %d", c.MaxBatchSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Breaker.Threshold <= 0 {
		return fmt.Errorf("breaker threshold must be positive, got %d", c.Breaker.Threshold)
	}
	if c.Breaker.Cooldown < 0 {
		return fmt.Errorf("breaker cooldown must not be negative, got %s", c.Breaker.Cooldown)
	}
	return nil
}
