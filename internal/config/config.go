// Package config loads the observer CLI configuration from YAML.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/observer/internal/logging"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "OBSERVER_CONFIG"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Config is the root of the configuration file.
type Config struct {
	LogLevel       string  `yaml:"log_level"`
	DefaultWatcher string  `yaml:"default_watcher"`
	Store          Store   `yaml:"store"`
	Metrics        Metrics `yaml:"metrics"`
}

// Store selects and configures the persistence backend.
type Store struct {
	Driver   string `yaml:"driver"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Path     string `yaml:"path"`
	Prefix   string `yaml:"prefix"`

	// EncryptionKey is a base64 AES-256 key. When set, rows are stored encrypted.
	EncryptionKey string `yaml:"encryption_key"`
}

// Key decodes EncryptionKey. It returns nil when encryption is disabled.
func (s Store) Key() ([]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("store.encryption_key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("store.encryption_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Metrics configures the HTTP endpoint of the serve command.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel:       "info",
		DefaultWatcher: "complex",
		Store: Store{
			Driver: DriverMemory,
			Addr:   "localhost:6379",
			Path:   "observer.db",
			Prefix: "observer:",
		},
		Metrics: Metrics{
			Addr: ":2112",
		},
	}
}

// Load reads path over the defaults. An empty path falls back to
// OBSERVER_CONFIG; if that is empty too, the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem of the configuration at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, err)
	}
	switch c.DefaultWatcher {
	case "complex", "auto":
	default:
		result = multierror.Append(result, fmt.Errorf("default_watcher must be complex or auto, got %q", c.DefaultWatcher))
	}

	switch strings.ToLower(c.Store.Driver) {
	case DriverMemory:
	case DriverRedis:
		if c.Store.Addr == "" {
			result = multierror.Append(result, errors.New("store.addr is required for the redis driver"))
		}
		if c.Store.DB < 0 {
			result = multierror.Append(result, fmt.Errorf("store.db must not be negative, got %d", c.Store.DB))
		}
	case DriverSQLite:
		if c.Store.Path == "" {
			result = multierror.Append(result, errors.New("store.path is required for the sqlite driver"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	if _, err := c.Store.Key(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}
