package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Remote   RemoteConfig   `yaml:"remote"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Sync     SyncConfig     `yaml:"sync"`
	Log      LogConfig      `yaml:"log"`
}

// RemoteConfig contains hosted backend settings.
type RemoteConfig struct {
	Endpoint   string   `yaml:"endpoint"`
	ProjectID  string   `yaml:"project_id"`
	DatabaseID string   `yaml:"database_id"`
	Timeout    Duration `yaml:"timeout"`
}

// DatabaseConfig contains local store settings. Backend selects the
// key-value engine: "sqlite" or "bolt".
type DatabaseConfig struct {
	Path    string `yaml:"path"`
	Backend string `yaml:"backend"`
}

// StorageConfig contains media object storage settings. An empty bucket
// disables uploads.
type StorageConfig struct {
	Bucket    string   `yaml:"bucket"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	AccessKey string   `yaml:"-"` // env-only, never in YAML
	SecretKey string   `yaml:"-"` // env-only, never in YAML
	UseSSL    *bool    `yaml:"use_ssl"`
	URLExpiry Duration `yaml:"url_expiry"`
}

// SyncConfig contains sync engine settings.
type SyncConfig struct {
	ProbeInterval      Duration `yaml:"probe_interval"`
	ConflictRetryDelay Duration `yaml:"conflict_retry_delay"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("STITCHBOOK_CONFIG_PATH", "config/stitchbook.yaml")

	// Missing file is not an error; defaults and env vars still apply.
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Remote: RemoteConfig{
			Endpoint:   "https://cloud.appwrite.io/v1",
			DatabaseID: "default",
			Timeout:    Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path:    "data/stitchbook.db",
			Backend: "sqlite",
		},
		Storage: StorageConfig{
			Region:    "us-east-1",
			URLExpiry: Duration(7 * 24 * time.Hour),
		},
		Sync: SyncConfig{
			ProbeInterval:      Duration(30 * time.Second),
			ConflictRetryDelay: Duration(500 * time.Millisecond),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Remote
	if v := os.Getenv("STITCHBOOK_ENDPOINT"); v != "" {
		cfg.Remote.Endpoint = v
	}
	if v := os.Getenv("STITCHBOOK_PROJECT_ID"); v != "" {
		cfg.Remote.ProjectID = v
	}
	if v := os.Getenv("STITCHBOOK_DATABASE_ID"); v != "" {
		cfg.Remote.DatabaseID = v
	}
	if v := os.Getenv("STITCHBOOK_REMOTE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Remote.Timeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("STITCHBOOK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("STITCHBOOK_DB_BACKEND"); v != "" {
		cfg.Database.Backend = v
	}

	// Storage
	if v := os.Getenv("STITCHBOOK_STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("STITCHBOOK_STORAGE_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("STITCHBOOK_STORAGE_REGION"); v != "" {
		cfg.Storage.Region = v
	}
	if v := os.Getenv("STITCHBOOK_STORAGE_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("STITCHBOOK_STORAGE_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("STITCHBOOK_STORAGE_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Storage.UseSSL = &useSSL
	}
	if v := os.Getenv("STITCHBOOK_STORAGE_URL_EXPIRY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Storage.URLExpiry = Duration(d)
		}
	}

	// Sync
	if v := os.Getenv("STITCHBOOK_PROBE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.ProbeInterval = Duration(d)
		}
	}
	if v := os.Getenv("STITCHBOOK_CONFLICT_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.ConflictRetryDelay = Duration(d)
		}
	}

	// Log
	if v := os.Getenv("STITCHBOOK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STITCHBOOK_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
// In dev mode (STITCHBOOK_DEV_MODE=true), project validation is skipped.
func (c *Config) validate() error {
	if os.Getenv("STITCHBOOK_DEV_MODE") == "true" {
		return nil
	}

	if c.Remote.ProjectID == "" {
		return errors.New("STITCHBOOK_PROJECT_ID is required")
	}
	switch c.Database.Backend {
	case "sqlite", "bolt":
	default:
		return fmt.Errorf("unknown database backend %q", c.Database.Backend)
	}
	if c.Storage.Bucket != "" {
		if c.Storage.Endpoint == "" {
			return errors.New("storage endpoint is required when a bucket is set")
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return errors.New("STITCHBOOK_STORAGE_ACCESS_KEY and STITCHBOOK_STORAGE_SECRET_KEY are required when a bucket is set")
		}
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
