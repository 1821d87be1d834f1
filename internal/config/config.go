package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete loader configuration
type Config struct {
	App       AppConfig       `yaml:"app" envconfig:"APP"`
	Endpoints EndpointsConfig `yaml:"endpoints" envconfig:"ENDPOINTS"`
	HTTP      HTTPConfig      `yaml:"http" envconfig:"HTTP"`
	Retry     RetryConfig     `yaml:"retry" envconfig:"RETRY"`
	Cache     CacheConfig     `yaml:"cache" envconfig:"CACHE"`
	Session   SessionConfig   `yaml:"session" envconfig:"SESSION"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	DevMode   bool            `yaml:"dev_mode" envconfig:"DEV_MODE"`
}

// AppConfig identifies this application to the license authority
type AppConfig struct {
	Name    string `yaml:"name" envconfig:"NAME" validate:"required"`
	OwnerID string `yaml:"owner_id" envconfig:"OWNER_ID" validate:"required"`
	Version string `yaml:"version" envconfig:"VERSION" validate:"required"`
}

// EndpointsConfig contains the license authority base URLs
type EndpointsConfig struct {
	Primary   string `yaml:"primary" envconfig:"PRIMARY" validate:"required,url"`
	Alternate string `yaml:"alternate" envconfig:"ALTERNATE" validate:"required,url"`
	File      string `yaml:"file" envconfig:"FILE" validate:"required,url"`
	// Custom replaces both primary and alternate when set (operator override)
	Custom string `yaml:"custom" envconfig:"CUSTOM" validate:"omitempty"`
}

// HTTPConfig contains transport timeouts
type HTTPConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT"`
	ReadTimeout    time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
}

// RetryConfig bounds the request orchestrator retry loop
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" validate:"min=0,max=10"`
	Backoff     time.Duration `yaml:"backoff" envconfig:"BACKOFF"`
	// Whole-initialize retries (distinct from the per-request budget)
	InitAttempts int           `yaml:"init_attempts" envconfig:"INIT_ATTEMPTS" validate:"min=0,max=10"`
	InitPause    time.Duration `yaml:"init_pause" envconfig:"INIT_PAUSE"`
}

// CacheConfig controls the API response cache
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" envconfig:"TTL"`
}

// SessionConfig controls session lifecycle timing
type SessionConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" envconfig:"REFRESH_INTERVAL"`
}

// StorageConfig locates local persisted state
type StorageConfig struct {
	// DataDir overrides the default per-user data directory when set
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// Load loads configuration, layering built-in defaults, an optional YAML
// file, and environment variables (BEARLOADER_* prefix), in that order.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			data, err := os.ReadFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := envconfig.Process("BEARLOADER", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without touching the
// environment or filesystem. Used by tests and embedding callers.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:    "com.bearmod.loader",
			OwnerID: "yLoA9zcOEF",
			Version: "1.0",
		},
		Endpoints: EndpointsConfig{
			Primary:   "https://keyauth.win/api/1.2/",
			Alternate: "https://keyauth.cc/api/1.2/",
			File:      "https://keyauth.win/api/1.3/",
		},
		HTTP: HTTPConfig{
			ConnectTimeout: 10 * time.Second,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			Backoff:      2 * time.Second,
			InitAttempts: 3,
			InitPause:    time.Second,
		},
		Cache:   CacheConfig{TTL: 24 * time.Hour},
		Session: SessionConfig{RefreshInterval: 15 * time.Minute},
		Logging: LoggingConfig{Level: "info", Output: "stdout", FilePath: "logs/loader.log"},
	}
}

// Validate checks the configuration for structural problems
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.HTTP.ConnectTimeout <= 0 || c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if c.Session.RefreshInterval <= 0 {
		return fmt.Errorf("session refresh interval must be positive")
	}
	return nil
}

