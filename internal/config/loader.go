package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, applies environment
// variable overrides, fills defaults, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: environment overrides: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills defaults, and validates
// the result. Environment overrides are not applied, which keeps tests that
// build configs from string literals hermetic.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields with the package defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.TTS.Language == "" {
		cfg.TTS.Language = DefaultTTSLanguage
	}
	if cfg.Cache.MemoryCapacity == 0 {
		cfg.Cache.MemoryCapacity = DefaultMemoryCapacity
	}
	if cfg.Cache.BlobTimeout == 0 {
		cfg.Cache.BlobTimeout = Duration(DefaultBlobTimeout)
	}
	if cfg.Sweeper.Interval == 0 {
		cfg.Sweeper.Interval = Duration(DefaultSweepInterval)
	}
	if cfg.Sweeper.Retention == 0 {
		cfg.Sweeper.Retention = Duration(DefaultRetention)
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required (or set DATABASE_URL)"))
	}

	if cfg.Blob.BaseURL == "" {
		errs = append(errs, errors.New("blob.base_url is required"))
	}
	if cfg.Blob.Bucket == "" {
		errs = append(errs, errors.New("blob.bucket is required"))
	}
	if cfg.Blob.BaseURL != "" && cfg.Blob.ServiceKey == "" {
		slog.Warn("blob.service_key is empty; object-store requests will be unauthenticated")
	}

	if cfg.Strokes.BaseURL == "" {
		errs = append(errs, errors.New("strokes.base_url is required"))
	}

	if cfg.Cache.MemoryCapacity < 0 {
		errs = append(errs, fmt.Errorf("cache.memory_capacity %d must not be negative", cfg.Cache.MemoryCapacity))
	}
	if cfg.Cache.BlobTimeout < 0 {
		errs = append(errs, fmt.Errorf("cache.blob_timeout %s must not be negative", cfg.Cache.BlobTimeout.Std()))
	}

	if cfg.Sweeper.Enabled {
		if cfg.Sweeper.Interval <= 0 {
			errs = append(errs, fmt.Errorf("sweeper.interval %s must be positive", cfg.Sweeper.Interval.Std()))
		}
		if cfg.Sweeper.Retention <= 0 {
			errs = append(errs, fmt.Errorf("sweeper.retention %s must be positive", cfg.Sweeper.Retention.Std()))
		}
	}

	return errors.Join(errs...)
}
