// Package config loads flightcore settings from built-in defaults, an
// optional YAML or JSON file and FLIGHTCORE_ environment overrides, in that
// order of precedence.
package config

import (
	"flightcore/internal/blob"
	"flightcore/internal/core"
	"flightcore/internal/logging"
	"flightcore/internal/metrics"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys use "__", so
// FLIGHTCORE_STORAGE__DRIVER sets storage.driver.
const EnvPrefix = "FLIGHTCORE_"

// Config is the full flightcore configuration.
type Config struct {
	Storage  StorageConfig  `json:"storage"`
	Blob     blob.Config    `json:"blob"`
	FlatFile FlatFileConfig `json:"flatfile"`
	Schedule ScheduleConfig `json:"schedule"`
	Logging  logging.Config `json:"logging"`
	Metrics  metrics.Config `json:"metrics"`
}

// StorageConfig selects the state backend.
type StorageConfig struct {
	Driver      string `json:"driver"`
	SQLitePath  string `json:"sqlite_path"`
	PostgresDSN string `json:"postgres_dsn"`
}

// SetDefaults applies sane defaults.
func (c *StorageConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = string(core.StorageSQLite)
	}
	if c.Driver == string(core.StorageSQLite) && c.SQLitePath == "" {
		c.SQLitePath = "flightcore.db"
	}
}

// Validate checks the driver and its connection settings.
func (c StorageConfig) Validate() error {
	switch core.StorageDriver(c.Driver) {
	case core.StorageMemory:
	case core.StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required")
		}
	case core.StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Driver)
	}
	return nil
}

// Options converts the section for core.OpenStorage.
func (c StorageConfig) Options() core.StorageOptions {
	return core.StorageOptions{
		Driver:      core.StorageDriver(c.Driver),
		SQLitePath:  c.SQLitePath,
		PostgresDSN: c.PostgresDSN,
	}
}

// FlatFileConfig controls the plain-text data files kept in the blob store.
type FlatFileConfig struct {
	// AutoLoad imports the files into an empty store on startup.
	AutoLoad bool `json:"auto_load"`
	// AutoSave rewrites the files after every mutating command.
	AutoSave bool `json:"auto_save"`
}

// ScheduleConfig tunes scheduling defaults.
type ScheduleConfig struct {
	ManualDelay         time.Duration `json:"manual_delay"`
	DefaultBlockTime    time.Duration `json:"default_block_time"`
	DefaultOrigin       string        `json:"default_origin"`
	AllowPastDepartures bool          `json:"allow_past_departures"`
}

// SetDefaults fills unset values from core.DefaultScheduleSettings.
func (c *ScheduleConfig) SetDefaults() {
	def := core.DefaultScheduleSettings()
	if c.ManualDelay == 0 {
		c.ManualDelay = def.ManualDelay
	}
	if c.DefaultBlockTime == 0 {
		c.DefaultBlockTime = def.DefaultBlockTime
	}
	if c.DefaultOrigin == "" {
		c.DefaultOrigin = def.DefaultOrigin
	}
}

// Validate rejects negative durations.
func (c ScheduleConfig) Validate() error {
	if c.ManualDelay < 0 || c.DefaultBlockTime < 0 {
		return fmt.Errorf("schedule durations must not be negative")
	}
	return nil
}

// Settings converts the section for core.WithScheduleSettings.
func (c ScheduleConfig) Settings() core.ScheduleSettings {
	return core.ScheduleSettings{
		ManualDelay:         c.ManualDelay,
		DefaultBlockTime:    c.DefaultBlockTime,
		DefaultOrigin:       strings.ToUpper(c.DefaultOrigin),
		AllowPastDepartures: c.AllowPastDepartures,
	}
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	cfg := base()
	cfg.SetDefaults()
	return cfg
}

// base holds the defaults SetDefaults cannot infer from zero values.
func base() Config {
	return Config{FlatFile: FlatFileConfig{AutoLoad: true, AutoSave: true}}
}

// SetDefaults applies every section's defaults.
func (c *Config) SetDefaults() {
	c.Storage.SetDefaults()
	if c.Blob.Driver == "" {
		c.Blob.Driver = blob.DriverFilesystem
	}
	if c.Blob.Driver == blob.DriverFilesystem && c.Blob.FSRoot == "" {
		c.Blob.FSRoot = "data"
	}
	c.Schedule.SetDefaults()
	c.Logging.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	switch c.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob.s3.bucket is required")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// Load reads path (skipped when empty) over the defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := base()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
