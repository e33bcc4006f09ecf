package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/aryankumar/lomsync/internal/executor"
	"github.com/aryankumar/lomsync/internal/ingest"
	"github.com/aryankumar/lomsync/internal/storage"
	"github.com/aryankumar/lomsync/internal/util"
)

const (
	defaultConfigName = ".lomsync"
	defaultConfigDir  = ".lomsync"
	envPrefix         = "LOMSYNC"
)

// Manager handles lomsync configuration
type Manager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
}

// NewManager creates a new configuration manager. An empty configPath searches
// ~/.lomsync/config.yaml and ~/.lomsync.yaml.
func NewManager(configPath string) *Manager {
	m := &Manager{
		configPath: configPath,
		viper:      viper.New(),
		config:     Default(),
	}
	m.registerDefaults()
	return m
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Pool: executor.DefaultConfig(),
		Import: ImportConfig{
			Mode:            string(ingest.ModeOrdered),
			PerItemTimeout:  30 * time.Second,
			BarrierDeadline: 60 * time.Second,
			Parallelism:     runtime.NumCPU(),
		},
		Cache: CacheConfig{
			Capacity:   1024,
			DeleteWait: 5 * time.Second,
		},
		Storage: storage.Config{
			Driver: storage.DriverMemory,
		},
		Shutdown: ShutdownConfig{
			GracePeriod: 60 * time.Second,
		},
		Defaults: DefaultsConfig{
			OutputFormat: "table",
		},
	}
}

// registerDefaults declares every key so LOMSYNC_* variables can override keys
// that are absent from the file
func (m *Manager) registerDefaults() {
	d := Default()
	defaults := map[string]interface{}{
		"pool.minWorkers":        d.Pool.MinWorkers,
		"pool.maxWorkers":        d.Pool.MaxWorkers,
		"pool.idleTimeout":       d.Pool.IdleTimeout,
		"pool.queueCapacity":     d.Pool.QueueCapacity,
		"pool.rejection":         string(d.Pool.Rejection),
		"import.mode":            d.Import.Mode,
		"import.perItemTimeout":  d.Import.PerItemTimeout,
		"import.barrierDeadline": d.Import.BarrierDeadline,
		"import.parallelism":     d.Import.Parallelism,
		"cache.capacity":         d.Cache.Capacity,
		"cache.deleteWait":       d.Cache.DeleteWait,
		"storage.driver":         d.Storage.Driver,
		"storage.path":           "",
		"storage.dsn":            "",
		"shutdown.gracePeriod":   d.Shutdown.GracePeriod,
		"metrics.addr":           "",
		"defaults.outputFormat":  d.Defaults.OutputFormat,
		"defaults.noColor":       false,
	}
	for key, value := range defaults {
		m.viper.SetDefault(key, value)
	}
}

// Viper exposes the underlying viper instance so callers can bind flags
// before Load
func (m *Manager) Viper() *viper.Viper {
	return m.viper
}

// Load loads the configuration from file, environment and bound flags
func (m *Manager) Load() (*Config, error) {
	// Set up config file path
	if m.configPath != "" {
		m.viper.SetConfigFile(m.configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		// Check ~/.lomsync/config.yaml
		m.viper.AddConfigPath(filepath.Join(home, defaultConfigDir))
		// Check ~/.lomsync.yaml
		m.viper.AddConfigPath(home)
		m.viper.SetConfigName(defaultConfigName)
		m.viper.SetConfigType("yaml")
	}

	// Set environment variable support
	m.viper.SetEnvPrefix(envPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	if err := m.viper.ReadInConfig(); err != nil {
		// A missing file is fine, defaults and environment still apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := m.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	m.config = cfg

	m.applyDefaults()

	return m.config, nil
}

// Save writes the current configuration to the config path, creating
// ~/.lomsync/config.yaml when none was given
func (m *Manager) Save() error {
	if m.configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		m.configPath = filepath.Join(home, defaultConfigDir, "config.yaml")
	}

	// Ensure directory exists
	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Path returns the config file in use, empty if none was found or given
func (m *Manager) Path() string {
	if m.configPath != "" {
		return m.configPath
	}
	return m.viper.ConfigFileUsed()
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// SetConfig replaces the configuration that Save writes
func (m *Manager) SetConfig(cfg *Config) {
	m.config = cfg
	m.applyDefaults()
}

// applyDefaults fills zero values left by an explicit empty setting
func (m *Manager) applyDefaults() {
	if m.config == nil {
		m.config = Default()
		return
	}
	d := Default()

	if m.config.Pool.MaxWorkers == 0 {
		m.config.Pool.MaxWorkers = d.Pool.MaxWorkers
	}
	if m.config.Pool.Rejection == "" {
		m.config.Pool.Rejection = d.Pool.Rejection
	}
	if m.config.Import.Mode == "" {
		m.config.Import.Mode = d.Import.Mode
	}
	if m.config.Import.Parallelism == 0 {
		m.config.Import.Parallelism = d.Import.Parallelism
	}
	if m.config.Cache.Capacity == 0 {
		m.config.Cache.Capacity = d.Cache.Capacity
	}
	if m.config.Storage.Driver == "" {
		m.config.Storage.Driver = d.Storage.Driver
	}
	if m.config.Defaults.OutputFormat == "" {
		m.config.Defaults.OutputFormat = d.Defaults.OutputFormat
	}
}

// Validate checks every section and returns all problems found
func (c *Config) Validate() error {
	var errs util.MultiError

	if err := c.Pool.Validate(); err != nil {
		errs.Add(fmt.Errorf("pool: %w", err))
	}
	if err := c.Storage.Validate(); err != nil {
		errs.Add(err)
	}

	switch ingest.Mode(c.Import.Mode) {
	case ingest.ModeOrdered, ingest.ModeBarrier, ingest.ModeParallel:
	default:
		errs.Add(util.NewValidationError("import.mode", c.Import.Mode, "must be one of ordered, barrier, parallel"))
	}
	if c.Import.PerItemTimeout < 0 {
		errs.Add(util.NewValidationError("import.perItemTimeout", c.Import.PerItemTimeout, "must not be negative"))
	}
	if c.Import.BarrierDeadline < 0 {
		errs.Add(util.NewValidationError("import.barrierDeadline", c.Import.BarrierDeadline, "must not be negative"))
	}
	if c.Import.Parallelism < 1 {
		errs.Add(util.NewValidationError("import.parallelism", c.Import.Parallelism, "must be at least 1"))
	}
	if c.Cache.Capacity < 1 {
		errs.Add(util.NewValidationError("cache.capacity", c.Cache.Capacity, "must be at least 1"))
	}
	if c.Cache.DeleteWait < 0 {
		errs.Add(util.NewValidationError("cache.deleteWait", c.Cache.DeleteWait, "must not be negative"))
	}
	if c.Shutdown.GracePeriod < 0 {
		errs.Add(util.NewValidationError("shutdown.gracePeriod", c.Shutdown.GracePeriod, "must not be negative"))
	}

	switch c.Defaults.OutputFormat {
	case "table", "json", "yaml":
	default:
		errs.Add(util.NewValidationError("defaults.outputFormat", c.Defaults.OutputFormat, "must be one of table, json, yaml"))
	}

	return errs.ErrorOrNil()
}
