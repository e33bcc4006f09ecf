package config

import (
	"time"

	"github.com/aryankumar/lomsync/internal/executor"
	"github.com/aryankumar/lomsync/internal/storage"
)

// Config represents the lomsync configuration file structure
type Config struct {
	// Pool sizes the shared worker pool
	Pool executor.Config `yaml:"pool" json:"pool"`

	// Import holds batch import settings
	Import ImportConfig `yaml:"import" json:"import"`

	// Cache holds resource cache settings
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Storage selects the backing repository
	Storage storage.Config `yaml:"storage" json:"storage"`

	// Shutdown controls how long in-flight work may drain
	Shutdown ShutdownConfig `yaml:"shutdown" json:"shutdown"`

	// Metrics exposes the counters over HTTP when Addr is set
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`

	// Defaults contains default settings for the CLI
	Defaults DefaultsConfig `yaml:"defaults" json:"defaults"`
}

// ImportConfig controls how batches are imported
type ImportConfig struct {
	// Mode is one of ordered, barrier, parallel
	Mode string `yaml:"mode" json:"mode"`

	// PerItemTimeout bounds each item wait in ordered mode; 0 waits without a bound
	PerItemTimeout time.Duration `yaml:"perItemTimeout" json:"perItemTimeout"`

	// BarrierDeadline bounds the whole batch in barrier mode; 0 waits without a bound
	BarrierDeadline time.Duration `yaml:"barrierDeadline" json:"barrierDeadline"`

	// Parallelism caps concurrent creations in parallel mode
	Parallelism int `yaml:"parallelism" json:"parallelism"`
}

// CacheConfig controls the resource cache
type CacheConfig struct {
	// Capacity is the maximum number of cached resources
	Capacity int `yaml:"capacity" json:"capacity"`

	// DeleteWait bounds how long a delete waits for the delete lock
	DeleteWait time.Duration `yaml:"deleteWait" json:"deleteWait"`
}

// ShutdownConfig controls graceful termination
type ShutdownConfig struct {
	// GracePeriod is how long queued and running tasks may finish
	GracePeriod time.Duration `yaml:"gracePeriod" json:"gracePeriod"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address, e.g. ":9090"; empty disables the endpoint
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`
}

// DefaultsConfig contains default configuration values
type DefaultsConfig struct {
	// OutputFormat is the default output format (table, json, yaml)
	OutputFormat string `yaml:"outputFormat,omitempty" json:"outputFormat,omitempty"`

	// NoColor disables colored output
	NoColor bool `yaml:"noColor,omitempty" json:"noColor,omitempty"`
}
