package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aryankumar/lomsync/internal/executor"
	"github.com/aryankumar/lomsync/internal/storage"
	"github.com/aryankumar/lomsync/internal/util"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), ".lomsync.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestManager_Load(t *testing.T) {
	tests := []struct {
		name           string
		configContent  string
		wantMin        int
		wantMax        int
		wantRejection  executor.RejectionPolicy
		wantTimeout    time.Duration
		wantMode       string
		wantDriver     string
		wantCapacity   int
		wantDeleteWait time.Duration
	}{
		{
			name: "full config",
			configContent: `
pool:
  minWorkers: 2
  maxWorkers: 8
  idleTimeout: 30s
  queueCapacity: 50
  rejection: abort
import:
  mode: barrier
  perItemTimeout: 10s
  barrierDeadline: 2m
  parallelism: 3
cache:
  capacity: 256
  deleteWait: 1s
storage:
  driver: sqlite
  path: /tmp/lomsync.db
defaults:
  outputFormat: json
`,
			wantMin:        2,
			wantMax:        8,
			wantRejection:  executor.RejectAbort,
			wantTimeout:    10 * time.Second,
			wantMode:       "barrier",
			wantDriver:     storage.DriverSQLite,
			wantCapacity:   256,
			wantDeleteWait: time.Second,
		},
		{
			name: "partial config keeps defaults",
			configContent: `
pool:
  maxWorkers: 20
`,
			wantMin:        4,
			wantMax:        20,
			wantRejection:  executor.RejectCallerRuns,
			wantTimeout:    30 * time.Second,
			wantMode:       "ordered",
			wantDriver:     storage.DriverMemory,
			wantCapacity:   1024,
			wantDeleteWait: 5 * time.Second,
		},
		{
			name:           "empty file",
			configContent:  "",
			wantMin:        4,
			wantMax:        10,
			wantRejection:  executor.RejectCallerRuns,
			wantTimeout:    30 * time.Second,
			wantMode:       "ordered",
			wantDriver:     storage.DriverMemory,
			wantCapacity:   1024,
			wantDeleteWait: 5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewManager(writeConfig(t, tt.configContent))
			cfg, err := manager.Load()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if cfg.Pool.MinWorkers != tt.wantMin {
				t.Errorf("got minWorkers %d, want %d", cfg.Pool.MinWorkers, tt.wantMin)
			}
			if cfg.Pool.MaxWorkers != tt.wantMax {
				t.Errorf("got maxWorkers %d, want %d", cfg.Pool.MaxWorkers, tt.wantMax)
			}
			if cfg.Pool.Rejection != tt.wantRejection {
				t.Errorf("got rejection %q, want %q", cfg.Pool.Rejection, tt.wantRejection)
			}
			if cfg.Import.PerItemTimeout != tt.wantTimeout {
				t.Errorf("got perItemTimeout %v, want %v", cfg.Import.PerItemTimeout, tt.wantTimeout)
			}
			if cfg.Import.Mode != tt.wantMode {
				t.Errorf("got mode %q, want %q", cfg.Import.Mode, tt.wantMode)
			}
			if cfg.Storage.Driver != tt.wantDriver {
				t.Errorf("got driver %q, want %q", cfg.Storage.Driver, tt.wantDriver)
			}
			if cfg.Cache.Capacity != tt.wantCapacity {
				t.Errorf("got capacity %d, want %d", cfg.Cache.Capacity, tt.wantCapacity)
			}
			if cfg.Cache.DeleteWait != tt.wantDeleteWait {
				t.Errorf("got deleteWait %v, want %v", cfg.Cache.DeleteWait, tt.wantDeleteWait)
			}
			if manager.GetConfig() != cfg {
				t.Error("GetConfig should return the loaded config")
			}
		})
	}
}

func TestManager_LoadMissingFile(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := manager.Load()
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.Pool.MaxWorkers != 10 {
		t.Errorf("got maxWorkers %d, want default 10", cfg.Pool.MaxWorkers)
	}
	if cfg.Shutdown.GracePeriod != 60*time.Second {
		t.Errorf("got grace %v, want 60s", cfg.Shutdown.GracePeriod)
	}
}

func TestManager_LoadInvalidYAML(t *testing.T) {
	manager := NewManager(writeConfig(t, "pool: [unterminated"))
	if _, err := manager.Load(); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestManager_EnvOverride(t *testing.T) {
	t.Setenv("LOMSYNC_POOL_MAXWORKERS", "16")
	t.Setenv("LOMSYNC_CACHE_DELETEWAIT", "250ms")
	t.Setenv("LOMSYNC_STORAGE_DRIVER", "sqlite")
	t.Setenv("LOMSYNC_STORAGE_PATH", "/var/lib/lomsync.db")

	manager := NewManager(writeConfig(t, "pool:\n  maxWorkers: 6\n"))
	cfg, err := manager.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Pool.MaxWorkers != 16 {
		t.Errorf("env should win over file: got %d, want 16", cfg.Pool.MaxWorkers)
	}
	if cfg.Cache.DeleteWait != 250*time.Millisecond {
		t.Errorf("got deleteWait %v, want 250ms", cfg.Cache.DeleteWait)
	}
	if cfg.Storage.Driver != storage.DriverSQLite || cfg.Storage.Path != "/var/lib/lomsync.db" {
		t.Errorf("got storage %+v", cfg.Storage)
	}
}

func TestManager_SaveRoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	manager := NewManager(configPath)
	if _, err := manager.Load(); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	cfg := manager.GetConfig()
	cfg.Pool.MaxWorkers = 12
	cfg.Import.Mode = "parallel"
	cfg.Cache.DeleteWait = 2 * time.Second
	cfg.Defaults.OutputFormat = "yaml"
	manager.SetConfig(cfg)

	if err := manager.Save(); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	reloaded, err := NewManager(configPath).Load()
	if err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}

	if reloaded.Pool.MaxWorkers != 12 {
		t.Errorf("got maxWorkers %d, want 12", reloaded.Pool.MaxWorkers)
	}
	if reloaded.Import.Mode != "parallel" {
		t.Errorf("got mode %q, want parallel", reloaded.Import.Mode)
	}
	if reloaded.Cache.DeleteWait != 2*time.Second {
		t.Errorf("got deleteWait %v, want 2s", reloaded.Cache.DeleteWait)
	}
	if reloaded.Defaults.OutputFormat != "yaml" {
		t.Errorf("got output %q, want yaml", reloaded.Defaults.OutputFormat)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		wantField string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:      "bad pool",
			mutate:    func(c *Config) { c.Pool.MaxWorkers = 0 },
			wantErr:   true,
			wantField: "maxWorkers",
		},
		{
			name:      "unknown mode",
			mutate:    func(c *Config) { c.Import.Mode = "random" },
			wantErr:   true,
			wantField: "import.mode",
		},
		{
			name:      "zero parallelism",
			mutate:    func(c *Config) { c.Import.Parallelism = 0 },
			wantErr:   true,
			wantField: "import.parallelism",
		},
		{
			name:      "negative delete wait",
			mutate:    func(c *Config) { c.Cache.DeleteWait = -time.Second },
			wantErr:   true,
			wantField: "cache.deleteWait",
		},
		{
			name:      "sqlite without path",
			mutate:    func(c *Config) { c.Storage.Driver = storage.DriverSQLite },
			wantErr:   true,
			wantField: "storage.path",
		},
		{
			name:      "unknown output",
			mutate:    func(c *Config) { c.Defaults.OutputFormat = "xml" },
			wantErr:   true,
			wantField: "defaults.outputFormat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}

			if !errors.Is(err, util.ErrInvalidConfig) {
				t.Errorf("error should wrap ErrInvalidConfig: %v", err)
			}
			var verr *util.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error should contain a ValidationError: %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("got field %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestConfig_ValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Import.Mode = "random"
	cfg.Cache.Capacity = 0

	err := cfg.Validate()
	var multi *util.MultiError
	if !errors.As(err, &multi) {
		t.Fatalf("expected MultiError, got %T", err)
	}
	if len(multi.Errors) != 2 {
		t.Errorf("got %d errors, want 2", len(multi.Errors))
	}
}
