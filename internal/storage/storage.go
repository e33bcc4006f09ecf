// Package storage implements catalog.Repository over an in-process map,
// SQLite (modernc.org/sqlite) and Postgres (pgx through database/sql).
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/util"
)

// Driver names accepted by Open
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and locates the backing store
type Config struct {
	// Driver is one of memory, sqlite, postgres
	Driver string `yaml:"driver" json:"driver"`

	// Path is the SQLite database file
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// DSN is the Postgres connection string
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// Validate checks that the driver is known and has what it needs
func (c Config) Validate() error {
	switch c.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Path == "" {
			return util.NewValidationError("storage.path", c.Path, "is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DSN == "" {
			return util.NewValidationError("storage.dsn", c.DSN, "is required for the postgres driver")
		}
	default:
		return util.NewValidationError("storage.driver", c.Driver, "must be one of memory, sqlite, postgres")
	}
	return nil
}

// Store is a repository that supports transactional batch updates and owns
// resources to release
type Store interface {
	catalog.Repository
	catalog.BatchUpdater
	Close() error
}

// Open builds the store selected by cfg
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case DriverSQLite:
		return OpenSQLite(ctx, cfg.Path, logger)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN, logger)
	default:
		logger.Debug("using in-memory storage")
		return NewMemory(), nil
	}
}

func notFound(op string, id int64) error {
	return util.WrapRepositoryError(op, catalog.FormatKey(id), fmt.Errorf("id %d: %w", id, util.ErrResourceNotFound))
}
