package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/util"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return DriverPostgres
	}
	return DriverSQLite
}

// Timestamps are stored as Unix nanoseconds so both dialects round-trip them exactly
const (
	sqliteSchema = `CREATE TABLE IF NOT EXISTS resources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		locator TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`

	postgresSchema = `CREATE TABLE IF NOT EXISTS resources (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		locator TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		version BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`

	selectColumns = `id, title, locator, description, language, version, created_at, updated_at`
)

// SQLStore implements the repository over database/sql for SQLite and Postgres
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
	now     func() time.Time
}

var _ Store = (*SQLStore)(nil)

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, logger *slog.Logger) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d, logger: logger, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	ddl := sqliteSchema
	if s.dialect == dialectPostgres {
		ddl = postgresSchema
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create resources table: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders into $n for Postgres
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// DB exposes the underlying handle for tests
func (s *SQLStore) DB() *sql.DB { return s.db }

// Create inserts a new resource and returns it with its generated ID
func (s *SQLStore) Create(ctx context.Context, item catalog.Item) (*catalog.Resource, error) {
	if err := item.Validate(); err != nil {
		return nil, util.WrapRepositoryError("create", item.Label(), err)
	}

	r := catalog.NewResource(item, s.now().UTC())
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO resources (title, locator, description, language, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		r.Title, r.Locator, r.Description, r.Language, r.Version,
		r.CreatedAt.UnixNano(), r.UpdatedAt.UnixNano(),
	).Scan(&r.ID)
	if err != nil {
		return nil, util.WrapRepositoryError("create", item.Label(), err)
	}

	s.logger.Debug("resource created", "driver", s.dialect.String(), "id", r.ID)
	return &r, nil
}

// Find loads one resource
func (s *SQLStore) Find(ctx context.Context, id int64) (*catalog.Resource, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+selectColumns+` FROM resources WHERE id = ?`), id)
	r, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("find", id)
	}
	if err != nil {
		return nil, util.WrapRepositoryError("find", catalog.FormatKey(id), err)
	}
	return &r, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) update(ctx context.Context, ex execer, op string, r catalog.Resource) error {
	res, err := ex.ExecContext(ctx, s.rebind(
		`UPDATE resources SET title = ?, locator = ?, description = ?, language = ?,
		version = version + 1, updated_at = ? WHERE id = ?`),
		strings.TrimSpace(r.Title), strings.TrimSpace(r.Locator), r.Description, r.Language,
		s.now().UTC().UnixNano(), r.ID,
	)
	if err != nil {
		return util.WrapRepositoryError(op, r.Key(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return util.WrapRepositoryError(op, r.Key(), err)
	}
	if n == 0 {
		return notFound(op, r.ID)
	}
	return nil
}

// Update replaces the mutable fields and bumps the version
func (s *SQLStore) Update(ctx context.Context, r catalog.Resource) error {
	return s.update(ctx, s.db, "update", r)
}

// UpdateBatch applies every update in one transaction
func (s *SQLStore) UpdateBatch(ctx context.Context, resources []catalog.Resource) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return util.WrapRepositoryError("update batch", "", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, r := range resources {
		if err := s.update(ctx, tx, "update batch", r); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return util.WrapRepositoryError("update batch", "", err)
	}

	s.logger.Debug("batch update committed", "driver", s.dialect.String(), "count", len(resources))
	return nil
}

// Delete removes one resource
func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM resources WHERE id = ?`), id)
	if err != nil {
		return util.WrapRepositoryError("delete", catalog.FormatKey(id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return util.WrapRepositoryError("delete", catalog.FormatKey(id), err)
	}
	if n == 0 {
		return notFound("delete", id)
	}
	return nil
}

// List returns every resource ordered by ID
func (s *SQLStore) List(ctx context.Context) ([]catalog.Resource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM resources ORDER BY id`)
	if err != nil {
		return nil, util.WrapRepositoryError("list", "", err)
	}
	defer func() { _ = rows.Close() }()

	var out []catalog.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, util.WrapRepositoryError("list", "", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, util.WrapRepositoryError("list", "", err)
	}
	return out, nil
}

// Close releases the database handle
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResource(sc scanner) (catalog.Resource, error) {
	var (
		r                catalog.Resource
		created, updated int64
	)
	if err := sc.Scan(&r.ID, &r.Title, &r.Locator, &r.Description, &r.Language, &r.Version, &created, &updated); err != nil {
		return catalog.Resource{}, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	r.UpdatedAt = time.Unix(0, updated).UTC()
	return r, nil
}
