package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/aryankumar/lomsync/internal/util"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "memory", cfg: Config{Driver: DriverMemory}},
		{name: "sqlite with path", cfg: Config{Driver: DriverSQLite, Path: "/tmp/x.db"}},
		{name: "sqlite without path", cfg: Config{Driver: DriverSQLite}, wantErr: true},
		{name: "postgres with dsn", cfg: Config{Driver: DriverPostgres, DSN: "postgres://localhost/x"}},
		{name: "postgres without dsn", cfg: Config{Driver: DriverPostgres}, wantErr: true},
		{name: "unknown driver", cfg: Config{Driver: "mongo"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, util.ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, Config{Driver: DriverMemory}, nil)
	if err != nil {
		t.Fatalf("Open memory failed: %v", err)
	}
	if _, ok := mem.(*Memory); !ok {
		t.Errorf("expected *Memory, got %T", mem)
	}

	lite, err := Open(ctx, Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "db.sqlite")}, testLogger())
	if err != nil {
		t.Fatalf("Open sqlite failed: %v", err)
	}
	defer lite.Close()
	if _, ok := lite.(*SQLStore); !ok {
		t.Errorf("expected *SQLStore, got %T", lite)
	}

	if _, err := Open(ctx, Config{Driver: "mongo"}, nil); err == nil {
		t.Error("expected error for unknown driver")
	}
}
