// Package sqlite owns the single embedded database connection shared by
// every store in internal/core.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nacos-mini/nacos-go/internal/storage"
)

// forbidden path prefixes a configured database file must never resolve
// under, mirroring the guard the teacher's embedded-storage profile used.
var forbiddenPrefixes = []string{"/etc", "/sys", "/proc", "/dev"}

// Options configures the pool backing Open.
type Options struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Open validates the database path, opens a pure-Go sqlite connection pool
// in WAL mode with foreign keys enabled, and returns the raw *sql.DB.
// Schema creation is left to the goose migrations in internal/database.
func Open(ctx context.Context, opts Options) (*sql.DB, error) {
	if err := validatePath(opts.Path); err != nil {
		return nil, err
	}

	if opts.Path != ":memory:" {
		dir := filepath.Dir(opts.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &storage.ErrStorageInitFailed{Backend: "sqlite", Cause: err}
		}
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL&_foreign_keys=on", opts.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &storage.ErrConnectionFailed{Backend: "sqlite", Cause: err}
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 20
	}
	maxIdle := opts.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &storage.ErrConnectionFailed{Backend: "sqlite", Cause: err}
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, &storage.ErrSchemaInitFailed{Backend: "sqlite", Cause: err}
	}

	if opts.Path != ":memory:" {
		os.Chmod(opts.Path, 0o600)
	}

	return db, nil
}

func validatePath(path string) error {
	if path == "" {
		return &storage.ErrInvalidFilePath{Path: path, Reason: "empty path"}
	}
	if path == ":memory:" {
		return nil
	}
	if strings.Contains(path, "..") {
		return &storage.ErrInvalidFilePath{Path: path, Reason: "contains '..'"}
	}
	for _, prefix := range forbiddenPrefixes {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return &storage.ErrInvalidFilePath{Path: path, Reason: "forbidden prefix " + prefix}
		}
	}
	return nil
}
