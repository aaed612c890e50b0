// Package sqlite provides a SQLite-backed store using the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"reefcore/internal/infra/persistence/sqlstore"
	"reefcore/pkg/domain"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Dialect is the SQLite flavour of the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:     "sqlite",
	JSONType: "TEXT",
	RealType: "REAL",
	MapError: mapError,
}

// Store persists reference data, drafts and committed sample units to SQLite.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens (creating if needed) the database at path and applies the
// schema. Foreign keys are enforced on the single pooled connection.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "reefcore.db"
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps an in-memory database and its pragmas alive
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	store := &Store{Store: sqlstore.New(db, Dialect), path: path}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database.
func (s *Store) Close() error { return s.DB().Close() }

func mapError(err error) (*domain.StorageError, bool) {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return nil, false
	}
	msg := se.Error()
	out := &domain.StorageError{Message: msg}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		out.Code = "foreign_key_violation"
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		out.Code = "unique_violation"
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		out.Code = "not_null_violation"
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		out.Code = "check_violation"
		out.Constraint = checkName(msg)
	case sqlite3.SQLITE_MISMATCH:
		out.Code = "invalid_type"
	default:
		return nil, false
	}
	return out, true
}

// checkName extracts the constraint from "CHECK constraint failed: name".
func checkName(msg string) string {
	const marker = "CHECK constraint failed: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	name := msg[i+len(marker):]
	if j := strings.IndexAny(name, " ("); j >= 0 {
		name = name[:j]
	}
	return name
}
