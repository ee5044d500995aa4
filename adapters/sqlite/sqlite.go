// Package sqlite provides SQLite implementations of storage ports.
//
// Identifier safety: every table and column name interpolated into SQL
// in this package comes from a registry.Descriptor, never from request
// input. All values are bound as parameters.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/planora/planora/core/registry"
)

// DB wraps a SQLite database connection.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite database connection.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	return &DB{DB: db}, nil
}

// Init creates the principals table and one table per registered
// entity. Table layout is derived from descriptors, so there is no
// static migration set; CREATE TABLE IF NOT EXISTS keeps restarts
// idempotent.
func (db *DB) Init(ctx context.Context, reg *registry.Registry) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS principals (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			token_hash BLOB NOT NULL,
			created_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create principals table: %w", err)
	}

	for _, desc := range reg.Descriptors() {
		if _, err := db.ExecContext(ctx, BuildCreateTableSQL(desc)); err != nil {
			return fmt.Errorf("create table %s: %w", desc.Table, err)
		}
	}

	return nil
}

// BuildCreateTableSQL generates CREATE TABLE SQL from a descriptor.
// Surrogate-id entities get engine-managed id and version columns;
// conflict-key entities get a UNIQUE constraint over their key tuple.
func BuildCreateTableSQL(desc registry.Descriptor) string {
	var columns []string

	if desc.HasSurrogateID() {
		columns = append(columns,
			"id TEXT PRIMARY KEY",
			"version INTEGER NOT NULL DEFAULT 1",
		)
	}

	for _, c := range desc.Columns {
		columns = append(columns, c.Name+" "+c.SQLType)
	}

	if !desc.HasSurrogateID() {
		columns = append(columns, fmt.Sprintf("UNIQUE(%s)", strings.Join(desc.ConflictKeys, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		desc.Table,
		strings.Join(columns, ",\n  "),
	)
}

func isUniqueConstraintError(err error) bool {
	return err != nil &&
		(strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "unique constraint"))
}
