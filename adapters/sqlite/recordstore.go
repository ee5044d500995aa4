package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/planora/planora/core/registry"
	"github.com/planora/planora/ports"
)

// RecordStore implements ports.RecordStore using SQLite. One store
// serves every registered entity; the descriptor passed to each call
// supplies the trusted table and column identifiers.
type RecordStore struct {
	db *DB
}

// NewRecordStore creates a new SQLite record store.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// selectColumns returns the full column list for reads, engine-managed
// columns first.
func selectColumns(desc registry.Descriptor) []string {
	var cols []string
	if desc.HasSurrogateID() {
		cols = append(cols, "id", "version")
	}
	for _, c := range desc.Columns {
		cols = append(cols, c.Name)
	}
	return cols
}

// List returns all rows of an entity in insertion order.
func (s *RecordStore) List(ctx context.Context, desc registry.Descriptor) ([]map[string]any, error) {
	cols := selectColumns(desc)
	query := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY rowid",
		strings.Join(cols, ", "), desc.Table,
	)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", desc.Table, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		record, err := scanRecord(rows, cols, desc)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// Get returns a single row by surrogate id.
func (s *RecordStore) Get(ctx context.Context, desc registry.Descriptor, id string) (map[string]any, error) {
	cols := selectColumns(desc)
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE id = ?",
		strings.Join(cols, ", "), desc.Table,
	)

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", desc.Table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ports.ErrNotFound
	}
	return scanRecord(rows, cols, desc)
}

// Insert stores a new surrogate-id row with version 1.
func (s *RecordStore) Insert(ctx context.Context, desc registry.Descriptor, id string, fields map[string]any) error {
	columns := []string{"id", "version"}
	placeholders := []string{"?", "?"}
	values := []any{id, 1}

	// Iterate declared columns, never the input map, so only
	// whitelisted identifiers reach the SQL text.
	for _, c := range desc.Columns {
		val, ok := fields[c.Name]
		if !ok {
			continue
		}
		columns = append(columns, c.Name)
		placeholders = append(placeholders, "?")
		values = append(values, val)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		desc.Table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		if isUniqueConstraintError(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert %s: %w", desc.Table, err)
	}
	return nil
}

// InsertIgnore stores a conflict-key row; duplicates are success.
func (s *RecordStore) InsertIgnore(ctx context.Context, desc registry.Descriptor, fields map[string]any) error {
	var columns []string
	var placeholders []string
	var values []any

	for _, c := range desc.Columns {
		val, ok := fields[c.Name]
		if !ok {
			continue
		}
		columns = append(columns, c.Name)
		placeholders = append(placeholders, "?")
		values = append(values, val)
	}

	query := fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		desc.Table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("insert %s: %w", desc.Table, err)
	}
	return nil
}

// UpdateVersioned applies fields to the row whose id and version both
// match, bumping version atomically. The conditional UPDATE is the
// whole concurrency story: zero affected rows means the row is gone or
// someone else won the race, disambiguated by a follow-up existence
// check inside the same transaction.
func (s *RecordStore) UpdateVersioned(ctx context.Context, desc registry.Descriptor, id string, version int64, fields map[string]any) error {
	var sets []string
	var values []any

	for _, c := range desc.Columns {
		val, ok := fields[c.Name]
		if !ok {
			continue
		}
		sets = append(sets, c.Name+" = ?")
		values = append(values, val)
	}
	sets = append(sets, "version = version + 1")
	values = append(values, id, version)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = ? AND version = ?",
		desc.Table,
		strings.Join(sets, ", "),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, values...)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update %s: %w", desc.Table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}

	if affected == 0 {
		var one int
		err := tx.QueryRowContext(ctx,
			fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", desc.Table), id,
		).Scan(&one)
		tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return ports.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("existence check %s: %w", desc.Table, err)
		}
		return ports.ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update %s: %w", desc.Table, err)
	}
	return nil
}

// DeleteByID removes a surrogate-id row. No version check is applied;
// a delete can race an update undetected.
func (s *RecordStore) DeleteByID(ctx context.Context, desc registry.Descriptor, id string) error {
	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ?", desc.Table), id,
	)
	if err != nil {
		return fmt.Errorf("delete %s: %w", desc.Table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// DeleteByKey removes a conflict-key row by its full key tuple.
func (s *RecordStore) DeleteByKey(ctx context.Context, desc registry.Descriptor, key map[string]any) error {
	var conditions []string
	var values []any

	for _, k := range desc.ConflictKeys {
		val, ok := key[k]
		if !ok {
			return fmt.Errorf("delete %s: missing key column %s", desc.Table, k)
		}
		conditions = append(conditions, k+" = ?")
		values = append(values, val)
	}

	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s", desc.Table, strings.Join(conditions, " AND ")),
		values...,
	)
	if err != nil {
		return fmt.Errorf("delete %s: %w", desc.Table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// scanRecord scans the current row into a column-keyed map, converting
// driver values to the column's declared shape (bool columns come back
// from SQLite as integers).
func scanRecord(rows *sql.Rows, cols []string, desc registry.Descriptor) (map[string]any, error) {
	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan %s: %w", desc.Table, err)
	}

	record := make(map[string]any, len(cols))
	for i, name := range cols {
		record[name] = convertFromDB(name, values[i], desc)
	}
	return record, nil
}

func convertFromDB(name string, v any, desc registry.Descriptor) any {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	col, ok := desc.Column(name)
	if !ok {
		// Engine-managed id/version.
		return v
	}
	if col.SQLType == "INTEGER" {
		if n, ok := v.(int64); ok {
			return n != 0
		}
	}
	return v
}

// Ensure interface compliance.
var _ ports.RecordStore = (*RecordStore)(nil)
