package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/planora/planora/adapters/clock"
	"github.com/planora/planora/domain/principal"
	"github.com/planora/planora/ports"
)

// PrincipalStore implements ports.PrincipalStore using SQLite.
type PrincipalStore struct {
	db    *DB
	clock ports.Clock
}

// NewPrincipalStore creates a new SQLite principal store. A nil clock
// means the system clock.
func NewPrincipalStore(db *DB, clk ports.Clock) *PrincipalStore {
	if clk == nil {
		clk = clock.System{}
	}
	return &PrincipalStore{db: db, clock: clk}
}

// Create stores a new principal.
func (s *PrincipalStore) Create(ctx context.Context, p principal.Principal) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.clock.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO principals (id, name, role, token_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Name, string(p.Role), p.TokenHash, p.CreatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ports.ErrDuplicate
	}
	return err
}

// Get retrieves a principal by ID.
func (s *PrincipalStore) Get(ctx context.Context, id string) (principal.Principal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, role, token_hash, created_at
		FROM principals
		WHERE id = ?
	`, id)

	var p principal.Principal
	var role string
	err := row.Scan(&p.ID, &p.Name, &role, &p.TokenHash, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return principal.Principal{}, ports.ErrNotFound
	}
	if err != nil {
		return principal.Principal{}, fmt.Errorf("scan principal: %w", err)
	}
	p.Role = principal.Role(role)
	return p, nil
}

// List returns all principals ordered by creation time.
func (s *PrincipalStore) List(ctx context.Context) ([]principal.Principal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, role, token_hash, created_at
		FROM principals
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []principal.Principal
	for rows.Next() {
		var p principal.Principal
		var role string
		if err := rows.Scan(&p.ID, &p.Name, &role, &p.TokenHash, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan principal: %w", err)
		}
		p.Role = principal.Role(role)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a principal.
func (s *PrincipalStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM principals WHERE id = ?`, id)
	if err != nil {
		return err
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

// Ensure interface compliance.
var _ ports.PrincipalStore = (*PrincipalStore)(nil)
