// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/planora/planora/core/registry"
	"github.com/planora/planora/domain/principal"
)

// Sentinel errors shared by store implementations.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a version-checked update lost the
	// race: the row exists but its version moved on.
	ErrConflict = errors.New("version conflict")

	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("already exists")
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher hashes and verifies secrets.
type Hasher interface {
	Hash(plaintext string) ([]byte, error)
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// RecordStore persists entity records generically, driven by registry
// descriptors. Implementations must treat every identifier taken from
// the descriptor as trusted (the registry is the whitelist) and bind
// every value as a query parameter.
//
// Field maps are keyed by stored (snake_case) column names.
type RecordStore interface {
	// List returns all rows of an entity in insertion order.
	List(ctx context.Context, desc registry.Descriptor) ([]map[string]any, error)

	// Get returns a single row by surrogate id. Returns ErrNotFound.
	Get(ctx context.Context, desc registry.Descriptor, id string) (map[string]any, error)

	// Insert stores a new surrogate-id row with version 1.
	Insert(ctx context.Context, desc registry.Descriptor, id string, fields map[string]any) error

	// InsertIgnore stores a conflict-key row; a row with the same key
	// tuple already existing is success, not an error.
	InsertIgnore(ctx context.Context, desc registry.Descriptor, fields map[string]any) error

	// UpdateVersioned applies fields to the row whose id AND version
	// both match, bumping version by one atomically. Returns
	// ErrNotFound when the row does not exist and ErrConflict when it
	// exists at a different version.
	UpdateVersioned(ctx context.Context, desc registry.Descriptor, id string, version int64, fields map[string]any) error

	// DeleteByID removes a surrogate-id row. Returns ErrNotFound.
	DeleteByID(ctx context.Context, desc registry.Descriptor, id string) error

	// DeleteByKey removes a conflict-key row by its full key tuple,
	// keyed by stored column name. Returns ErrNotFound.
	DeleteByKey(ctx context.Context, desc registry.Descriptor, key map[string]any) error
}

// PrincipalStore persists principal accounts.
type PrincipalStore interface {
	// Create stores a new principal.
	Create(ctx context.Context, p principal.Principal) error

	// Get retrieves a principal by ID.
	Get(ctx context.Context, id string) (principal.Principal, error)

	// List returns all principals.
	List(ctx context.Context) ([]principal.Principal, error)

	// Delete removes a principal.
	Delete(ctx context.Context, id string) error
}
