// Package memory provides in-memory implementations of storage ports,
// used in tests and as a throwaway backend for local development.
package memory

import (
	"context"
	"sync"

	"github.com/planora/planora/core/registry"
	"github.com/planora/planora/ports"
)

// RecordStore implements ports.RecordStore with in-memory tables.
// Semantics mirror the SQLite store: version CAS on update, duplicate
// key tuples ignored on insert-or-ignore, insertion order on list.
type RecordStore struct {
	mu     sync.RWMutex
	tables map[string][]map[string]any
}

// NewRecordStore creates an empty in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{tables: make(map[string][]map[string]any)}
}

func cloneRecord(r map[string]any) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// List returns all rows of an entity in insertion order.
func (s *RecordStore) List(ctx context.Context, desc registry.Descriptor) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.tables[desc.Table]
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = cloneRecord(r)
	}
	return out, nil
}

// Get returns a single row by surrogate id.
func (s *RecordStore) Get(ctx context.Context, desc registry.Descriptor, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.tables[desc.Table] {
		if r["id"] == id {
			return cloneRecord(r), nil
		}
	}
	return nil, ports.ErrNotFound
}

// Insert stores a new surrogate-id row with version 1.
func (s *RecordStore) Insert(ctx context.Context, desc registry.Descriptor, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.tables[desc.Table] {
		if r["id"] == id {
			return ports.ErrDuplicate
		}
	}

	record := cloneRecord(fields)
	record["id"] = id
	record["version"] = int64(1)
	s.tables[desc.Table] = append(s.tables[desc.Table], record)
	return nil
}

// InsertIgnore stores a conflict-key row; duplicates are success.
func (s *RecordStore) InsertIgnore(ctx context.Context, desc registry.Descriptor, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.tables[desc.Table] {
		if matchesKey(r, desc.ConflictKeys, fields) {
			return nil
		}
	}

	s.tables[desc.Table] = append(s.tables[desc.Table], cloneRecord(fields))
	return nil
}

// UpdateVersioned applies fields when id and version both match.
func (s *RecordStore) UpdateVersioned(ctx context.Context, desc registry.Descriptor, id string, version int64, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.tables[desc.Table] {
		if r["id"] != id {
			continue
		}
		if r["version"] != version {
			return ports.ErrConflict
		}
		for k, v := range fields {
			r[k] = v
		}
		r["version"] = version + 1
		return nil
	}
	return ports.ErrNotFound
}

// DeleteByID removes a surrogate-id row.
func (s *RecordStore) DeleteByID(ctx context.Context, desc registry.Descriptor, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[desc.Table]
	for i, r := range rows {
		if r["id"] == id {
			s.tables[desc.Table] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return ports.ErrNotFound
}

// DeleteByKey removes a conflict-key row by its full key tuple.
func (s *RecordStore) DeleteByKey(ctx context.Context, desc registry.Descriptor, key map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[desc.Table]
	for i, r := range rows {
		if matchesKey(r, desc.ConflictKeys, key) {
			s.tables[desc.Table] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return ports.ErrNotFound
}

func matchesKey(record map[string]any, keys []string, candidate map[string]any) bool {
	for _, k := range keys {
		if record[k] != candidate[k] {
			return false
		}
	}
	return len(keys) > 0
}

// Ensure interface compliance.
var _ ports.RecordStore = (*RecordStore)(nil)
