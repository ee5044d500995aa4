package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/planora/planora/adapters/clock"
	"github.com/planora/planora/core/registry"
	"github.com/planora/planora/domain/principal"
	"github.com/planora/planora/ports"
)

const testEntities = `
entities:
  project:
    table: projects
    fields:
      name:      { type: string, minLength: 1 }
      startDate: { type: date, optional: true }
      billable:  { type: bool, optional: true }
  contractProject:
    table: contract_projects
    conflictKeys: [contractId, projectId]
    fields:
      contractId: { type: string }
      projectId:  { type: string }
`

func testStore(t *testing.T) (*RecordStore, *registry.Registry) {
	t.Helper()

	descs, err := registry.Parse([]byte(testEntities))
	if err != nil {
		t.Fatalf("parse entities: %v", err)
	}
	reg, err := registry.New(descs)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Init(context.Background(), reg); err != nil {
		t.Fatalf("init db: %v", err)
	}

	return NewRecordStore(db), reg
}

func TestInsertAndGet(t *testing.T) {
	store, reg := testStore(t)
	ctx := context.Background()
	desc, _ := reg.Resolve("project")

	err := store.Insert(ctx, desc, "p1", map[string]any{
		"name":       "Atlas",
		"start_date": "2026-03-14",
		"billable":   true,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	record, err := store.Get(ctx, desc, "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record["name"] != "Atlas" {
		t.Errorf("name = %v", record["name"])
	}
	if record["version"] != int64(1) {
		t.Errorf("version = %v, want 1", record["version"])
	}
	if record["billable"] != true {
		t.Errorf("billable = %v (%T), want true", record["billable"], record["billable"])
	}
}

func TestGetNotFound(t *testing.T) {
	store, reg := testStore(t)
	desc, _ := reg.Resolve("project")

	if _, err := store.Get(context.Background(), desc, "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateVersioned(t *testing.T) {
	store, reg := testStore(t)
	ctx := context.Background()
	desc, _ := reg.Resolve("project")

	if err := store.Insert(ctx, desc, "p1", map[string]any{"name": "Atlas"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Matching version succeeds and bumps.
	if err := store.UpdateVersioned(ctx, desc, "p1", 1, map[string]any{"name": "Atlas II"}); err != nil {
		t.Fatalf("UpdateVersioned: %v", err)
	}
	record, _ := store.Get(ctx, desc, "p1")
	if record["version"] != int64(2) || record["name"] != "Atlas II" {
		t.Errorf("record = %v", record)
	}

	// Stale version conflicts and leaves the row unchanged.
	err := store.UpdateVersioned(ctx, desc, "p1", 1, map[string]any{"name": "Atlas III"})
	if !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	record, _ = store.Get(ctx, desc, "p1")
	if record["version"] != int64(2) || record["name"] != "Atlas II" {
		t.Errorf("row changed after conflict: %v", record)
	}

	// Nonexistent row is not-found, not conflict.
	err = store.UpdateVersioned(ctx, desc, "missing", 1, map[string]any{"name": "x"})
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestInsertIgnoreIdempotent(t *testing.T) {
	store, reg := testStore(t)
	ctx := context.Background()
	desc, _ := reg.Resolve("contractProject")

	row := map[string]any{"contract_id": "c1", "project_id": "p1"}
	if err := store.InsertIgnore(ctx, desc, row); err != nil {
		t.Fatalf("first InsertIgnore: %v", err)
	}
	if err := store.InsertIgnore(ctx, desc, row); err != nil {
		t.Fatalf("second InsertIgnore: %v", err)
	}

	rows, err := store.List(ctx, desc)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
}

func TestDeleteByID(t *testing.T) {
	store, reg := testStore(t)
	ctx := context.Background()
	desc, _ := reg.Resolve("project")

	store.Insert(ctx, desc, "p1", map[string]any{"name": "Atlas"})

	if err := store.DeleteByID(ctx, desc, "p1"); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if err := store.DeleteByID(ctx, desc, "p1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestDeleteByKey(t *testing.T) {
	store, reg := testStore(t)
	ctx := context.Background()
	desc, _ := reg.Resolve("contractProject")

	store.InsertIgnore(ctx, desc, map[string]any{"contract_id": "c1", "project_id": "p1"})
	store.InsertIgnore(ctx, desc, map[string]any{"contract_id": "c1", "project_id": "p2"})

	err := store.DeleteByKey(ctx, desc, map[string]any{"contract_id": "c1", "project_id": "p1"})
	if err != nil {
		t.Fatalf("DeleteByKey: %v", err)
	}

	rows, _ := store.List(ctx, desc)
	if len(rows) != 1 || rows[0]["project_id"] != "p2" {
		t.Errorf("rows = %v", rows)
	}

	// Missing key column is an error, not a full-table delete.
	err = store.DeleteByKey(ctx, desc, map[string]any{"contract_id": "c1"})
	if err == nil {
		t.Error("partial key should fail")
	}
}

func TestListOrder(t *testing.T) {
	store, reg := testStore(t)
	ctx := context.Background()
	desc, _ := reg.Resolve("project")

	store.Insert(ctx, desc, "p1", map[string]any{"name": "first"})
	store.Insert(ctx, desc, "p2", map[string]any{"name": "second"})

	rows, err := store.List(ctx, desc)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 || rows[0]["name"] != "first" || rows[1]["name"] != "second" {
		t.Errorf("rows = %v", rows)
	}
}

func TestPrincipalStore(t *testing.T) {
	_, reg := testStore(t)

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := db.Init(context.Background(), reg); err != nil {
		t.Fatalf("init: %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewPrincipalStore(db, clock.Fixed{T: now})
	ctx := context.Background()

	p := principal.Principal{ID: "p1", Name: "dana", Role: principal.RolePlanner, TokenHash: []byte("hash")}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, p); !errors.Is(err, ports.ErrDuplicate) {
		t.Errorf("duplicate err = %v", err)
	}

	got, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Role != principal.RolePlanner || got.Name != "dana" {
		t.Errorf("got = %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("created at = %v, want clock time %v", got.CreatedAt, now)
	}

	all, err := store.List(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("List = %v, %v", all, err)
	}

	if err := store.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "p1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}
