package app

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/planora/planora/adapters/idgen"
	"github.com/planora/planora/adapters/memory"
	"github.com/planora/planora/core/input"
	"github.com/planora/planora/core/registry"
	"github.com/planora/planora/domain/principal"
	"github.com/planora/planora/ports"
)

const testEntities = `
entities:
  project:
    fields:
      name:
        type: string
        trim: true
        minLength: 3
        message: name must be at least 3 characters
      startDate:
        type: date
      budgetPct:
        type: number
        min: 0
        max: 100
      billable:
        type: bool
        optional: true
  contractProject:
    conflictKeys: [contractId, projectId]
    fields:
      contractId:
        type: string
      projectId:
        type: string
  salaryBand:
    restricted: true
    fields:
      grade:
        type: string
      amount:
        type: number
`

// countingStore wraps a RecordStore and counts every call that reaches
// it.
type countingStore struct {
	inner ports.RecordStore
	calls int
}

func (c *countingStore) List(ctx context.Context, desc registry.Descriptor) ([]map[string]any, error) {
	c.calls++
	return c.inner.List(ctx, desc)
}

func (c *countingStore) Get(ctx context.Context, desc registry.Descriptor, id string) (map[string]any, error) {
	c.calls++
	return c.inner.Get(ctx, desc, id)
}

func (c *countingStore) Insert(ctx context.Context, desc registry.Descriptor, id string, fields map[string]any) error {
	c.calls++
	return c.inner.Insert(ctx, desc, id, fields)
}

func (c *countingStore) InsertIgnore(ctx context.Context, desc registry.Descriptor, fields map[string]any) error {
	c.calls++
	return c.inner.InsertIgnore(ctx, desc, fields)
}

func (c *countingStore) UpdateVersioned(ctx context.Context, desc registry.Descriptor, id string, version int64, fields map[string]any) error {
	c.calls++
	return c.inner.UpdateVersioned(ctx, desc, id, version, fields)
}

func (c *countingStore) DeleteByID(ctx context.Context, desc registry.Descriptor, id string) error {
	c.calls++
	return c.inner.DeleteByID(ctx, desc, id)
}

func (c *countingStore) DeleteByKey(ctx context.Context, desc registry.Descriptor, key map[string]any) error {
	c.calls++
	return c.inner.DeleteByKey(ctx, desc, key)
}

func testDispatcher(t *testing.T) (*Dispatcher, *countingStore) {
	t.Helper()

	descs, err := registry.Parse([]byte(testEntities))
	if err != nil {
		t.Fatalf("parse entities: %v", err)
	}
	reg, err := registry.New(descs)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	store := &countingStore{inner: memory.NewRecordStore()}
	d := NewDispatcher(reg, store, idgen.NewSequential("rec-"), zerolog.Nop(), nil)
	return d, store
}

func body(t *testing.T, doc string) input.Value {
	t.Helper()
	v, err := input.FromJSON([]byte(doc))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func TestCreateReadUpdateRoundTrip(t *testing.T) {
	d, _ := testDispatcher(t)
	ctx := context.Background()

	created, err := d.Create(ctx, principal.RolePlanner, "project",
		body(t, `{"name":"  Apollo  ","startDate":"2026-01-15","budgetPct":80,"billable":true}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created["id"] != "rec-1" {
		t.Errorf("id = %v, want rec-1", created["id"])
	}
	if created["version"] != int64(1) {
		t.Errorf("version = %v, want 1", created["version"])
	}
	if created["name"] != "Apollo" {
		t.Errorf("name = %v, want trimmed Apollo", created["name"])
	}

	got, err := d.Read(ctx, principal.RoleViewer, "project", "rec-1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["startDate"] != "2026-01-15" {
		t.Errorf("startDate = %v, want 2026-01-15", got["startDate"])
	}
	if got["budgetPct"] != float64(80) {
		t.Errorf("budgetPct = %v, want 80", got["budgetPct"])
	}

	updated, err := d.Update(ctx, principal.RolePlanner, "project", "rec-1",
		body(t, `{"name":"Apollo II","startDate":"2026-02-01","budgetPct":90,"version":1}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated["version"] != int64(2) {
		t.Errorf("version after update = %v, want 2", updated["version"])
	}
}

func TestUpdateStaleVersionConflicts(t *testing.T) {
	d, _ := testDispatcher(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, principal.RolePlanner, "project",
		body(t, `{"name":"Apollo","startDate":"2026-01-15","budgetPct":80}`)); err != nil {
		t.Fatalf("create: %v", err)
	}

	// First writer wins.
	if _, err := d.Update(ctx, principal.RolePlanner, "project", "rec-1",
		body(t, `{"name":"Apollo A","startDate":"2026-01-15","budgetPct":80,"version":1}`)); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// Second writer still holds version 1 and must lose.
	_, err := d.Update(ctx, principal.RolePlanner, "project", "rec-1",
		body(t, `{"name":"Apollo B","startDate":"2026-01-15","budgetPct":80,"version":1}`))
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("stale update error = %v, want ConflictError", err)
	}
	if conflict.Version != 1 {
		t.Errorf("conflict version = %d, want 1", conflict.Version)
	}

	// The loser's write must not be applied.
	got, err := d.Read(ctx, principal.RoleViewer, "project", "rec-1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["name"] != "Apollo A" {
		t.Errorf("name = %v, want first writer's Apollo A", got["name"])
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	d, _ := testDispatcher(t)

	_, err := d.Update(context.Background(), principal.RoleAdmin, "project", "nope",
		body(t, `{"name":"Apollo","startDate":"2026-01-15","budgetPct":80,"version":1}`))
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	if nf.Kind != "record" {
		t.Errorf("kind = %q, want record", nf.Kind)
	}
}

func TestUpdateVersionRequired(t *testing.T) {
	d, store := testDispatcher(t)

	for _, doc := range []string{
		`{"name":"Apollo","startDate":"2026-01-15","budgetPct":80}`,
		`{"name":"Apollo","startDate":"2026-01-15","budgetPct":80,"version":0}`,
		`{"name":"Apollo","startDate":"2026-01-15","budgetPct":80,"version":1.5}`,
		`{"name":"Apollo","startDate":"2026-01-15","budgetPct":80,"version":"1"}`,
	} {
		_, err := d.Update(context.Background(), principal.RolePlanner, "project", "rec-1", body(t, doc))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("doc %s: error = %v, want ValidationError", doc, err)
		}
		if _, ok := verr.FieldErrors()["version"]; !ok {
			t.Errorf("doc %s: issue not at version path: %v", doc, verr.FieldErrors())
		}
	}
	if store.calls != 0 {
		t.Errorf("store reached %d times on version-less updates, want 0", store.calls)
	}
}

func TestCreateValidationAggregatesIssues(t *testing.T) {
	d, store := testDispatcher(t)

	_, err := d.Create(context.Background(), principal.RolePlanner, "project",
		body(t, `{"name":"ab","startDate":"15/01/2026","budgetPct":150}`))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}

	fields := verr.FieldErrors()
	if len(fields) != 3 {
		t.Fatalf("field errors = %v, want issues at name, startDate and budgetPct", fields)
	}
	if got := fields["name"]; len(got) != 1 || got[0] != "name must be at least 3 characters" {
		t.Errorf("name issues = %v", got)
	}
	if _, ok := fields["startDate"]; !ok {
		t.Errorf("missing startDate issue: %v", fields)
	}
	if _, ok := fields["budgetPct"]; !ok {
		t.Errorf("missing budgetPct issue: %v", fields)
	}

	if store.calls != 0 {
		t.Errorf("store reached %d times on invalid body, want 0", store.calls)
	}
}

func TestUnknownEntityNeverReachesStore(t *testing.T) {
	d, store := testDispatcher(t)
	ctx := context.Background()

	if _, err := d.List(ctx, principal.RoleAdmin, "secrets; DROP TABLE x"); err == nil {
		t.Fatal("list of unknown entity succeeded")
	}
	if _, err := d.Read(ctx, principal.RoleAdmin, "secrets", "1"); err == nil {
		t.Fatal("read of unknown entity succeeded")
	}
	if _, err := d.Create(ctx, principal.RoleAdmin, "secrets", body(t, `{}`)); err == nil {
		t.Fatal("create of unknown entity succeeded")
	}
	if err := d.Delete(ctx, principal.RoleAdmin, "secrets", "1"); err == nil {
		t.Fatal("delete of unknown entity succeeded")
	}

	var nf *NotFoundError
	_, err := d.List(ctx, principal.RoleAdmin, "secrets")
	if !errors.As(err, &nf) || nf.Kind != "entity" {
		t.Errorf("error = %v, want entity NotFoundError", err)
	}

	if store.calls != 0 {
		t.Errorf("store reached %d times for unknown entities, want 0", store.calls)
	}
}

func TestAuthorizationMatrix(t *testing.T) {
	d, _ := testDispatcher(t)
	ctx := context.Background()

	// Viewers cannot write.
	_, err := d.Create(ctx, principal.RoleViewer, "project",
		body(t, `{"name":"Apollo","startDate":"2026-01-15","budgetPct":80}`))
	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("viewer create error = %v, want AuthorizationError", err)
	}
	if err := d.Delete(ctx, principal.RoleViewer, "project", "rec-1"); !errors.As(err, &authErr) {
		t.Fatalf("viewer delete error = %v, want AuthorizationError", err)
	}

	// Restricted entities are invisible below admin.
	if _, err := d.List(ctx, principal.RolePlanner, "salaryBand"); !errors.As(err, &authErr) {
		t.Fatalf("planner list salaryBand error = %v, want AuthorizationError", err)
	}
	if _, err := d.List(ctx, principal.RoleAdmin, "salaryBand"); err != nil {
		t.Fatalf("admin list salaryBand: %v", err)
	}

	// Planners read and write ordinary entities.
	if _, err := d.List(ctx, principal.RolePlanner, "project"); err != nil {
		t.Fatalf("planner list project: %v", err)
	}
}

func TestConflictKeyCreateIsIdempotent(t *testing.T) {
	d, _ := testDispatcher(t)
	ctx := context.Background()

	link := `{"contractId":"c1","projectId":"p1"}`
	first, err := d.Create(ctx, principal.RolePlanner, "contractProject", body(t, link))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, ok := first["id"]; ok {
		t.Error("conflict-key record carries an id")
	}
	if _, ok := first["version"]; ok {
		t.Error("conflict-key record carries a version")
	}

	if _, err := d.Create(ctx, principal.RolePlanner, "contractProject", body(t, link)); err != nil {
		t.Fatalf("duplicate create: %v", err)
	}

	rows, err := d.List(ctx, principal.RoleViewer, "contractProject")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
}

func TestDeleteByKey(t *testing.T) {
	d, _ := testDispatcher(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, principal.RolePlanner, "contractProject",
		body(t, `{"contractId":"c1","projectId":"p1"}`)); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Partial key tuples are rejected before the store is touched.
	err := d.DeleteByKey(ctx, principal.RolePlanner, "contractProject",
		map[string]string{"contractId": "c1"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("partial key error = %v, want ValidationError", err)
	}
	if _, ok := verr.FieldErrors()["projectId"]; !ok {
		t.Errorf("issue not at projectId: %v", verr.FieldErrors())
	}

	if err := d.DeleteByKey(ctx, principal.RolePlanner, "contractProject",
		map[string]string{"contractId": "c1", "projectId": "p1"}); err != nil {
		t.Fatalf("delete by key: %v", err)
	}

	rows, err := d.List(ctx, principal.RoleViewer, "contractProject")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %d, want 0 after delete", len(rows))
	}
}

func TestDeleteByID(t *testing.T) {
	d, _ := testDispatcher(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, principal.RolePlanner, "project",
		body(t, `{"name":"Apollo","startDate":"2026-01-15","budgetPct":80}`)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := d.Delete(ctx, principal.RolePlanner, "project", "rec-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var nf *NotFoundError
	if err := d.Delete(ctx, principal.RolePlanner, "project", "rec-1"); !errors.As(err, &nf) {
		t.Fatalf("second delete error = %v, want NotFoundError", err)
	}
}

func TestUpdateIgnoresUndeclaredFields(t *testing.T) {
	d, _ := testDispatcher(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, principal.RolePlanner, "project",
		body(t, `{"name":"Apollo","startDate":"2026-01-15","budgetPct":80}`)); err != nil {
		t.Fatalf("create: %v", err)
	}

	// version is consumed as the concurrency token, id and hacked are
	// simply dropped. None of them land in the stored row.
	updated, err := d.Update(ctx, principal.RolePlanner, "project", "rec-1",
		body(t, `{"name":"Apollo","startDate":"2026-01-15","budgetPct":80,"version":1,"id":"evil","hacked":true}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated["id"] != "rec-1" {
		t.Errorf("id = %v, want rec-1", updated["id"])
	}

	got, err := d.Read(ctx, principal.RoleViewer, "project", "rec-1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, ok := got["hacked"]; ok {
		t.Error("undeclared field persisted")
	}
	if got["id"] != "rec-1" {
		t.Errorf("stored id = %v, want rec-1", got["id"])
	}
}
