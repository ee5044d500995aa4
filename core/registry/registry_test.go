package registry

import (
	"strings"
	"testing"

	"github.com/planora/planora/core/input"
	"github.com/planora/planora/core/schema"
)

const sampleYAML = `
entities:
  project:
    table: projects
    fields:
      name:      { type: string, trim: true, minLength: 1, message: "name must not be empty" }
      startDate: { type: date, optional: true }
      budgetPct: { type: number, coerce: true, min: 0, max: 100, optional: true }
      status:    { type: enum, values: [draft, active, closed], optional: true }
      billable:  { type: bool, optional: true }
  contractProject:
    table: contract_projects
    conflictKeys: [contractId, projectId]
    fields:
      contractId: { type: string }
      projectId:  { type: string }
  salaryBand:
    table: salary_bands
    restricted: true
    fields:
      label: { type: string }
`

func TestParseAndResolve(t *testing.T) {
	descs, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	reg, err := New(descs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d, ok := reg.Resolve("project")
	if !ok {
		t.Fatal("project not resolved")
	}
	if d.Table != "projects" {
		t.Errorf("table = %q", d.Table)
	}
	if !d.HasSurrogateID() {
		t.Error("project should have a surrogate id")
	}
	if d.Restricted {
		t.Error("project should not be restricted")
	}

	if _, ok := reg.Resolve("invoice"); ok {
		t.Error("unknown entity should not resolve")
	}
}

func TestFieldOrderPreserved(t *testing.T) {
	descs, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var project Descriptor
	for _, d := range descs {
		if d.Name == "project" {
			project = d
		}
	}

	want := []string{"name", "start_date", "budget_pct", "status", "billable"}
	if len(project.Columns) != len(want) {
		t.Fatalf("columns = %v", project.Columns)
	}
	for i, col := range project.Columns {
		if col.Name != want[i] {
			t.Errorf("column[%d] = %q, want %q", i, col.Name, want[i])
		}
	}
}

func TestColumnMetadata(t *testing.T) {
	descs, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	reg, err := New(descs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	project, _ := reg.Resolve("project")

	date, ok := project.Column("start_date")
	if !ok || !date.Date {
		t.Errorf("start_date = %+v, %v", date, ok)
	}
	if date.External != "startDate" {
		t.Errorf("external = %q", date.External)
	}

	pct, _ := project.Column("budget_pct")
	if pct.SQLType != "REAL" {
		t.Errorf("budget_pct type = %q", pct.SQLType)
	}
	billable, _ := project.Column("billable")
	if billable.SQLType != "INTEGER" {
		t.Errorf("billable type = %q", billable.SQLType)
	}
}

func TestConflictKeysStoredForm(t *testing.T) {
	descs, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	reg, err := New(descs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cp, _ := reg.Resolve("contractProject")
	if cp.HasSurrogateID() {
		t.Error("contractProject should be a conflict-key entity")
	}
	if len(cp.ConflictKeys) != 2 || cp.ConflictKeys[0] != "contract_id" || cp.ConflictKeys[1] != "project_id" {
		t.Errorf("conflictKeys = %v", cp.ConflictKeys)
	}
}

func TestRestrictedFlag(t *testing.T) {
	reg := mustLoad(t)
	band, _ := reg.Resolve("salaryBand")
	if !band.Restricted {
		t.Error("salaryBand should be restricted")
	}
}

func TestSchemaValidatesBody(t *testing.T) {
	reg := mustLoad(t)
	project, _ := reg.Resolve("project")

	doc, err := input.FromJSON([]byte(`{"name":"","budgetPct":"150"}`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	res := schema.SafeParse(project.Schema, doc)
	if res.OK() {
		t.Fatal("expected validation failure")
	}
	// Both bad fields must be reported in one pass.
	if len(res.Issues) != 2 {
		t.Fatalf("issues = %v", res.Issues)
	}
	if res.Issues[0].Message != "name must not be empty" {
		t.Errorf("message = %q", res.Issues[0].Message)
	}
}

func TestDateFieldValidation(t *testing.T) {
	reg := mustLoad(t)
	project, _ := reg.Resolve("project")

	doc, _ := input.FromJSON([]byte(`{"name":"Atlas","startDate":"14/03/2026"}`))
	res := schema.SafeParse(project.Schema, doc)
	if res.OK() {
		t.Fatal("malformed date should fail")
	}
	if res.Issues[0].Path.String() != "startDate" {
		t.Errorf("path = %q", res.Issues[0].Path.String())
	}

	doc, _ = input.FromJSON([]byte(`{"name":"Atlas","startDate":"2026-03-14"}`))
	if res := schema.SafeParse(project.Schema, doc); !res.OK() {
		t.Errorf("valid date rejected: %v", res.Issues)
	}
}

func TestRejectsEngineManagedColumns(t *testing.T) {
	bad := `
entities:
  project:
    table: projects
    fields:
      id:   { type: string }
      name: { type: string }
`
	descs, err := Parse([]byte(bad))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := New(descs); err == nil || !strings.Contains(err.Error(), "engine-managed") {
		t.Errorf("err = %v", err)
	}
}

func TestRejectsDuplicateTable(t *testing.T) {
	bad := `
entities:
  a:
    table: shared
    fields:
      name: { type: string }
  b:
    table: shared
    fields:
      name: { type: string }
`
	descs, err := Parse([]byte(bad))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := New(descs); err == nil {
		t.Error("duplicate table should be rejected")
	}
}

func TestRejectsUnknownFieldType(t *testing.T) {
	bad := `
entities:
  a:
    table: things
    fields:
      blob: { type: binary }
`
	if _, err := Parse([]byte(bad)); err == nil {
		t.Error("unknown type should be rejected")
	}
}

func TestRejectsBadConflictKey(t *testing.T) {
	bad := `
entities:
  a:
    table: things
    conflictKeys: [otherId]
    fields:
      name: { type: string }
`
	descs, err := Parse([]byte(bad))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := New(descs); err == nil {
		t.Error("conflict key not in columns should be rejected")
	}
}

func mustLoad(t *testing.T) *Registry {
	t.Helper()
	descs, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	reg, err := New(descs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return reg
}
