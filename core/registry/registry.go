// Package registry holds the immutable, process-wide map from external
// entity names to their table, schema and key layout.
//
// The registry is the sole trust boundary for identifiers that get
// interpolated into query text. Parameter binding protects values, not
// identifiers, so every table and column name reaching the store layer
// must originate here, never from request input. The registry is built
// once at startup and never mutated, which is why it needs no locking.
package registry

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/planora/planora/core/schema"
)

// Column is one stored column of an entity, with its external name and
// SQLite affinity.
type Column struct {
	Name     string // stored snake_case name
	External string // external lowerCamelCase name
	SQLType  string // TEXT, REAL or INTEGER
	Date     bool   // rendered as "YYYY-MM-DD" externally
}

// Descriptor describes one entity: its external name, table, validation
// schema and key layout. A descriptor never declares id or version
// columns; those are engine-managed.
type Descriptor struct {
	Name         string             // external entity name
	Table        string             // stored table name
	Schema       *schema.ObjectNode // body validation, id/version excluded
	Columns      []Column           // declared columns, in schema order
	ConflictKeys []string           // stored column names; empty means surrogate id
	Restricted   bool               // readable only by the admin role
}

// HasSurrogateID reports whether rows of this entity carry an engine
// generated id and version. Conflict-key entities are identified by
// their key tuple instead.
func (d Descriptor) HasSurrogateID() bool { return len(d.ConflictKeys) == 0 }

// Column returns the column with the given stored name.
func (d Descriptor) Column(stored string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == stored {
			return c, true
		}
	}
	return Column{}, false
}

// validIdentifier matches the identifiers we allow into SQL text.
var validIdentifier = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Registry is the immutable entity set. Construct with New; never
// mutate afterward.
type Registry struct {
	entities map[string]Descriptor
	names    []string
}

// New builds a registry from descriptors, validating names, tables and
// key layouts. Errors here are configuration mistakes and fatal.
func New(descs []Descriptor) (*Registry, error) {
	entities := make(map[string]Descriptor, len(descs))
	tables := make(map[string]string, len(descs))

	for _, d := range descs {
		if d.Name == "" {
			return nil, fmt.Errorf("entity with empty name")
		}
		if _, dup := entities[d.Name]; dup {
			return nil, fmt.Errorf("entity %q declared twice", d.Name)
		}
		if !validIdentifier.MatchString(d.Table) {
			return nil, fmt.Errorf("entity %q: table name %q is not a valid identifier", d.Name, d.Table)
		}
		if owner, dup := tables[d.Table]; dup {
			return nil, fmt.Errorf("entity %q: table %q already claimed by entity %q", d.Name, d.Table, owner)
		}
		if len(d.Columns) == 0 {
			return nil, fmt.Errorf("entity %q: no columns declared", d.Name)
		}

		cols := make(map[string]bool, len(d.Columns))
		for _, c := range d.Columns {
			if !validIdentifier.MatchString(c.Name) {
				return nil, fmt.Errorf("entity %q: column name %q is not a valid identifier", d.Name, c.Name)
			}
			if c.Name == "id" || c.Name == "version" {
				return nil, fmt.Errorf("entity %q: column %q is engine-managed and must not be declared", d.Name, c.Name)
			}
			if cols[c.Name] {
				return nil, fmt.Errorf("entity %q: column %q declared twice", d.Name, c.Name)
			}
			cols[c.Name] = true
		}

		for _, k := range d.ConflictKeys {
			if !cols[k] {
				return nil, fmt.Errorf("entity %q: conflict key %q is not a declared column", d.Name, k)
			}
		}

		entities[d.Name] = d
		tables[d.Table] = d.Name
	}

	names := make([]string, 0, len(entities))
	for name := range entities {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Registry{entities: entities, names: names}, nil
}

// Resolve looks up an entity by external name.
func (r *Registry) Resolve(name string) (Descriptor, bool) {
	d, ok := r.entities[name]
	return d, ok
}

// Names returns all entity names, sorted.
func (r *Registry) Names() []string { return r.names }

// Descriptors returns all descriptors in name order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.entities[name])
	}
	return out
}
