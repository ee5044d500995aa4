package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/planora/planora/core/naming"
	"github.com/planora/planora/core/schema"
)

// fieldSpec is the YAML form of one entity field. Field names in the
// file use external lowerCamelCase; types form a closed set matching
// the schema combinators plus "date" (a string column rendered as
// "YYYY-MM-DD" externally).
type fieldSpec struct {
	Type      string   `yaml:"type"`
	Optional  bool     `yaml:"optional"`
	Nullable  bool     `yaml:"nullable"`
	Trim      bool     `yaml:"trim"`
	Coerce    bool     `yaml:"coerce"`
	MinLength *int     `yaml:"minLength"`
	Message   string   `yaml:"message"`
	Min       *float64 `yaml:"min"`
	Max       *float64 `yaml:"max"`
	Values    []string `yaml:"values"`
}

// entitySpec is the YAML form of one entity.
type entitySpec struct {
	Table        string    `yaml:"table"`
	Restricted   bool      `yaml:"restricted"`
	ConflictKeys []string  `yaml:"conflictKeys"`
	Fields       yaml.Node `yaml:"fields"`
}

// fileSpec is the root of an entity definitions file.
type fileSpec struct {
	Entities yaml.Node `yaml:"entities"`
}

// ParseFile loads entity descriptors from a YAML file.
func ParseFile(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entities file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse loads entity descriptors from YAML bytes. Declaration order of
// entities and fields is preserved; it drives schema field order and
// column layout.
func Parse(data []byte) ([]Descriptor, error) {
	var file fileSpec
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse entities yaml: %w", err)
	}
	if file.Entities.Kind == 0 {
		return nil, fmt.Errorf("entities yaml: missing entities section")
	}
	if file.Entities.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("entities yaml: entities must be a mapping")
	}

	var descs []Descriptor
	// A yaml mapping node stores keys and values interleaved.
	for i := 0; i+1 < len(file.Entities.Content); i += 2 {
		name := file.Entities.Content[i].Value

		var spec entitySpec
		if err := file.Entities.Content[i+1].Decode(&spec); err != nil {
			return nil, fmt.Errorf("entity %q: %w", name, err)
		}

		desc, err := buildDescriptor(name, spec)
		if err != nil {
			return nil, err
		}
		descs = append(descs, desc)
	}

	return descs, nil
}

func buildDescriptor(name string, spec entitySpec) (Descriptor, error) {
	if spec.Table == "" {
		spec.Table = naming.ToStored(name) + "s"
	}
	if spec.Fields.Kind != yaml.MappingNode {
		return Descriptor{}, fmt.Errorf("entity %q: fields must be a mapping", name)
	}

	var fields []schema.ObjectField
	var columns []Column

	for i := 0; i+1 < len(spec.Fields.Content); i += 2 {
		fieldName := spec.Fields.Content[i].Value

		var fs fieldSpec
		if err := spec.Fields.Content[i+1].Decode(&fs); err != nil {
			return Descriptor{}, fmt.Errorf("entity %q field %q: %w", name, fieldName, err)
		}

		node, col, err := buildField(fieldName, fs)
		if err != nil {
			return Descriptor{}, fmt.Errorf("entity %q field %q: %w", name, fieldName, err)
		}

		fields = append(fields, schema.Field(fieldName, node))
		columns = append(columns, col)
	}

	// Conflict keys are written in external form in the file.
	keys := make([]string, len(spec.ConflictKeys))
	for i, k := range spec.ConflictKeys {
		keys[i] = naming.ToStored(k)
	}

	return Descriptor{
		Name:         name,
		Table:        spec.Table,
		Schema:       schema.Object(fields...),
		Columns:      columns,
		ConflictKeys: keys,
		Restricted:   spec.Restricted,
	}, nil
}

// datePattern accepts "YYYY-MM-DD" date strings on input.
func datePattern(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, r := range s {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func buildField(name string, fs fieldSpec) (schema.Node, Column, error) {
	col := Column{
		Name:     naming.ToStored(name),
		External: name,
		SQLType:  "TEXT",
	}

	var node schema.Node

	switch fs.Type {
	case "string":
		n := schema.String()
		if fs.Trim {
			n = n.Trim()
		}
		if fs.MinLength != nil {
			n = n.Min(*fs.MinLength, fs.Message)
		}
		if fs.Optional {
			n = n.Optional()
		}
		if fs.Nullable {
			n = n.Nullable()
		}
		node = n

	case "date":
		n := schema.String().Refine(datePattern, "must be a date in YYYY-MM-DD format")
		if fs.Optional {
			n = n.Optional()
		}
		if fs.Nullable {
			n = n.Nullable()
		}
		col.Date = true
		node = n

	case "number":
		n := schema.Number()
		if fs.Coerce {
			n = n.Coerce()
		}
		if fs.Min != nil {
			n = n.Min(*fs.Min)
		}
		if fs.Max != nil {
			n = n.Max(*fs.Max)
		}
		if fs.Optional {
			n = n.Optional()
		}
		if fs.Nullable {
			n = n.Nullable()
		}
		col.SQLType = "REAL"
		node = n

	case "bool":
		n := schema.Bool()
		if fs.Optional {
			n = n.Optional()
		}
		if fs.Nullable {
			n = n.Nullable()
		}
		col.SQLType = "INTEGER"
		node = n

	case "enum":
		if len(fs.Values) == 0 {
			return nil, Column{}, fmt.Errorf("enum field requires values")
		}
		n := schema.Enum(fs.Values...)
		if fs.Optional {
			n = n.Optional()
		}
		if fs.Nullable {
			n = n.Nullable()
		}
		node = n

	case "":
		return nil, Column{}, fmt.Errorf("field type is required")

	default:
		return nil, Column{}, fmt.Errorf("unknown field type %q", fs.Type)
	}

	return node, col, nil
}

// Load parses a file and builds the validated registry in one step.
func Load(path string) (*Registry, error) {
	descs, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return New(descs)
}
