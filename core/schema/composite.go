package schema

import (
	"strconv"

	"github.com/planora/planora/core/input"
)

// ObjectField is one declared field of an object node. Field order is
// significant: it drives issue ordering and column layout downstream.
type ObjectField struct {
	Name string
	Node Node
}

// Field pairs a name with its node.
func Field(name string, n Node) ObjectField {
	return ObjectField{Name: name, Node: n}
}

// ObjectNode validates objects field by field. Unknown input fields are
// silently ignored; callers may send extra fields without breaking.
// All child issues are collected before the node fails, so one pass
// reports every bad field.
type ObjectNode struct {
	opts   options
	fields []ObjectField
}

// Object creates an object node with the declared fields, in order.
func Object(fields ...ObjectField) *ObjectNode {
	return &ObjectNode{fields: fields}
}

// Optional lets undefined pass through.
func (n *ObjectNode) Optional() *ObjectNode {
	n.opts.optional = true
	return n
}

// Nullable lets null pass through.
func (n *ObjectNode) Nullable() *ObjectNode {
	n.opts.nullable = true
	return n
}

// Refine attaches a predicate over the parsed field map, checked only
// when every declared field validated.
func (n *ObjectNode) Refine(check func(map[string]any) bool, message string) *ObjectNode {
	n.opts.refines = append(n.opts.refines, refinement{
		check:   func(v any) bool { return check(v.(map[string]any)) },
		message: message,
	})
	return n
}

// Fields returns the declared fields in order.
func (n *ObjectNode) Fields() []ObjectField { return n.fields }

func (n *ObjectNode) parse(v input.Value, path Path, errs *Issues) (any, bool) {
	if out, ok, done := n.opts.checkPresence(v, path, errs); done {
		return out, ok
	}

	if v.Kind() != input.KindObject {
		errs.Addf(path, "expected object, got %s", v.Kind())
		return nil, false
	}

	before := errs.Len()
	out := make(map[string]any, len(n.fields))

	for _, f := range n.fields {
		fv := v.Field(f.Name)
		val, ok := f.Node.parse(fv, path.child(f.Name), errs)
		if !ok {
			continue
		}
		// An optional field that was absent stays absent in the output.
		if fv.IsUndefined() {
			continue
		}
		out[f.Name] = val
	}

	if errs.Len() > before {
		return nil, false
	}
	if !n.opts.runRefinements(out, path, errs) {
		return nil, false
	}
	return out, true
}

// ArrayNode validates every element against the item node, extending
// the path with the element index. All element issues are aggregated.
type ArrayNode struct {
	opts options
	item Node
}

// Array creates an array node over the given item node.
func Array(item Node) *ArrayNode {
	return &ArrayNode{item: item}
}

// Min requires at least min elements; a post-hoc refinement per the
// combinator contract. An empty message falls back to a generic one.
func (n *ArrayNode) Min(min int, message string) *ArrayNode {
	if message == "" {
		message = "must have at least " + strconv.Itoa(min) + " items"
	}
	n.opts.refines = append(n.opts.refines, refinement{
		check:   func(v any) bool { return len(v.([]any)) >= min },
		message: message,
	})
	return n
}

// Optional lets undefined pass through.
func (n *ArrayNode) Optional() *ArrayNode {
	n.opts.optional = true
	return n
}

// Nullable lets null pass through.
func (n *ArrayNode) Nullable() *ArrayNode {
	n.opts.nullable = true
	return n
}

// Item returns the element node.
func (n *ArrayNode) Item() Node { return n.item }

func (n *ArrayNode) parse(v input.Value, path Path, errs *Issues) (any, bool) {
	if out, ok, done := n.opts.checkPresence(v, path, errs); done {
		return out, ok
	}

	items, ok := v.Array()
	if !ok {
		errs.Addf(path, "expected array, got %s", v.Kind())
		return nil, false
	}

	before := errs.Len()
	out := make([]any, 0, len(items))

	for i, item := range items {
		val, itemOK := n.item.parse(item, path.child(i), errs)
		if itemOK {
			out = append(out, val)
		}
	}

	if errs.Len() > before {
		return nil, false
	}
	if !n.opts.runRefinements(out, path, errs) {
		return nil, false
	}
	return out, true
}
