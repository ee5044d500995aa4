// Package schema provides composable runtime validation of untyped input.
//
// A Node describes the expected shape of a value. Leaf nodes (String,
// Number, Bool, Enum) check scalars; composite nodes (Object, Array)
// recurse into children and aggregate every issue they find instead of
// stopping at the first one, so a single pass reports every bad field.
//
// The variant set is closed: there is exactly one implementation per
// node kind and no open subclassing.
package schema

import (
	"github.com/planora/planora/core/input"
)

// Node is the uniform parse contract shared by every schema variant.
//
// parse validates v at the given path, reporting failures into errs.
// It returns the parsed Go value and whether this subtree validated
// cleanly. Implementations never stop at the first child failure.
type Node interface {
	parse(v input.Value, path Path, errs *Issues) (any, bool)
}

// Parse validates v against the node and returns the parsed value.
// On failure the returned error is an *Issues carrying every issue found.
func Parse(n Node, v input.Value) (any, error) {
	var errs Issues
	out, ok := n.parse(v, nil, &errs)
	if !ok {
		return nil, &errs
	}
	return out, nil
}

// SafeParse validates v against the node and never returns an error;
// failures are reported in the Result's issue list.
func SafeParse(n Node, v input.Value) Result {
	var errs Issues
	out, ok := n.parse(v, nil, &errs)
	if !ok {
		return Result{Issues: errs.Items()}
	}
	return Result{Value: out}
}

// refinement is a predicate checked only after structural validation
// succeeds. A failing refinement contributes exactly one issue at the
// node's own path.
type refinement struct {
	check   func(any) bool
	message string
}

// options holds the nullability flags and refinements common to every
// node variant.
type options struct {
	optional bool // undefined passes through
	nullable bool // null passes through
	refines  []refinement
}

// checkPresence applies the shared undefined/null policy.
//
// done=true means the node is finished: either the value was a permitted
// undefined/null passthrough (ok=true, out=nil) or a missing value was
// rejected (ok=false). done=false means the value is present and the
// node must continue with its own checks.
func (o options) checkPresence(v input.Value, path Path, errs *Issues) (out any, ok, done bool) {
	switch v.Kind() {
	case input.KindUndefined:
		if o.optional {
			return nil, true, true
		}
		errs.Add(path, "required value missing")
		return nil, false, true
	case input.KindNull:
		if o.nullable {
			return nil, true, true
		}
		errs.Add(path, "required value missing")
		return nil, false, true
	default:
		return nil, false, false
	}
}

// runRefinements evaluates the node's refinements against a
// structurally valid value. Each failure adds one issue at the node's
// own path; all refinements are evaluated.
func (o options) runRefinements(val any, path Path, errs *Issues) bool {
	ok := true
	for _, r := range o.refines {
		if !r.check(val) {
			errs.Add(path, r.message)
			ok = false
		}
	}
	return ok
}
