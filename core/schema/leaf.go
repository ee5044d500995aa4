package schema

import (
	"math"
	"strconv"
	"strings"

	"github.com/planora/planora/core/input"
)

// StringNode validates string values with optional trimming and a
// minimum-length check.
type StringNode struct {
	opts      options
	trim      bool
	minLen    int
	minLenMsg string
	hasMin    bool
}

// String creates a string node.
func String() *StringNode { return &StringNode{} }

// Trim makes the node trim surrounding whitespace before any checks.
func (n *StringNode) Trim() *StringNode {
	n.trim = true
	return n
}

// Min requires at least min characters after trimming. An empty message
// falls back to a generic one.
func (n *StringNode) Min(min int, message string) *StringNode {
	if message == "" {
		message = "must be at least " + strconv.Itoa(min) + " characters"
	}
	n.minLen = min
	n.minLenMsg = message
	n.hasMin = true
	return n
}

// Optional lets undefined pass through.
func (n *StringNode) Optional() *StringNode {
	n.opts.optional = true
	return n
}

// Nullable lets null pass through.
func (n *StringNode) Nullable() *StringNode {
	n.opts.nullable = true
	return n
}

// Refine attaches a predicate checked after structural validation.
func (n *StringNode) Refine(check func(string) bool, message string) *StringNode {
	n.opts.refines = append(n.opts.refines, refinement{
		check:   func(v any) bool { return check(v.(string)) },
		message: message,
	})
	return n
}

func (n *StringNode) parse(v input.Value, path Path, errs *Issues) (any, bool) {
	if out, ok, done := n.opts.checkPresence(v, path, errs); done {
		return out, ok
	}

	s, ok := v.String()
	if !ok {
		errs.Addf(path, "expected string, got %s", v.Kind())
		return nil, false
	}

	if n.trim {
		s = strings.TrimSpace(s)
	}
	if n.hasMin && len(s) < n.minLen {
		errs.Add(path, n.minLenMsg)
		return nil, false
	}

	if !n.opts.runRefinements(s, path, errs) {
		return nil, false
	}
	return s, true
}

// NumberNode validates numeric values with optional string coercion and
// range checks. NaN is always rejected.
type NumberNode struct {
	opts   options
	coerce bool
	min    float64
	hasMinV bool
	max    float64
	hasMaxV bool
}

// Number creates a number node.
func Number() *NumberNode { return &NumberNode{} }

// Coerce accepts numeric strings and converts them before validation.
func (n *NumberNode) Coerce() *NumberNode {
	n.coerce = true
	return n
}

// Min requires the value to be at least min.
func (n *NumberNode) Min(min float64) *NumberNode {
	n.min = min
	n.hasMinV = true
	return n
}

// Max requires the value to be at most max.
func (n *NumberNode) Max(max float64) *NumberNode {
	n.max = max
	n.hasMaxV = true
	return n
}

// Optional lets undefined pass through.
func (n *NumberNode) Optional() *NumberNode {
	n.opts.optional = true
	return n
}

// Nullable lets null pass through.
func (n *NumberNode) Nullable() *NumberNode {
	n.opts.nullable = true
	return n
}

// Refine attaches a predicate checked after structural validation.
func (n *NumberNode) Refine(check func(float64) bool, message string) *NumberNode {
	n.opts.refines = append(n.opts.refines, refinement{
		check:   func(v any) bool { return check(v.(float64)) },
		message: message,
	})
	return n
}

func (n *NumberNode) parse(v input.Value, path Path, errs *Issues) (any, bool) {
	if out, ok, done := n.opts.checkPresence(v, path, errs); done {
		return out, ok
	}

	f, ok := v.Number()
	if !ok {
		if s, isStr := v.String(); isStr && n.coerce {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				errs.Add(path, "must be a number")
				return nil, false
			}
			f = parsed
		} else {
			errs.Addf(path, "expected number, got %s", v.Kind())
			return nil, false
		}
	}

	if math.IsNaN(f) {
		errs.Add(path, "must be a number")
		return nil, false
	}
	if n.hasMinV && f < n.min {
		errs.Addf(path, "must be at least %v", n.min)
		return nil, false
	}
	if n.hasMaxV && f > n.max {
		errs.Addf(path, "must be at most %v", n.max)
		return nil, false
	}

	if !n.opts.runRefinements(f, path, errs) {
		return nil, false
	}
	return f, true
}

// BoolNode validates strict boolean values.
type BoolNode struct {
	opts options
}

// Bool creates a boolean node.
func Bool() *BoolNode { return &BoolNode{} }

// Optional lets undefined pass through.
func (n *BoolNode) Optional() *BoolNode {
	n.opts.optional = true
	return n
}

// Nullable lets null pass through.
func (n *BoolNode) Nullable() *BoolNode {
	n.opts.nullable = true
	return n
}

func (n *BoolNode) parse(v input.Value, path Path, errs *Issues) (any, bool) {
	if out, ok, done := n.opts.checkPresence(v, path, errs); done {
		return out, ok
	}

	b, ok := v.Bool()
	if !ok {
		errs.Addf(path, "expected boolean, got %s", v.Kind())
		return nil, false
	}

	if !n.opts.runRefinements(b, path, errs) {
		return nil, false
	}
	return b, true
}

// EnumNode validates that a string is a member of a closed set.
type EnumNode struct {
	opts   options
	values []string
}

// Enum creates an enum node over the given members.
func Enum(values ...string) *EnumNode {
	return &EnumNode{values: values}
}

// Optional lets undefined pass through.
func (n *EnumNode) Optional() *EnumNode {
	n.opts.optional = true
	return n
}

// Nullable lets null pass through.
func (n *EnumNode) Nullable() *EnumNode {
	n.opts.nullable = true
	return n
}

// Values returns the declared members.
func (n *EnumNode) Values() []string { return n.values }

func (n *EnumNode) parse(v input.Value, path Path, errs *Issues) (any, bool) {
	if out, ok, done := n.opts.checkPresence(v, path, errs); done {
		return out, ok
	}

	s, ok := v.String()
	if !ok {
		errs.Addf(path, "expected string, got %s", v.Kind())
		return nil, false
	}

	for _, member := range n.values {
		if s == member {
			if !n.opts.runRefinements(s, path, errs) {
				return nil, false
			}
			return s, true
		}
	}

	errs.Addf(path, "must be one of: %s", strings.Join(n.values, ", "))
	return nil, false
}
