package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Path locates a value inside nested input. Elements are string field
// names or int array indices.
type Path []any

// String renders the path with dot separators, e.g. "items.2.name".
// The root path renders as the empty string.
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	parts := make([]string, len(p))
	for i, seg := range p {
		switch s := seg.(type) {
		case string:
			parts[i] = s
		case int:
			parts[i] = strconv.Itoa(s)
		default:
			parts[i] = fmt.Sprint(s)
		}
	}
	return strings.Join(parts, ".")
}

// child returns a new path extended by one segment. The receiver is
// never aliased, so sibling fields cannot clobber each other's paths.
func (p Path) child(seg any) Path {
	next := make(Path, len(p)+1)
	copy(next, p)
	next[len(p)] = seg
	return next
}

// Issue is a single validation failure tagged with its location.
type Issue struct {
	Path    Path   `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if len(i.Path) == 0 {
		return i.Message
	}
	return i.Path.String() + ": " + i.Message
}

// Issues aggregates validation failures in the order they were found.
// It implements error so a full issue list can propagate as one value.
type Issues struct {
	issues []Issue
}

// Add appends an issue.
func (e *Issues) Add(path Path, message string) {
	e.issues = append(e.issues, Issue{Path: path, Message: message})
}

// Addf appends an issue with a formatted message.
func (e *Issues) Addf(path Path, format string, args ...any) {
	e.Add(path, fmt.Sprintf(format, args...))
}

// Len returns the number of collected issues.
func (e *Issues) Len() int { return len(e.issues) }

// Empty reports whether no issues were collected.
func (e *Issues) Empty() bool { return len(e.issues) == 0 }

// Items returns the collected issues in order.
func (e *Issues) Items() []Issue { return e.issues }

// Error joins all issue messages. Never called on an empty list in
// practice; it returns a placeholder if it is.
func (e *Issues) Error() string {
	if len(e.issues) == 0 {
		return "no validation issues"
	}
	parts := make([]string, len(e.issues))
	for i, issue := range e.issues {
		parts[i] = issue.String()
	}
	return strings.Join(parts, "; ")
}

// FieldErrors groups issue messages by rendered path, preserving the
// order messages were reported within each path.
func (e *Issues) FieldErrors() map[string][]string {
	if len(e.issues) == 0 {
		return nil
	}
	out := make(map[string][]string)
	for _, issue := range e.issues {
		key := issue.Path.String()
		out[key] = append(out[key], issue.Message)
	}
	return out
}

// Result is the outcome of SafeParse: either a parsed value or a
// non-empty issue list.
type Result struct {
	Value  any
	Issues []Issue
}

// OK reports whether parsing succeeded.
func (r Result) OK() bool { return len(r.Issues) == 0 }
