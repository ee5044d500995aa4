package app

import (
	"fmt"

	"github.com/planora/planora/core/schema"
)

// ValidationError carries the full aggregated issue list for a rejected
// body. It is fully resolved before the store is touched, so a
// validation failure is never partially applied.
type ValidationError struct {
	Issues []schema.Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "validation failed: " + e.Issues[0].String()
	}
	return fmt.Sprintf("validation failed: %d issues", len(e.Issues))
}

// FieldErrors groups issue messages by rendered path.
func (e *ValidationError) FieldErrors() map[string][]string {
	out := make(map[string][]string, len(e.Issues))
	for _, issue := range e.Issues {
		key := issue.Path.String()
		out[key] = append(out[key], issue.Message)
	}
	return out
}

// issueAt builds a ValidationError with a single issue.
func issueAt(path schema.Path, message string) *ValidationError {
	return &ValidationError{Issues: []schema.Issue{{Path: path, Message: message}}}
}

// AuthorizationError means the principal's role does not permit the
// verb or entity. Recoverable by re-authenticating as someone else.
type AuthorizationError struct {
	Role   string
	Verb   string
	Entity string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q may not %s %s", e.Role, e.Verb, e.Entity)
}

// NotFoundError means the entity or record does not exist.
type NotFoundError struct {
	Kind string // "entity" or "record"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// ConflictError means a version-checked update lost the race. The
// client must re-read and resubmit; the engine never retries.
type ConflictError struct {
	Entity  string
	ID      string
	Version int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q changed since version %d", e.Entity, e.ID, e.Version)
}

// StoreError wraps an unexpected store failure. Opaque to clients;
// surfaced as a 500.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return "store failure: " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }
