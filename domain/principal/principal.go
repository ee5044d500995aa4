// Package principal provides principal and role value types with pure
// authorization rules. No dependencies on I/O or external packages.
package principal

import (
	"fmt"
	"time"
)

// Role determines what a principal may do.
type Role string

const (
	// RoleViewer may read unrestricted entities.
	RoleViewer Role = "viewer"
	// RolePlanner may additionally create, update and delete records.
	RolePlanner Role = "planner"
	// RoleAdmin may additionally read restricted entities.
	RoleAdmin Role = "admin"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleViewer, RolePlanner, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// CanWrite reports whether the role may use write verbs.
func (r Role) CanWrite() bool {
	return r == RolePlanner || r == RoleAdmin
}

// CanRead reports whether the role may read an entity. Restricted
// entities are readable only by admins.
func (r Role) CanRead(restricted bool) bool {
	if restricted {
		return r == RoleAdmin
	}
	switch r {
	case RoleViewer, RolePlanner, RoleAdmin:
		return true
	default:
		return false
	}
}

// Principal is an authenticated caller (immutable value type).
type Principal struct {
	ID        string
	Name      string
	Role      Role
	TokenHash []byte // bcrypt hash of the API token
	CreatedAt time.Time
}
