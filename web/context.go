package web

import (
	"context"

	"github.com/planora/planora/adapters/auth"
	"github.com/planora/planora/domain/principal"
)

type ctxKey string

const identityKey ctxKey = "identity"

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	PrincipalID string
	Name        string
	Role        principal.Role
}

// withIdentity adds the authenticated identity to the context.
func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// getIdentity retrieves the identity from context. The zero Identity
// carries an empty role, which fails every authorization check.
func getIdentity(ctx context.Context) Identity {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok {
		return Identity{}
	}
	return id
}

// identityFromClaims builds an Identity from validated JWT claims.
// The role string was already checked by the token service.
func identityFromClaims(claims *auth.Claims) Identity {
	role, _ := principal.ParseRole(claims.Role)
	return Identity{
		PrincipalID: claims.PrincipalID,
		Name:        claims.Name,
		Role:        role,
	}
}
