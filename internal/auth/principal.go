package auth

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the caller identity attached to a request.
// A nil *Principal means the request is anonymous.
type Principal struct {
	ID      uuid.UUID
	Email   string
	IsStaff bool
}

// IsAuthenticated reports whether p identifies a signed-in user.
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.ID != uuid.Nil
}

type contextKey int

const (
	principalContextKey contextKey = iota
)

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext extracts the authenticated principal from the request context.
// Returns nil if no principal is present (unauthenticated request).
func PrincipalFromContext(ctx context.Context) *Principal {
	principal, _ := ctx.Value(principalContextKey).(*Principal)
	return principal
}
