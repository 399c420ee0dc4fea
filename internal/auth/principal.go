package auth

import (
	"context"

	"hopperGateway/internal/apperrors"
	"hopperGateway/models"
)

// Principal represents the authenticated caller as confirmed by the record
// store.
type Principal struct {
	Token string // refreshed session token
	User  models.User
}

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context (if any).
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// RequirePrincipal ensures a principal is present in context.
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthenticated("missing principal", nil)
	}
	return p, nil
}
