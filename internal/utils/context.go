package utils

import (
	"context"

	"campusmart-be/internal/auth"
)

type contextKey string

const principalKey contextKey = "principal"

// SetPrincipalContext sets the authenticated caller into context (called by middleware).
func SetPrincipalContext(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the authenticated caller safely.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(auth.Principal)
	return p, ok
}

// UserIDFromContext retrieves the caller id, zero when anonymous.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	p, ok := PrincipalFromContext(ctx)
	return p.ID, ok
}

// RoleFromContext retrieves the caller role, empty when anonymous.
func RoleFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.Role
}
