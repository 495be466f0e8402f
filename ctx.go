package identity

import (
	"context"
)

var authCtxKey = &contextKey{"auth"}

type contextKey struct {
	name string
}

// WithContext sets the resolved AuthContext in the given context
func WithContext(r context.Context, auth *AuthContext) context.Context {
	return context.WithValue(r, authCtxKey, auth)
}

// FromContext finds the AuthContext from the context.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	raw, ok := ctx.Value(authCtxKey).(*AuthContext)
	return raw, ok
}

// UserFromContext returns the resolved user, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *User {
	auth, ok := FromContext(ctx)
	if !ok || auth == nil {
		return nil
	}
	return auth.User
}

// RoleFromContext returns the resolved role. Anonymous requests have none.
func RoleFromContext(ctx context.Context) (Role, bool) {
	auth, ok := FromContext(ctx)
	if !ok || auth == nil || auth.User == nil {
		return "", false
	}
	return auth.Role, true
}

// Can is a convenience function to check the minimum role directly from the
// standard context. Anonymous contexts never pass.
func Can(ctx context.Context, requiredRole Role) bool {
	auth, ok := FromContext(ctx)
	if !ok || auth == nil {
		return false
	}
	return auth.HasAccess(requiredRole)
}
