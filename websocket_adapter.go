package identity

import (
	"context"

	"github.com/goliatone/go-router"
)

// WSTokenValidator implements go-router's WSTokenValidator interface so
// WebSocket upgrades authenticate with the same session artifacts as HTTP
// requests. The role is re-derived at connection time, never read from the
// token.
type WSTokenValidator struct {
	requests *RequestContext
}

// NewWSTokenValidator creates a WebSocket token validator backed by the
// request context's resolution path.
func NewWSTokenValidator(requests *RequestContext) *WSTokenValidator {
	return &WSTokenValidator{
		requests: requests,
	}
}

// Validate resolves a session token into WebSocket-compatible auth claims.
func (w *WSTokenValidator) Validate(tokenString string) (router.WSAuthClaims, error) {
	auth, err := w.requests.ResolveToken(context.Background(), tokenString)
	if err != nil {
		return nil, err
	}
	return &WSAuthClaimsAdapter{auth: auth}, nil
}

// WSAuthClaimsAdapter adapts a resolved AuthContext to go-router's
// WSAuthClaims interface. Resource-level permissions are not modeled here;
// the Can* methods answer from the role hierarchy alone.
type WSAuthClaimsAdapter struct {
	auth *AuthContext
}

func (w *WSAuthClaimsAdapter) Subject() string {
	return w.auth.User.ID.String()
}

func (w *WSAuthClaimsAdapter) UserID() string {
	return w.auth.User.ID.String()
}

func (w *WSAuthClaimsAdapter) Role() string {
	return string(w.auth.Role)
}

func (w *WSAuthClaimsAdapter) CanRead(resource string) bool {
	return !w.auth.Anonymous()
}

func (w *WSAuthClaimsAdapter) CanEdit(resource string) bool {
	return !w.auth.Anonymous()
}

func (w *WSAuthClaimsAdapter) CanCreate(resource string) bool {
	return !w.auth.Anonymous()
}

func (w *WSAuthClaimsAdapter) CanDelete(resource string) bool {
	return w.auth.HasAccess(RoleAdmin)
}

func (w *WSAuthClaimsAdapter) HasRole(role string) bool {
	normalized, ok := NormalizeRole(role)
	if !ok {
		return false
	}
	return w.auth.Role == normalized
}

func (w *WSAuthClaimsAdapter) IsAtLeast(minRole string) bool {
	normalized, ok := NormalizeRole(minRole)
	if !ok {
		return false
	}
	return w.auth.HasAccess(normalized)
}

// NewWSAuthMiddleware creates WebSocket authentication middleware backed by
// this request context.
func (rc *RequestContext) NewWSAuthMiddleware(config ...router.WSAuthConfig) router.WebSocketMiddleware {
	validator := NewWSTokenValidator(rc)

	var cfg router.WSAuthConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	cfg.TokenValidator = validator

	return router.NewWSAuth(cfg)
}

// WSAuthContextFromContext retrieves the resolved AuthContext from a
// WebSocket connection's context.
func WSAuthContextFromContext(ctx context.Context) (*AuthContext, bool) {
	wsAuthClaims, ok := router.WSAuthClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}

	if adapter, ok := wsAuthClaims.(*WSAuthClaimsAdapter); ok {
		return adapter.auth, true
	}

	return nil, false
}
