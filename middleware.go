package identity

import (
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// MiddlewareConfig tunes the identity middleware for a route group.
type MiddlewareConfig struct {
	// Optional lets unauthenticated requests through with an anonymous
	// AuthContext instead of rejecting them.
	Optional bool
	// MinimumRole, when set, rejects any caller whose resolved role does
	// not satisfy it.
	MinimumRole Role
	// ContextKey is the Locals key the resolved AuthContext is stored
	// under. Defaults to "auth".
	ContextKey string
	// ErrorHandler handles rejections. Defaults to a JSON 401/403 writer.
	ErrorHandler func(router.Context, error) error
}

// Middleware resolves the caller's identity once per request and stows the
// result in both router Locals and the request's context.Context, so
// handlers and downstream services read the same AuthContext.
func (rc *RequestContext) Middleware(cfg MiddlewareConfig) router.MiddlewareFunc {
	contextKey := cfg.ContextKey
	if contextKey == "" {
		contextKey = "auth"
	}

	errorHandler := cfg.ErrorHandler
	if errorHandler == nil {
		errorHandler = rc.defaultErrHandler
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			auth, err := rc.ContextFor(c)
			if err != nil {
				return errorHandler(c, err)
			}

			if auth.Anonymous() && !cfg.Optional {
				return errorHandler(c, ErrInvalidSession)
			}

			if cfg.MinimumRole != "" && !auth.Anonymous() && !auth.HasAccess(cfg.MinimumRole) {
				return errorHandler(c, errors.New("insufficient role", errors.CategoryAuthz).
					WithTextCode("FORBIDDEN").
					WithCode(errors.CodeForbidden).
					WithMetadata(map[string]any{
						"role":     string(auth.Role),
						"required": string(cfg.MinimumRole),
					}))
			}

			c.Locals(contextKey, auth)
			c.SetContext(WithContext(c.Context(), auth))

			return hf(c)
		}
	}
}

// Protected is shorthand for a required-auth middleware with a role floor.
func (rc *RequestContext) Protected(minimumRole Role) router.MiddlewareFunc {
	return rc.Middleware(MiddlewareConfig{MinimumRole: minimumRole})
}

// OptionalAuth resolves identity when present but never rejects the request.
func (rc *RequestContext) OptionalAuth() router.MiddlewareFunc {
	return rc.Middleware(MiddlewareConfig{Optional: true})
}

func (rc *RequestContext) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	rc.logger.Info("Middleware error handler [%s]: %s %s",
		richErr.Category, richErr.Message, print.MaybePrettyJSON(richErr.Metadata))

	status := richErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return c.Status(status).SendString(richErr.Message)
}
