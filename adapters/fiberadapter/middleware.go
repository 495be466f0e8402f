package fiberadapter

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-identity"
)

// DefaultContextKey is the Locals key the resolved AuthContext lives under.
const DefaultContextKey = "auth"

type source struct {
	c *fiber.Ctx
}

func (s source) Cookie(name string) string {
	return s.c.Cookies(name)
}

func (s source) AuthorizationHeader() string {
	return s.c.Get(fiber.HeaderAuthorization)
}

// Config tunes the fiber-native identity middleware.
type Config struct {
	Optional     bool
	MinimumRole  identity.Role
	ContextKey   string
	ErrorHandler func(*fiber.Ctx, error) error
}

// New builds fiber middleware around a RequestContext. The resolved
// AuthContext is stored in Locals and the request's user context so fiber
// handlers and context-aware services read the same identity.
func New(rc *identity.RequestContext, cfg Config) fiber.Handler {
	contextKey := cfg.ContextKey
	if contextKey == "" {
		contextKey = DefaultContextKey
	}

	errorHandler := cfg.ErrorHandler
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}

	return func(c *fiber.Ctx) error {
		auth, err := rc.ResolveRequest(c.UserContext(), source{c})
		if err != nil {
			return errorHandler(c, err)
		}

		if auth.Anonymous() && !cfg.Optional {
			return errorHandler(c, identity.ErrInvalidSession)
		}

		if cfg.MinimumRole != "" && !auth.Anonymous() && !auth.HasAccess(cfg.MinimumRole) {
			return c.SendStatus(fiber.StatusForbidden)
		}

		c.Locals(contextKey, auth)
		c.SetUserContext(identity.WithContext(c.UserContext(), auth))

		return c.Next()
	}
}

// GetAuthContext pulls the resolved AuthContext out of fiber Locals.
func GetAuthContext(c *fiber.Ctx, key ...string) (*identity.AuthContext, bool) {
	contextKey := DefaultContextKey
	if len(key) > 0 && key[0] != "" {
		contextKey = key[0]
	}

	auth, ok := c.Locals(contextKey).(*identity.AuthContext)
	return auth, ok
}

// SetSessionCookie signs a session artifact for the user and sets it as an
// HTTP-only, Secure, SameSite=Lax cookie on the fiber response.
func SetSessionCookie(c *fiber.Ctx, rc *identity.RequestContext, user *identity.User) (string, error) {
	if user == nil {
		return "", identity.ErrUserNotFound
	}

	token, err := rc.Tokens().Issue(user.ID.String())
	if err != nil {
		return "", err
	}

	c.Cookie(&fiber.Cookie{
		Name:     rc.SessionCookieNames()[0],
		Value:    token,
		Expires:  time.Now().Add(rc.CookieDuration()),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})

	return token, nil
}

// ClearSessionCookies expires every session cookie name the reader accepts.
func ClearSessionCookies(c *fiber.Ctx, rc *identity.RequestContext) {
	for _, name := range rc.SessionCookieNames() {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Expires:  time.Now().Add(-time.Hour * (24 * 365)),
			HTTPOnly: true,
			Secure:   true,
			SameSite: "Lax",
		})
	}
}

func defaultErrorHandler(c *fiber.Ctx, err error) error {
	if identity.IsStoreUnavailable(err) {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}
	return c.SendStatus(fiber.StatusUnauthorized)
}
