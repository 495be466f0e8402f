package identity

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// AuthContext is the normalized output every route handler consumes,
// regardless of which auth path produced it. An anonymous request carries a
// nil User and an empty Role; that is not an error condition.
type AuthContext struct {
	User    *User
	Role    Role
	Session Session
	Claim   *ProviderClaim
}

// Anonymous reports whether no auth method matched.
func (a *AuthContext) Anonymous() bool {
	return a == nil || a.User == nil
}

// HasAccess reports whether the resolved role satisfies requiredRole.
// Anonymous contexts never pass.
func (a *AuthContext) HasAccess(requiredRole Role) bool {
	if a.Anonymous() {
		return false
	}
	return HasAccess(a.Role, requiredRole)
}

// RequestContext is the single entry point downstream handlers use to answer
// "who is making this request and what can they do". It tries, in priority
// order: session cookie, Authorization bearer token, provider fallback
// cookie. Each step's failure falls through silently to the next.
type RequestContext struct {
	tokens           TokenService
	users            UserStore
	roles            *RoleResolver
	resolver         *Resolver
	bearerVerifier   CredentialVerifier
	fallbackVerifier CredentialVerifier
	cookieNames      []string
	fallbackCookie   string
	authScheme       string
	cookieDuration   time.Duration
	logger           Logger
}

// RequestContextOption configures a RequestContext.
type RequestContextOption func(*RequestContext)

// WithSessionCookieNames sets the ordered list of cookie names the session
// reader accepts. Several names survive for back-compat; the first value
// that parses validly wins.
func WithSessionCookieNames(names ...string) RequestContextOption {
	return func(rc *RequestContext) {
		if len(names) > 0 {
			rc.cookieNames = names
		}
	}
}

// WithBearerVerifier sets the verifier for Authorization header tokens.
func WithBearerVerifier(v CredentialVerifier) RequestContextOption {
	return func(rc *RequestContext) {
		rc.bearerVerifier = v
	}
}

// WithFallbackCookie sets a provider-specific cookie name and its verifier,
// tried after the session cookie and bearer token paths.
func WithFallbackCookie(name string, v CredentialVerifier) RequestContextOption {
	return func(rc *RequestContext) {
		rc.fallbackCookie = name
		rc.fallbackVerifier = v
	}
}

// WithCookieDuration overrides how long issued session cookies live.
func WithCookieDuration(d time.Duration) RequestContextOption {
	return func(rc *RequestContext) {
		if d > 0 {
			rc.cookieDuration = d
		}
	}
}

// WithRequestLogger overrides the default logger.
func WithRequestLogger(logger Logger) RequestContextOption {
	return func(rc *RequestContext) {
		if logger != nil {
			rc.logger = logger
		}
	}
}

// NewRequestContext wires the session reader, resolver, and role resolver
// into one adapter. Stores are injected here, never read from globals, so
// tests can supply in-memory implementations.
func NewRequestContext(tokens TokenService, users UserStore, roles *RoleResolver, resolver *Resolver, opts ...RequestContextOption) *RequestContext {
	rc := &RequestContext{
		tokens:         tokens,
		users:          users,
		roles:          roles,
		resolver:       resolver,
		cookieNames:    []string{DefaultSessionCookie},
		authScheme:     "Bearer",
		cookieDuration: DefaultSessionDuration,
		logger:         defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(rc)
		}
	}
	return rc
}

// NewRequestContextFromConfig builds the session token service from cfg and
// wires it with the given stores. Zero values in cfg fall back to the package
// defaults; explicit options still win over config values.
func NewRequestContextFromConfig(cfg Config, users UserStore, roles *RoleResolver, resolver *Resolver, opts ...RequestContextOption) *RequestContext {
	duration := cfg.GetSessionDuration()
	if duration <= 0 {
		duration = DefaultSessionDuration
	}

	tokens := NewTokenService(
		[]byte(cfg.GetSigningKey()),
		duration,
		cfg.GetIssuer(),
		jwt.ClaimStrings(cfg.GetAudience()),
		nil,
	)

	base := []RequestContextOption{WithCookieDuration(duration)}
	if names := cfg.GetSessionCookieNames(); len(names) > 0 {
		base = append(base, WithSessionCookieNames(names...))
	}

	rc := NewRequestContext(tokens, users, roles, resolver, append(base, opts...)...)
	if scheme := cfg.GetAuthScheme(); scheme != "" {
		rc.authScheme = scheme
	}
	if name := cfg.GetFallbackCookieName(); name != "" && rc.fallbackCookie == "" {
		rc.fallbackCookie = name
	}
	return rc
}

// DefaultSessionCookie is the canonical session cookie name.
const DefaultSessionCookie = "session"

// RequestSource abstracts the two places a credential can ride in: cookies
// and the Authorization header. Router and fiber adapters both satisfy it,
// as do plain maps in tests.
type RequestSource interface {
	Cookie(name string) string
	AuthorizationHeader() string
}

// ContextFor resolves the caller's identity from a request. All paths
// failing yields an anonymous AuthContext, not an error; the only error
// that escapes is a store outage, which must surface as a 5xx rather than
// silently under-authorizing the caller.
func (rc *RequestContext) ContextFor(c router.Context) (*AuthContext, error) {
	return rc.ResolveRequest(c.Context(), routerSource{c})
}

// ResolveRequest runs the ordered fall-through: session cookies first, then
// the Authorization bearer token, then the provider fallback cookie. Each
// rejected credential is logged and skipped; a store outage stops the chain.
func (rc *RequestContext) ResolveRequest(ctx context.Context, src RequestSource) (*AuthContext, error) {
	for _, name := range rc.cookieNames {
		raw := src.Cookie(name)
		if raw == "" {
			continue
		}

		auth, err := rc.fromSessionToken(ctx, raw)
		if err != nil {
			if IsStoreUnavailable(err) {
				return nil, err
			}
			rc.logger.Debug("ResolveRequest: session cookie %s rejected: %v", name, err)
			continue
		}
		return auth, nil
	}

	if raw := rc.bearerToken(src.AuthorizationHeader()); raw != "" && rc.bearerVerifier != nil {
		auth, err := rc.fromCredential(ctx, rc.bearerVerifier, raw)
		if err == nil {
			return auth, nil
		}
		if IsStoreUnavailable(err) {
			return nil, err
		}
		rc.logger.Debug("ResolveRequest: bearer token rejected: %v", err)
	}

	if rc.fallbackCookie != "" && rc.fallbackVerifier != nil {
		if raw := src.Cookie(rc.fallbackCookie); raw != "" {
			auth, err := rc.fromCredential(ctx, rc.fallbackVerifier, raw)
			if err == nil {
				return auth, nil
			}
			if IsStoreUnavailable(err) {
				return nil, err
			}
			rc.logger.Debug("ResolveRequest: fallback cookie %s rejected: %v", rc.fallbackCookie, err)
		}
	}

	return &AuthContext{}, nil
}

// ResolveCredential verifies a raw provider credential and runs it through
// the full linking and role resolution path.
func (rc *RequestContext) ResolveCredential(ctx context.Context, verifier CredentialVerifier, raw string) (*AuthContext, error) {
	return rc.fromCredential(ctx, verifier, raw)
}

// SessionCookieNames returns the cookie names, in priority order, the
// session reader accepts.
func (rc *RequestContext) SessionCookieNames() []string {
	return rc.cookieNames
}

// CookieDuration returns how long issued session cookies live.
func (rc *RequestContext) CookieDuration() time.Duration {
	return rc.cookieDuration
}

// Tokens exposes the session token service for adapters that set their own
// cookies.
func (rc *RequestContext) Tokens() TokenService {
	return rc.tokens
}

type routerSource struct {
	c router.Context
}

func (s routerSource) Cookie(name string) string {
	return s.c.Cookies(name)
}

func (s routerSource) AuthorizationHeader() string {
	return s.c.GetString(router.HeaderAuthorization, "")
}

// ResolveToken reconstitutes {user, role} from a raw session artifact. Used
// directly by non-cookie clients that carry the artifact as a bearer token.
func (rc *RequestContext) ResolveToken(ctx context.Context, raw string) (*AuthContext, error) {
	return rc.fromSessionToken(ctx, raw)
}

// fromSessionToken is the steady-state path: validate the artifact, load the
// user, re-derive the role. The artifact never embeds the role.
func (rc *RequestContext) fromSessionToken(ctx context.Context, raw string) (*AuthContext, error) {
	claims, err := rc.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	session, err := SessionFromClaims(claims)
	if err != nil {
		return nil, err
	}

	userID, err := session.GetUserUUID()
	if err != nil {
		return nil, ErrInvalidSession
	}

	user, err := rc.users.GetByUserID(ctx, userID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrInvalidSession
		}
		return nil, WrapStoreUnavailable(err)
	}

	role, err := rc.roles.RoleFor(ctx, user.ID)
	if err != nil {
		// A failed role lookup must not destroy an otherwise valid session.
		return nil, err
	}

	return &AuthContext{
		User:    user,
		Role:    role,
		Session: session,
	}, nil
}

// fromCredential is the full resolution path: verify, link, derive role,
// all per request.
func (rc *RequestContext) fromCredential(ctx context.Context, verifier CredentialVerifier, raw string) (*AuthContext, error) {
	claim, err := verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}

	user, err := rc.resolver.Resolve(ctx, claim)
	if err != nil {
		return nil, err
	}

	role, err := rc.roles.RoleFor(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &AuthContext{
		User:  user,
		Role:  role,
		Claim: claim,
	}, nil
}

func (rc *RequestContext) bearerToken(header string) string {
	if header == "" {
		return ""
	}

	scheme := rc.authScheme
	if len(header) <= len(scheme)+1 {
		return ""
	}
	if !strings.EqualFold(header[:len(scheme)], scheme) {
		return ""
	}

	return strings.TrimSpace(header[len(scheme):])
}

// IssueSession signs a session artifact for the user and sets it as an
// HTTP-only, Secure, SameSite=Lax cookie on the response.
func (rc *RequestContext) IssueSession(c router.Context, user *User) (string, error) {
	if user == nil {
		return "", ErrUserNotFound
	}

	token, err := rc.tokens.Issue(user.ID.String())
	if err != nil {
		return "", err
	}

	rc.setCookieToken(c, token, rc.cookieDuration)
	return token, nil
}

// ClearSession expires every configured session cookie. Explicit sign-out is
// the only path that invalidates a session before its expiry.
func (rc *RequestContext) ClearSession(c router.Context) {
	for _, name := range rc.cookieNames {
		rc.cookieDel(c, name)
	}
	if rc.fallbackCookie != "" {
		rc.cookieDel(c, rc.fallbackCookie)
	}
}

func (rc *RequestContext) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     rc.cookieNames[0],
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (rc *RequestContext) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}
