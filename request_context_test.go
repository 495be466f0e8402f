package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory RequestSource
type fakeSource struct {
	cookies map[string]string
	header  string
}

func (f fakeSource) Cookie(name string) string {
	return f.cookies[name]
}

func (f fakeSource) AuthorizationHeader() string {
	return f.header
}

type requestContextFixture struct {
	userID   uuid.UUID
	user     *identity.User
	users    *MockUserStore
	roles    *MockRoleStore
	tokens   identity.TokenService
	requests *identity.RequestContext
}

func newRequestContextFixture(t *testing.T, opts ...identity.RequestContextOption) *requestContextFixture {
	t.Helper()

	userID := uuid.New()
	user := &identity.User{
		ID:    userID,
		Email: "ada@example.com",
		Role:  identity.RoleUser,
	}

	users := &MockUserStore{}
	roles := &MockRoleStore{}
	tokens := newTokenService(time.Hour)

	resolver := identity.NewResolver(users).WithLogger(noopLogger{})
	roleResolver := identity.NewRoleResolver(roles).WithLogger(noopLogger{})

	opts = append([]identity.RequestContextOption{
		identity.WithRequestLogger(noopLogger{}),
	}, opts...)

	return &requestContextFixture{
		userID:   userID,
		user:     user,
		users:    users,
		roles:    roles,
		tokens:   tokens,
		requests: identity.NewRequestContext(tokens, users, roleResolver, resolver, opts...),
	}
}

func TestRequestContext_SessionCookiePath(t *testing.T) {
	ctx := context.Background()

	t.Run("valid session cookie resolves user and role", func(t *testing.T) {
		fix := newRequestContextFixture(t)
		fix.users.On("GetByUserID", ctx, fix.userID).Return(fix.user, nil)
		fix.roles.On("FindRoleNames", ctx, fix.userID).Return([]string{"premium"}, nil)

		token, err := fix.tokens.Issue(fix.userID.String())
		require.NoError(t, err)

		auth, err := fix.requests.ResolveRequest(ctx, fakeSource{
			cookies: map[string]string{identity.DefaultSessionCookie: token},
		})
		require.NoError(t, err)
		require.False(t, auth.Anonymous())
		assert.Equal(t, fix.userID, auth.User.ID)
		assert.Equal(t, identity.RolePremium, auth.Role)
		require.NotNil(t, auth.Session)
		assert.Equal(t, fix.userID.String(), auth.Session.GetUserID())
	})

	t.Run("expired cookie yields anonymous", func(t *testing.T) {
		fix := newRequestContextFixture(t)

		expired := identity.NewTokenService(
			[]byte("test-signing-key"),
			time.Millisecond,
			"test-issuer",
			jwt.ClaimStrings{"test-audience"},
			noopLogger{},
		)
		token, err := expired.Issue(fix.userID.String())
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		auth, err := fix.requests.ResolveRequest(ctx, fakeSource{
			cookies: map[string]string{identity.DefaultSessionCookie: token},
		})
		require.NoError(t, err)
		assert.True(t, auth.Anonymous())
	})

	t.Run("cookie for deleted user yields anonymous", func(t *testing.T) {
		fix := newRequestContextFixture(t)
		fix.users.On("GetByUserID", ctx, fix.userID).
			Return(nil, goerrors.New("gone", goerrors.CategoryNotFound).WithCode(goerrors.CodeNotFound))

		token, err := fix.tokens.Issue(fix.userID.String())
		require.NoError(t, err)

		auth, err := fix.requests.ResolveRequest(ctx, fakeSource{
			cookies: map[string]string{identity.DefaultSessionCookie: token},
		})
		require.NoError(t, err)
		assert.True(t, auth.Anonymous())
	})

	t.Run("first valid cookie name wins", func(t *testing.T) {
		fix := newRequestContextFixture(t, identity.WithSessionCookieNames("legacy_session", "session"))
		fix.users.On("GetByUserID", ctx, fix.userID).Return(fix.user, nil)
		fix.roles.On("FindRoleNames", ctx, fix.userID).Return([]string{}, nil)

		token, err := fix.tokens.Issue(fix.userID.String())
		require.NoError(t, err)

		auth, err := fix.requests.ResolveRequest(ctx, fakeSource{
			cookies: map[string]string{
				"legacy_session": "garbage",
				"session":        token,
			},
		})
		require.NoError(t, err)
		assert.False(t, auth.Anonymous())
	})

	t.Run("store outage propagates instead of anonymous", func(t *testing.T) {
		fix := newRequestContextFixture(t)
		fix.users.On("GetByUserID", ctx, fix.userID).Return(nil, errors.New("connection refused"))

		token, err := fix.tokens.Issue(fix.userID.String())
		require.NoError(t, err)

		_, err = fix.requests.ResolveRequest(ctx, fakeSource{
			cookies: map[string]string{identity.DefaultSessionCookie: token},
		})
		require.Error(t, err)
		assert.True(t, identity.IsStoreUnavailable(err))
	})

	t.Run("role outage propagates", func(t *testing.T) {
		fix := newRequestContextFixture(t)
		fix.users.On("GetByUserID", ctx, fix.userID).Return(fix.user, nil)
		fix.roles.On("FindRoleNames", ctx, fix.userID).Return(nil, errors.New("connection refused"))

		token, err := fix.tokens.Issue(fix.userID.String())
		require.NoError(t, err)

		_, err = fix.requests.ResolveRequest(ctx, fakeSource{
			cookies: map[string]string{identity.DefaultSessionCookie: token},
		})
		require.Error(t, err)
		assert.True(t, identity.IsStoreUnavailable(err))
	})
}

func TestRequestContext_BearerPath(t *testing.T) {
	ctx := context.Background()

	claim := &identity.ProviderClaim{
		Provider:  identity.ProviderJWTCredential,
		SubjectID: "ext-1",
		Email:     "ada@example.com",
	}

	t.Run("bearer credential resolves through linking", func(t *testing.T) {
		fix := newRequestContextFixture(t,
			identity.WithBearerVerifier(staticVerifier{provider: identity.ProviderJWTCredential, claim: claim}),
		)

		fix.users.On("GetByEmail", ctx, "ada@example.com").Return(fix.user, nil)
		fix.roles.On("FindRoleNames", ctx, fix.userID).Return([]string{"sponsor"}, nil)

		auth, err := fix.requests.ResolveRequest(ctx, fakeSource{
			header: "Bearer some-external-token",
		})
		require.NoError(t, err)
		require.False(t, auth.Anonymous())
		assert.Equal(t, identity.RoleSponsor, auth.Role)
		require.NotNil(t, auth.Claim)
		assert.Equal(t, identity.ProviderJWTCredential, auth.Claim.Provider)
	})

	t.Run("scheme is case insensitive", func(t *testing.T) {
		fix := newRequestContextFixture(t,
			identity.WithBearerVerifier(staticVerifier{provider: identity.ProviderJWTCredential, claim: claim}),
		)
		fix.users.On("GetByEmail", ctx, "ada@example.com").Return(fix.user, nil)
		fix.roles.On("FindRoleNames", ctx, fix.userID).Return([]string{}, nil)

		auth, err := fix.requests.ResolveRequest(ctx, fakeSource{
			header: "bearer some-external-token",
		})
		require.NoError(t, err)
		assert.False(t, auth.Anonymous())
	})

	t.Run("invalid bearer falls through to anonymous", func(t *testing.T) {
		fix := newRequestContextFixture(t,
			identity.WithBearerVerifier(staticVerifier{provider: identity.ProviderJWTCredential, err: identity.ErrInvalidCredential}),
		)

		auth, err := fix.requests.ResolveRequest(ctx, fakeSource{
			header: "Bearer bad-token",
		})
		require.NoError(t, err)
		assert.True(t, auth.Anonymous())
	})

	t.Run("no verifier configured ignores header", func(t *testing.T) {
		fix := newRequestContextFixture(t)

		auth, err := fix.requests.ResolveRequest(ctx, fakeSource{
			header: "Bearer some-token",
		})
		require.NoError(t, err)
		assert.True(t, auth.Anonymous())
	})
}

func TestRequestContext_FallbackCookiePath(t *testing.T) {
	ctx := context.Background()

	claim := &identity.ProviderClaim{
		Provider:      identity.ProviderCustodialWallet,
		SubjectID:     "wallet-7",
		WalletAddress: "0x52908400098527886e0f7030069857d2e4169ee7",
	}

	t.Run("fallback cookie resolves through the wallet verifier", func(t *testing.T) {
		fix := newRequestContextFixture(t,
			identity.WithFallbackCookie("wallet_session",
				staticVerifier{provider: identity.ProviderCustodialWallet, claim: claim}),
		)

		fix.users.On("GetByWalletAddress", ctx, claim.WalletAddress).Return(fix.user, nil)
		fix.roles.On("FindRoleNames", ctx, fix.userID).Return([]string{}, nil)

		auth, err := fix.requests.ResolveRequest(ctx, fakeSource{
			cookies: map[string]string{"wallet_session": "custodial-token"},
		})
		require.NoError(t, err)
		assert.False(t, auth.Anonymous())
		assert.Equal(t, identity.RoleUser, auth.Role)
	})

	t.Run("session cookie beats fallback cookie", func(t *testing.T) {
		fix := newRequestContextFixture(t,
			identity.WithFallbackCookie("wallet_session",
				staticVerifier{provider: identity.ProviderCustodialWallet, err: identity.ErrInvalidCredential}),
		)
		fix.users.On("GetByUserID", ctx, fix.userID).Return(fix.user, nil)
		fix.roles.On("FindRoleNames", ctx, fix.userID).Return([]string{}, nil)

		token, err := fix.tokens.Issue(fix.userID.String())
		require.NoError(t, err)

		auth, err := fix.requests.ResolveRequest(ctx, fakeSource{
			cookies: map[string]string{
				identity.DefaultSessionCookie: token,
				"wallet_session":              "whatever",
			},
		})
		require.NoError(t, err)
		assert.False(t, auth.Anonymous())
		// the session path resolved it, so there is no provider claim
		assert.Nil(t, auth.Claim)
	})

	t.Run("nothing presented yields anonymous", func(t *testing.T) {
		fix := newRequestContextFixture(t)

		auth, err := fix.requests.ResolveRequest(ctx, fakeSource{})
		require.NoError(t, err)
		assert.True(t, auth.Anonymous())
		assert.False(t, auth.HasAccess(identity.RoleUser))
	})
}

type staticConfig struct {
	signingKey  string
	duration    time.Duration
	issuer      string
	audience    []string
	cookieNames []string
}

func (c staticConfig) GetSigningKey() string             { return c.signingKey }
func (c staticConfig) GetSessionDuration() time.Duration { return c.duration }
func (c staticConfig) GetIssuer() string                 { return c.issuer }
func (c staticConfig) GetAudience() []string             { return c.audience }
func (c staticConfig) GetContextKey() string             { return "auth" }
func (c staticConfig) GetAuthScheme() string             { return "Bearer" }
func (c staticConfig) GetSessionCookieNames() []string   { return c.cookieNames }
func (c staticConfig) GetFallbackCookieName() string     { return "" }

func TestNewRequestContextFromConfig(t *testing.T) {
	ctx := context.Background()

	userID := uuid.New()
	users := &MockUserStore{}
	roles := &MockRoleStore{}
	users.On("GetByUserID", ctx, userID).Return(&identity.User{ID: userID, Email: "ada@example.com"}, nil)
	roles.On("FindRoleNames", ctx, userID).Return([]string{"subscriber"}, nil)

	requests := identity.NewRequestContextFromConfig(
		staticConfig{
			signingKey:  "config-signing-key",
			duration:    time.Hour,
			issuer:      "config-issuer",
			audience:    []string{"config-audience"},
			cookieNames: []string{"app_session"},
		},
		users,
		identity.NewRoleResolver(roles).WithLogger(noopLogger{}),
		identity.NewResolver(users).WithLogger(noopLogger{}),
		identity.WithRequestLogger(noopLogger{}),
	)

	assert.Equal(t, []string{"app_session"}, requests.SessionCookieNames())
	assert.Equal(t, time.Hour, requests.CookieDuration())

	token, err := requests.Tokens().Issue(userID.String())
	require.NoError(t, err)

	auth, err := requests.ResolveRequest(ctx, fakeSource{
		cookies: map[string]string{"app_session": token},
	})
	require.NoError(t, err)
	require.False(t, auth.Anonymous())
	assert.Equal(t, identity.RoleSubscriber, auth.Role)
	assert.Equal(t, "config-issuer", auth.Session.GetIssuer())
}
