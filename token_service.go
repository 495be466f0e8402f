package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultSessionDuration is how long an issued session artifact stays valid.
const DefaultSessionDuration = 30 * 24 * time.Hour

// SessionClaims is the claim set embedded in session artifacts. The role is
// deliberately absent: it is re-derived through the RoleResolver on every
// read so role changes take effect on the next request.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID string `json:"uid,omitempty"`
}

// UserID returns the subject user ID.
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// TokenService issues and reads signed session artifacts. The same claim
// shape is used for cookies and bearer tokens for interoperability.
type TokenService interface {
	Issue(userID string) (string, error)
	SignClaims(claims *SessionClaims) (string, error)
	Validate(tokenString string) (*SessionClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey      []byte
	sessionDuration time.Duration
	issuer          string
	audience        jwt.ClaimStrings
	logger          Logger
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, sessionDuration time.Duration, issuer string, audience jwt.ClaimStrings, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	if sessionDuration <= 0 {
		sessionDuration = DefaultSessionDuration
	}
	return &TokenServiceImpl{
		signingKey:      signingKey,
		sessionDuration: sessionDuration,
		issuer:          issuer,
		audience:        audience,
		logger:          logger,
	}
}

// Issue creates a signed session artifact embedding the user ID and expiry.
// The caller sets it as an HTTP-only, Secure, SameSite=Lax cookie or returns
// it as a bearer token.
func (ts *TokenServiceImpl) Issue(userID string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   userID,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.sessionDuration)),
		},
		UID: userID,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary session claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session token")
	}

	return signedString, nil
}

// Validate parses and validates a session artifact. Expired or tampered
// tokens come back as ErrInvalidSession; callers treat that identically to
// "no session provided" and fall through to re-authentication.
func (ts *TokenServiceImpl) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		clone := ErrInvalidSession.Clone()
		if clone == nil {
			return nil, ErrInvalidSession
		}
		clone.Source = err
		return nil, clone.WithMetadata(map[string]any{
			"cause": err.Error(),
		})
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrInvalidSession
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
