package jwtcred

import (
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Config holds settings for validating third-party JWT credentials.
type Config struct {
	// SigningKey is a shared HMAC secret. Used when no JWKSetURLs are
	// configured.
	SigningKey []byte

	// JWKSetURLs are remote JWK Set endpoints. When set, key resolution
	// goes through a refreshing JWKS cache and SigningKey is ignored.
	JWKSetURLs []string

	// Issuer, when set, is enforced against the token's iss claim.
	Issuer string

	// Audience, when set, is enforced against the token's aud claim.
	Audience string

	// RefreshInterval is how often cached JWKS keys refresh.
	// Default: 1 hour.
	RefreshInterval time.Duration

	// Claim key overrides. Zero values fall back to the conventional
	// names: email, wallet_address, name, picture.
	EmailClaim   string
	WalletClaim  string
	NameClaim    string
	PictureClaim string
}

func (c Config) emailClaim() string {
	if c.EmailClaim != "" {
		return c.EmailClaim
	}
	return "email"
}

func (c Config) walletClaim() string {
	if c.WalletClaim != "" {
		return c.WalletClaim
	}
	return "wallet_address"
}

func (c Config) nameClaim() string {
	if c.NameClaim != "" {
		return c.NameClaim
	}
	return "name"
}

func (c Config) pictureClaim() string {
	if c.PictureClaim != "" {
		return c.PictureClaim
	}
	return "picture"
}

func (c Config) keyfunc() (jwt.Keyfunc, error) {
	if len(c.JWKSetURLs) == 0 {
		key := c.SigningKey
		return func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return key, nil
		}, nil
	}

	refresh := c.RefreshInterval
	if refresh <= 0 {
		refresh = time.Hour
	}

	opts := keyfunc.Options{
		RefreshInterval:   refresh,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}

	m := make(map[string]keyfunc.Options, len(c.JWKSetURLs))
	for _, url := range c.JWKSetURLs {
		m[url] = opts
	}

	multi, err := keyfunc.GetMultiple(m, keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	})
	if err != nil {
		return nil, err
	}

	return multi.Keyfunc, nil
}
