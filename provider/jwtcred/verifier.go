package jwtcred

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-identity"
)

// Verifier validates externally issued JWT credentials and maps them to
// provider claims. It never touches storage; linking happens downstream.
type Verifier struct {
	cfg     Config
	keyfunc jwt.Keyfunc
}

var _ identity.CredentialVerifier = (*Verifier)(nil)

// New builds a Verifier from cfg. JWKS-backed configs start a background
// refresh goroutine owned by the underlying key cache.
func New(cfg Config) (*Verifier, error) {
	kf, err := cfg.keyfunc()
	if err != nil {
		return nil, err
	}

	return &Verifier{
		cfg:     cfg,
		keyfunc: kf,
	}, nil
}

func (v *Verifier) Provider() identity.ProviderType {
	return identity.ProviderJWTCredential
}

// Verify parses and validates the raw token, then maps its claims. Every
// validation failure comes back as an invalid-credential error so callers
// can fall through to the next auth method.
func (v *Verifier) Verify(ctx context.Context, raw string) (*identity.ProviderClaim, error) {
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, v.keyfunc, opts...)
	if err != nil {
		return nil, identity.WrapInvalidCredential(err, identity.ProviderJWTCredential)
	}
	if !token.Valid {
		return nil, identity.ErrInvalidCredential
	}

	subject, _ := claims.GetSubject()
	if subject == "" {
		return nil, identity.ErrInvalidCredential
	}

	claim := &identity.ProviderClaim{
		Provider:      identity.ProviderJWTCredential,
		SubjectID:     subject,
		Email:         stringClaim(claims, v.cfg.emailClaim()),
		WalletAddress: stringClaim(claims, v.cfg.walletClaim()),
		DisplayName:   stringClaim(claims, v.cfg.nameClaim()),
		AvatarURL:     stringClaim(claims, v.cfg.pictureClaim()),
	}

	claim.Normalize()
	if err := claim.Validate(); err != nil {
		return nil, err
	}

	return claim, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
