package magiclink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/goliatone/go-identity"
)

// DefaultTokenTTL bounds how long an emailed link stays usable.
const DefaultTokenTTL = 15 * time.Minute

// Credential is the wire shape carried by the link the user clicks:
// the email that requested it and the one-time token.
type Credential struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// Provider issues and verifies one-time email login tokens. Only a bcrypt
// hash of the token is stored; the cleartext exists in the emailed link and
// nowhere else.
type Provider struct {
	nonces   identity.NonceStore
	tokenTTL time.Duration
	logger   identity.Logger
}

var _ identity.CredentialVerifier = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithTokenTTL overrides the link lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.tokenTTL = ttl
		}
	}
}

func New(nonces identity.NonceStore, opts ...Option) *Provider {
	p := &Provider{
		nonces:   nonces,
		tokenTTL: DefaultTokenTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Provider) Provider() identity.ProviderType {
	return identity.ProviderMagicLink
}

// IssueToken mints a one-time token for the email and returns the cleartext
// for the caller to embed in the emailed link. A fresh request supersedes
// any earlier unconsumed token for the same address.
func (p *Provider) IssueToken(ctx context.Context, email string) (string, error) {
	normalized := identity.NormalizeEmail(email)
	if normalized == "" {
		return "", identity.ErrInvalidCredential
	}

	token := identity.NewOpaqueToken()
	hash, err := identity.HashToken(token)
	if err != nil {
		return "", err
	}

	if _, err := p.nonces.Issue(ctx, identity.NoncePurposeMagicLink, normalized, hash, p.tokenTTL); err != nil {
		return "", identity.WrapStoreUnavailable(err)
	}

	return token, nil
}

// Verify checks the credential against the stored hash and consumes it.
// A second click on the same link fails with a consumed-nonce error.
func (p *Provider) Verify(ctx context.Context, raw string) (*identity.ProviderClaim, error) {
	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return nil, identity.WrapInvalidCredential(err, identity.ProviderMagicLink)
	}

	email := identity.NormalizeEmail(cred.Email)
	if email == "" || cred.Token == "" {
		return nil, identity.ErrInvalidCredential
	}

	nonce, err := p.nonces.Active(ctx, identity.NoncePurposeMagicLink, email)
	if err != nil {
		return nil, err
	}

	if err := identity.CompareTokenAndHash(cred.Token, nonce.Value); err != nil {
		return nil, err
	}

	if _, err := p.nonces.Consume(ctx, identity.NoncePurposeMagicLink, email, nonce.Value); err != nil {
		return nil, err
	}

	claim := &identity.ProviderClaim{
		Provider:  identity.ProviderMagicLink,
		SubjectID: email,
		Email:     email,
	}

	claim.Normalize()
	if err := claim.Validate(); err != nil {
		return nil, err
	}

	return claim, nil
}
