package siwe

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity"
)

var ErrMalformedMessage = goerrors.New("malformed sign-in message", goerrors.CategoryBadInput).
	WithTextCode("MALFORMED_MESSAGE").
	WithCode(goerrors.CodeBadRequest)

// SignatureVerifier recovers the signing address from a message and its
// signature. Implementations wrap whatever EC recovery library the host
// application already carries; this package stays free of chain deps.
type SignatureVerifier interface {
	RecoverAddress(message, signature string) (string, error)
}

// Credential is the wire shape a client submits: the exact message text it
// signed plus the hex signature.
type Credential struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// Verifier checks wallet-signature credentials. Every verification consumes
// a previously issued nonce, so a captured credential cannot be replayed.
type Verifier struct {
	signatures SignatureVerifier
	nonces     identity.NonceStore
	nonceTTL   time.Duration
}

var _ identity.CredentialVerifier = (*Verifier)(nil)

// DefaultNonceTTL bounds how long an issued challenge stays valid.
const DefaultNonceTTL = 5 * time.Minute

func New(signatures SignatureVerifier, nonces identity.NonceStore) *Verifier {
	return &Verifier{
		signatures: signatures,
		nonces:     nonces,
		nonceTTL:   DefaultNonceTTL,
	}
}

func (v *Verifier) Provider() identity.ProviderType {
	return identity.ProviderSIWE
}

// IssueNonce mints a challenge bound to a wallet address. The client embeds
// the returned value in the message it signs.
func (v *Verifier) IssueNonce(ctx context.Context, address string) (*identity.Nonce, error) {
	normalized := identity.NormalizeWalletAddress(address)
	if normalized == "" {
		return nil, identity.ErrInvalidCredential
	}

	return v.nonces.Issue(ctx, identity.NoncePurposeSIWE, normalized, identity.NewOpaqueToken(), v.nonceTTL)
}

// Verify parses the credential, recovers the signing address, and consumes
// the embedded nonce. The nonce is consumed before the claim is returned,
// so a concurrent replay of the same credential fails even if this call's
// caller never completes resolution.
func (v *Verifier) Verify(ctx context.Context, raw string) (*identity.ProviderClaim, error) {
	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return nil, identity.WrapInvalidCredential(err, identity.ProviderSIWE)
	}
	if cred.Message == "" || cred.Signature == "" {
		return nil, identity.ErrInvalidCredential
	}

	msg, err := ParseMessage(cred.Message)
	if err != nil {
		return nil, identity.WrapInvalidCredential(err, identity.ProviderSIWE)
	}
	if msg.Expired(time.Now()) {
		return nil, identity.ErrInvalidCredential
	}

	recovered, err := v.signatures.RecoverAddress(cred.Message, cred.Signature)
	if err != nil {
		return nil, identity.WrapInvalidCredential(err, identity.ProviderSIWE)
	}
	if !strings.EqualFold(recovered, msg.Address) {
		return nil, identity.ErrInvalidCredential
	}

	address := identity.NormalizeWalletAddress(msg.Address)
	if _, err := v.nonces.Consume(ctx, identity.NoncePurposeSIWE, address, msg.Nonce); err != nil {
		return nil, err
	}

	claim := &identity.ProviderClaim{
		Provider:      identity.ProviderSIWE,
		SubjectID:     address,
		WalletAddress: address,
	}

	claim.Normalize()
	if err := claim.Validate(); err != nil {
		return nil, err
	}

	return claim, nil
}
