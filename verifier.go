package identity

import (
	"context"
)

// VerifierFunc adapts a function into a CredentialVerifier.
type VerifierFunc struct {
	ProviderType ProviderType
	Fn           func(ctx context.Context, rawCredential string) (*ProviderClaim, error)
}

// Provider satisfies the CredentialVerifier interface.
func (f VerifierFunc) Provider() ProviderType {
	return f.ProviderType
}

// Verify satisfies the CredentialVerifier interface.
func (f VerifierFunc) Verify(ctx context.Context, rawCredential string) (*ProviderClaim, error) {
	if f.Fn == nil {
		return nil, ErrInvalidCredential
	}
	return f.Fn(ctx, rawCredential)
}

// MultiVerifier tries verifiers in a fixed order until one succeeds. Every
// InvalidCredential failure falls through to the next verifier; anything
// else (a store outage, say) stops the chain.
type MultiVerifier struct {
	verifiers []CredentialVerifier
}

// NewMultiVerifier filters nil verifiers and returns a composite verifier.
func NewMultiVerifier(verifiers ...CredentialVerifier) *MultiVerifier {
	filtered := make([]CredentialVerifier, 0, len(verifiers))
	for _, v := range verifiers {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &MultiVerifier{verifiers: filtered}
}

// Provider satisfies the CredentialVerifier interface. A composite has no
// provider of its own; the claim it returns names the one that matched.
func (m *MultiVerifier) Provider() ProviderType {
	return ""
}

// Verify satisfies the CredentialVerifier interface.
func (m *MultiVerifier) Verify(ctx context.Context, rawCredential string) (*ProviderClaim, error) {
	var lastErr error
	for _, v := range m.verifiers {
		claim, err := v.Verify(ctx, rawCredential)
		if err == nil {
			return claim, nil
		}
		if IsInvalidCredential(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrInvalidCredential
}
