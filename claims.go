package identity

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// ProviderType identifies the auth method that produced a claim
type ProviderType string

const (
	// ProviderSessionDB is the cookie-based database-session provider
	ProviderSessionDB ProviderType = "session-db"
	// ProviderJWTCredential is a third-party JWT credential
	ProviderJWTCredential ProviderType = "jwt-credential"
	// ProviderCustodialWallet is the custodial wallet-auth service
	ProviderCustodialWallet ProviderType = "custodial-wallet"
	// ProviderSIWE is a raw Ethereum signature (Sign-In with Ethereum)
	ProviderSIWE ProviderType = "siwe"
	// ProviderMagicLink is the magic-link email service
	ProviderMagicLink ProviderType = "magic-link"
)

var walletAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ProviderClaim is the provider-scoped identity assertion produced by a
// CredentialVerifier. It lives for a single resolution call and is never
// persisted as-is; the subject ID is the provider's identifier, not ours.
type ProviderClaim struct {
	Provider      ProviderType   `json:"provider"`
	SubjectID     string         `json:"subject_id"`
	Email         string         `json:"email,omitempty"`
	WalletAddress string         `json:"wallet_address,omitempty"`
	DisplayName   string         `json:"display_name,omitempty"`
	AvatarURL     string         `json:"avatar_url,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Validate enforces the claim edge policy: well-formed fields and at least
// one linkable identity field (email or wallet address).
func (c *ProviderClaim) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required),
		validation.Field(&c.SubjectID, validation.Required),
		validation.Field(&c.Email, is.Email),
		validation.Field(&c.WalletAddress, validation.Match(walletAddressPattern)),
	)
	if err != nil {
		return WrapInvalidCredential(err, c.Provider)
	}

	if c.Email == "" && c.WalletAddress == "" {
		return ErrUnlinkableClaim
	}

	return nil
}

// Normalize folds email and wallet address into their canonical casing.
// Lookup and linking always operate on normalized values.
func (c *ProviderClaim) Normalize() *ProviderClaim {
	c.Email = NormalizeEmail(c.Email)
	c.WalletAddress = NormalizeWalletAddress(c.WalletAddress)
	return c
}
