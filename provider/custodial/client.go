package custodial

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-identity"
)

// Config holds settings for the custodial wallet verification service.
type Config struct {
	// BaseURL is the wallet service origin, e.g. "https://wallet.internal".
	BaseURL string

	// VerifyPath is the token introspection endpoint.
	// Default: "/v1/auth/verify".
	VerifyPath string

	// APIKey authenticates this service to the wallet backend.
	APIKey string

	// Timeout bounds each introspection call. Default: 5 seconds.
	Timeout time.Duration

	// HTTPClient overrides the default client; mainly for tests.
	HTTPClient *http.Client
}

// Verifier checks custodial session tokens against the wallet service and
// maps the response to a provider claim.
type Verifier struct {
	cfg    Config
	client *http.Client
	url    string
}

var _ identity.CredentialVerifier = (*Verifier)(nil)

// introspection is the wallet service's verify response shape.
type introspection struct {
	Active        bool   `json:"active"`
	SubjectID     string `json:"subject_id"`
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url"`
}

func New(cfg Config) (*Verifier, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("custodial: BaseURL is required")
	}

	path := cfg.VerifyPath
	if path == "" {
		path = "/v1/auth/verify"
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Verifier{
		cfg:    cfg,
		client: client,
		url:    strings.TrimRight(cfg.BaseURL, "/") + path,
	}, nil
}

func (v *Verifier) Provider() identity.ProviderType {
	return identity.ProviderCustodialWallet
}

// Verify introspects the raw token with the wallet service. Any failure,
// transport included, maps to invalid-credential: an unreachable wallet
// backend must not grant access, and must not block the other auth paths.
func (v *Verifier) Verify(ctx context.Context, raw string) (*identity.ProviderClaim, error) {
	if raw == "" {
		return nil, identity.ErrInvalidCredential
	}

	body := strings.NewReader(fmt.Sprintf(`{"token":%q}`, raw))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, body)
	if err != nil {
		return nil, identity.WrapInvalidCredential(err, identity.ProviderCustodialWallet)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", v.cfg.APIKey)
	}

	res, err := v.client.Do(req)
	if err != nil {
		return nil, identity.WrapInvalidCredential(err, identity.ProviderCustodialWallet)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, identity.WrapInvalidCredential(
			fmt.Errorf("wallet service returned %d", res.StatusCode),
			identity.ProviderCustodialWallet,
		)
	}

	var payload introspection
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, identity.WrapInvalidCredential(err, identity.ProviderCustodialWallet)
	}

	if !payload.Active || payload.SubjectID == "" {
		return nil, identity.ErrInvalidCredential
	}

	claim := &identity.ProviderClaim{
		Provider:      identity.ProviderCustodialWallet,
		SubjectID:     payload.SubjectID,
		Email:         payload.Email,
		WalletAddress: payload.WalletAddress,
		DisplayName:   payload.DisplayName,
		AvatarURL:     payload.AvatarURL,
	}

	claim.Normalize()
	if err := claim.Validate(); err != nil {
		return nil, err
	}

	return claim, nil
}
