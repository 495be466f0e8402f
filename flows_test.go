package identity_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/provider/magiclink"
	"github.com/goliatone/go-identity/provider/siwe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type fixedAddressSignature struct {
	address string
}

func (f fixedAddressSignature) RecoverAddress(message, signature string) (string, error) {
	return f.address, nil
}

func walletSignInCredential(t *testing.T, address, nonce string) string {
	t.Helper()

	message := fmt.Sprintf(
		"example.com wants you to sign in with your Ethereum account:\n%s\n\nURI: https://example.com\nVersion: 1\nChain ID: 1\nNonce: %s\nIssued At: %s",
		address, nonce, time.Now().UTC().Format(time.RFC3339),
	)
	raw, err := json.Marshal(siwe.Credential{Message: message, Signature: "0xsigned"})
	require.NoError(t, err)
	return string(raw)
}

// Covers the long path: a wallet-only signup, a later email link onto the
// same user, and a session round trip that re-derives the assigned role.
func TestWalletSignupThenEmailLinking(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repos := identity.NewRepositoryManager(db)

	resolver := identity.NewResolver(repos.Users()).WithLogger(noopLogger{})
	roles := identity.NewRoleResolver(repos.RoleAssignments()).WithLogger(noopLogger{})
	tokens := newTokenService(time.Hour)
	requests := identity.NewRequestContext(tokens, repos.Users(), roles, resolver,
		identity.WithRequestLogger(noopLogger{}),
	)

	address := "0x52908400098527886E0F7030069857D2E4169EE7"
	wallets := siwe.New(fixedAddressSignature{address: address}, repos.Nonces())

	// wallet-only signup
	nonce, err := wallets.IssueNonce(ctx, address)
	require.NoError(t, err)

	auth, err := requests.ResolveCredential(ctx, wallets, walletSignInCredential(t, address, nonce.Value))
	require.NoError(t, err)
	require.False(t, auth.Anonymous())
	walletUser := auth.User
	assert.Empty(t, walletUser.Email)
	assert.Equal(t, "0x52908400098527886e0f7030069857d2e4169ee7", walletUser.WalletAddress)
	assert.Equal(t, identity.RoleUser, auth.Role)

	// a later claim carrying both identifiers links the email to the same user
	linked, err := resolver.Resolve(ctx, &identity.ProviderClaim{
		Provider:      identity.ProviderJWTCredential,
		SubjectID:     "idp|ada",
		Email:         "ada@example.com",
		WalletAddress: address,
	})
	require.NoError(t, err)
	assert.Equal(t, walletUser.ID, linked.ID)
	assert.Equal(t, "ada@example.com", linked.Email)

	// the email flow now lands on the linked user
	links := magiclink.New(repos.Nonces())
	token, err := links.IssueToken(ctx, "ada@example.com")
	require.NoError(t, err)

	credential, err := json.Marshal(magiclink.Credential{Email: "ada@example.com", Token: token})
	require.NoError(t, err)

	auth, err = requests.ResolveCredential(ctx, links, string(credential))
	require.NoError(t, err)
	assert.Equal(t, walletUser.ID, auth.User.ID)

	// assigned role is re-derived on the session path, never read from the token
	require.NoError(t, repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repos.RoleAssignments().AssignTx(ctx, tx, walletUser.ID, identity.RolePremium)
	}))

	session, err := tokens.Issue(walletUser.ID.String())
	require.NoError(t, err)

	restored, err := requests.ResolveToken(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, walletUser.ID, restored.User.ID)
	assert.Equal(t, identity.RolePremium, restored.Role)
}
