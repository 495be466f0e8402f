package identity_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=private")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, model := range []any{
		(*identity.User)(nil),
		(*identity.RoleRecord)(nil),
		(*identity.RoleAssignment)(nil),
		(*identity.Nonce)(nil),
	} {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}

	return db
}

func TestUsersRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repos := identity.NewRepositoryManager(db)
	users := repos.Users()

	t.Run("create applies defaults and normalization", func(t *testing.T) {
		created, err := users.CreateUser(ctx, &identity.User{
			Email: "Ada@Example.COM",
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, "ada@example.com", created.Email)
		assert.Equal(t, identity.RoleUser, created.Role)
	})

	t.Run("lookups are case insensitive", func(t *testing.T) {
		address := "0x52908400098527886e0f7030069857d2e4169ee7"
		created, err := users.CreateUser(ctx, &identity.User{
			Email:         "grace@example.com",
			WalletAddress: address,
		})
		require.NoError(t, err)

		byEmail, err := users.GetByEmail(ctx, "GRACE@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)

		byWallet, err := users.GetByWalletAddress(ctx, "0x52908400098527886E0F7030069857D2E4169EE7")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byWallet.ID)

		byID, err := users.GetByUserID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "grace@example.com", byID.Email)
	})

	t.Run("update persists merged fields", func(t *testing.T) {
		created, err := users.CreateUser(ctx, &identity.User{
			Email: "joan@example.com",
		})
		require.NoError(t, err)

		created.DisplayName = "Joan"
		updated, err := users.UpdateUser(ctx, created)
		require.NoError(t, err)
		assert.Equal(t, "Joan", updated.DisplayName)

		found, err := users.GetByEmail(ctx, "joan@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Joan", found.DisplayName)
	})
}

func TestRoleAssignmentsRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repos := identity.NewRepositoryManager(db)

	user, err := repos.Users().CreateUser(ctx, &identity.User{Email: "ada@example.com"})
	require.NoError(t, err)

	assignments := repos.RoleAssignments()

	t.Run("assign and read back", func(t *testing.T) {
		require.NoError(t, assignments.Assign(ctx, user.ID, "premium"))
		require.NoError(t, assignments.Assign(ctx, user.ID, "subscriber"))

		names, err := assignments.FindRoleNames(ctx, user.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"premium", "subscriber"}, names)
	})

	t.Run("role resolver picks the highest", func(t *testing.T) {
		resolver := identity.NewRoleResolver(assignments)
		role, err := resolver.RoleFor(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, identity.RolePremium, role)
	})

	t.Run("unknown role name rejected", func(t *testing.T) {
		err := assignments.Assign(ctx, user.ID, "wizard")
		require.Error(t, err)
	})

	t.Run("remove all", func(t *testing.T) {
		require.NoError(t, assignments.RemoveAll(ctx, user.ID))

		names, err := assignments.FindRoleNames(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, names)
	})
}

func TestNoncesRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	nonces := identity.NewRepositoryManager(db).Nonces()

	subject := "0x52908400098527886e0f7030069857d2e4169ee7"

	t.Run("issue and consume once", func(t *testing.T) {
		issued, err := nonces.Issue(ctx, identity.NoncePurposeSIWE, subject, "nonce-1", time.Minute)
		require.NoError(t, err)
		assert.False(t, issued.Expired(time.Now()))

		consumed, err := nonces.Consume(ctx, identity.NoncePurposeSIWE, subject, "nonce-1")
		require.NoError(t, err)
		require.NotNil(t, consumed.ConsumedAt)

		// replay fails
		_, err = nonces.Consume(ctx, identity.NoncePurposeSIWE, subject, "nonce-1")
		require.Error(t, err)
		assert.True(t, identity.IsInvalidCredential(err))
	})

	t.Run("unknown nonce", func(t *testing.T) {
		_, err := nonces.Consume(ctx, identity.NoncePurposeSIWE, subject, "never-issued")
		require.Error(t, err)
		assert.True(t, identity.IsInvalidCredential(err))
	})

	t.Run("expired nonce cannot be consumed", func(t *testing.T) {
		_, err := nonces.Issue(ctx, identity.NoncePurposeSIWE, subject, "nonce-exp", -time.Minute)
		require.NoError(t, err)

		_, err = nonces.Consume(ctx, identity.NoncePurposeSIWE, subject, "nonce-exp")
		require.Error(t, err)
	})

	t.Run("active returns newest unconsumed", func(t *testing.T) {
		email := "ada@example.com"
		_, err := nonces.Issue(ctx, identity.NoncePurposeMagicLink, email, "hash-1", time.Minute)
		require.NoError(t, err)

		active, err := nonces.Active(ctx, identity.NoncePurposeMagicLink, email)
		require.NoError(t, err)
		assert.Equal(t, "hash-1", active.Value)

		_, err = nonces.Consume(ctx, identity.NoncePurposeMagicLink, email, "hash-1")
		require.NoError(t, err)

		_, err = nonces.Active(ctx, identity.NoncePurposeMagicLink, email)
		require.Error(t, err)
		assert.True(t, identity.IsInvalidCredential(err))
	})

	t.Run("purge expired", func(t *testing.T) {
		_, err := nonces.Issue(ctx, identity.NoncePurposeSIWE, subject, "nonce-old", -time.Hour)
		require.NoError(t, err)

		purged, err := nonces.PurgeExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, purged, int64(1))
	})
}

func TestRepositoryManagerValidate(t *testing.T) {
	db := setupTestDB(t)
	repos := identity.NewRepositoryManager(db)
	assert.NoError(t, repos.Validate())
}
