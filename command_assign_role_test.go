package identity_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignRoleHandler(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (identity.RepositoryManager, *identity.User) {
		t.Helper()
		db := setupTestDB(t)
		repos := identity.NewRepositoryManager(db)

		user, err := repos.Users().CreateUser(ctx, &identity.User{Email: "ada@example.com"})
		require.NoError(t, err)
		return repos, user
	}

	t.Run("assigns role and promotes denormalized column", func(t *testing.T) {
		repos, user := setup(t)
		handler := identity.NewAssignRoleHandler(repos)

		err := handler.Execute(ctx, identity.AssignRoleMessage{
			UserID:  user.ID.String(),
			Role:    "premium",
			ActorID: uuid.New().String(),
		})
		require.NoError(t, err)

		names, err := repos.RoleAssignments().FindRoleNames(ctx, user.ID)
		require.NoError(t, err)
		assert.Contains(t, names, "premium")

		updated, err := repos.Users().GetByUserID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, identity.RolePremium, updated.Role)
	})

	t.Run("denormalized column never demotes", func(t *testing.T) {
		repos, user := setup(t)
		handler := identity.NewAssignRoleHandler(repos)

		require.NoError(t, handler.Execute(ctx, identity.AssignRoleMessage{
			UserID: user.ID.String(), Role: "sponsor", ActorID: uuid.New().String(),
		}))
		require.NoError(t, handler.Execute(ctx, identity.AssignRoleMessage{
			UserID: user.ID.String(), Role: "subscriber", ActorID: uuid.New().String(),
		}))

		updated, err := repos.Users().GetByUserID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, identity.RoleSponsor, updated.Role)
	})

	t.Run("role names normalize before writing", func(t *testing.T) {
		repos, user := setup(t)
		handler := identity.NewAssignRoleHandler(repos)

		err := handler.Execute(ctx, identity.AssignRoleMessage{
			UserID: user.ID.String(), Role: "  ADMIN ", ActorID: uuid.New().String(),
		})
		require.NoError(t, err)

		names, err := repos.RoleAssignments().FindRoleNames(ctx, user.ID)
		require.NoError(t, err)
		assert.Contains(t, names, "admin")
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		repos, user := setup(t)
		handler := identity.NewAssignRoleHandler(repos)

		err := handler.Execute(ctx, identity.AssignRoleMessage{
			UserID: user.ID.String(), Role: "wizard", ActorID: uuid.New().String(),
		})
		require.Error(t, err)
	})

	t.Run("unknown user rejected", func(t *testing.T) {
		repos, _ := setup(t)
		handler := identity.NewAssignRoleHandler(repos)

		err := handler.Execute(ctx, identity.AssignRoleMessage{
			UserID: uuid.New().String(), Role: "premium", ActorID: uuid.New().String(),
		})
		require.Error(t, err)
	})

	t.Run("admins cannot demote themselves", func(t *testing.T) {
		repos, user := setup(t)
		handler := identity.NewAssignRoleHandler(repos)

		require.NoError(t, handler.Execute(ctx, identity.AssignRoleMessage{
			UserID: user.ID.String(), Role: "admin", ActorID: uuid.New().String(),
		}))

		err := handler.Execute(ctx, identity.AssignRoleMessage{
			UserID:  user.ID.String(),
			Role:    "user",
			ActorID: user.ID.String(),
		})
		require.Error(t, err)

		// an admin promoting themself further up is not a demotion
		err = handler.Execute(ctx, identity.AssignRoleMessage{
			UserID:  user.ID.String(),
			Role:    "admin",
			ActorID: user.ID.String(),
		})
		require.NoError(t, err)
	})

	t.Run("message type", func(t *testing.T) {
		assert.Equal(t, "user.assign_role", identity.AssignRoleMessage{}.Type())
	})
}
