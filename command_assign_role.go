package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AssignRoleMessage struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	// ActorID identifies who requested the change; used to block
	// admins from demoting themselves.
	ActorID string `json:"actor_id"`
}

func (e AssignRoleMessage) Type() string { return "user.assign_role" }

type AssignRoleHandler struct {
	repo RepositoryManager
}

func NewAssignRoleHandler(repo RepositoryManager) *AssignRoleHandler {
	return &AssignRoleHandler{repo: repo}
}

func (h *AssignRoleHandler) Execute(ctx context.Context, event AssignRoleMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during role assignment",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AssignRoleHandler) execute(ctx context.Context, event AssignRoleMessage) error {
	role, ok := NormalizeRole(event.Role)
	if !ok {
		return ErrInvalidRoleName(event.Role)
	}

	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid user id").
			WithCode(goerrors.CodeBadRequest)
	}

	if event.ActorID == event.UserID && RoleRank(role) < RoleRank(RoleAdmin) {
		// An admin removing their own admin role could lock everyone out.
		current, cerr := h.repo.RoleAssignments().FindRoleNames(ctx, userID)
		if cerr != nil {
			return WrapStoreUnavailable(cerr)
		}
		for _, name := range current {
			if existing, ok := NormalizeRole(name); ok && existing == RoleAdmin {
				return goerrors.New("admins cannot demote themselves", goerrors.CategoryValidation).
					WithTextCode("SELF_DEMOTION").
					WithCode(goerrors.CodeBadRequest)
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, gerr := h.repo.Users().GetByUserIDTx(ctx, tx, userID); gerr != nil {
			if goerrors.IsNotFound(gerr) {
				return ErrUserNotFound
			}
			return WrapStoreUnavailable(gerr)
		}

		if aerr := h.repo.RoleAssignments().AssignTx(ctx, tx, userID, string(role)); aerr != nil {
			return aerr
		}

		user, gerr := h.repo.Users().GetByUserIDTx(ctx, tx, userID)
		if gerr != nil {
			return WrapStoreUnavailable(gerr)
		}

		// Keep the denormalized column in step with assignments so the
		// steady-state read path stays a single lookup.
		if RoleRank(role) > RoleRank(user.Role) {
			user.Role = role
			if _, uerr := h.repo.Users().UpdateUserTx(ctx, tx, user); uerr != nil {
				return WrapStoreUnavailable(uerr)
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "role assignment transaction failed")
	}

	return nil
}
