package identity

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RoleAssignments reads and writes the role_assignments store. Lookups join
// through the roles table; this repo always runs on an elevated-trust
// database handle since the rows are the source of truth for authorization.
type RoleAssignments interface {
	repository.Repository[*RoleAssignment]

	FindRoleNames(ctx context.Context, userID uuid.UUID) ([]string, error)
	FindRoleNamesTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]string, error)
	Assign(ctx context.Context, userID uuid.UUID, roleName string) error
	AssignTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, roleName string) error
	RemoveAll(ctx context.Context, userID uuid.UUID) error
	RemoveAllTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
}

type roleAssignments struct {
	repository.Repository[*RoleAssignment]
	db *bun.DB
}

var (
	_ RoleAssignments = (*roleAssignments)(nil)
	_ RoleStore       = (*roleAssignments)(nil)
)

func NewRoleAssignmentsRepository(db *bun.DB) RoleAssignments {
	repo := repository.NewRepository[*RoleAssignment](db, repository.ModelHandlers[*RoleAssignment]{
		NewRecord: func() *RoleAssignment { return &RoleAssignment{} },
		GetID: func(ra *RoleAssignment) uuid.UUID {
			if ra == nil {
				return uuid.Nil
			}
			return ra.ID
		},
		SetID: func(ra *RoleAssignment, id uuid.UUID) {
			if ra != nil {
				ra.ID = id
			}
		},
	})

	return &roleAssignments{
		Repository: repo,
		db:         db,
	}
}

func (r *roleAssignments) FindRoleNames(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return r.FindRoleNamesTx(ctx, r.db, userID)
}

func (r *roleAssignments) FindRoleNamesTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]string, error) {
	var names []string
	err := tx.NewSelect().
		Model((*RoleAssignment)(nil)).
		Column("rol.name").
		Join(`JOIN "roles" AS "rol" ON "rol"."id" = "ra"."role_id"`).
		Where("?TableAlias.user_id = ?", userID).
		Scan(ctx, &names)

	if err != nil {
		return nil, err
	}

	return names, nil
}

func (r *roleAssignments) Assign(ctx context.Context, userID uuid.UUID, roleName string) error {
	return r.AssignTx(ctx, r.db, userID, roleName)
}

func (r *roleAssignments) AssignTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, roleName string) error {
	role, ok := NormalizeRole(roleName)
	if !ok {
		return ErrInvalidRoleName(roleName)
	}

	record := &RoleRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("lower(?TableAlias.name) = ?", string(role)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			record = &RoleRecord{ID: uuid.New(), Name: string(role)}
			if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	exists, err := tx.NewSelect().
		Model((*RoleAssignment)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.role_id = ?", record.ID).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	assignment := &RoleAssignment{
		ID:     uuid.New(),
		UserID: userID,
		RoleID: record.ID,
	}

	_, err = tx.NewInsert().Model(assignment).Exec(ctx)
	return err
}

func (r *roleAssignments) RemoveAll(ctx context.Context, userID uuid.UUID) error {
	return r.RemoveAllTx(ctx, r.db, userID)
}

func (r *roleAssignments) RemoveAllTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*RoleAssignment)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}
