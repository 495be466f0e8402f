package identity

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the canonical user repository
type Users interface {
	repository.Repository[*User]
	UserStore

	GetByUserIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByWalletAddressTx(ctx context.Context, tx bun.IDB, address string) (*User, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
	UpdateUserTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
	_ UserStore                    = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByUserID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetByUserIDTx(ctx, a.db, id)
}

func (a *users) GetByUserIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	if id == uuid.Nil {
		return nil, repository.NewRecordNotFound()
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.getByColumn(ctx, tx, "email", NormalizeEmail(email))
}

func (a *users) GetByWalletAddress(ctx context.Context, address string) (*User, error) {
	return a.GetByWalletAddressTx(ctx, a.db, address)
}

func (a *users) GetByWalletAddressTx(ctx context.Context, tx bun.IDB, address string) (*User, error) {
	return a.getByColumn(ctx, tx, "wallet_address", NormalizeWalletAddress(address))
}

func (a *users) getByColumn(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	if value == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("lower(?TableAlias."+column+") = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	created, err := a.Repository.CreateTx(ctx, tx, record, criteria...)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return created, nil
}

func (a *users) CreateUser(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *users) UpdateUser(ctx context.Context, record *User) (*User, error) {
	return a.UpdateUserTx(ctx, a.db, record)
}

func (a *users) UpdateUserTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if record == nil || record.ID == uuid.Nil {
		return nil, repository.NewRecordNotFound()
	}

	updated, err := a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(record.ID.String()))
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return updated, nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	record.Email = NormalizeEmail(record.Email)
	record.WalletAddress = NormalizeWalletAddress(record.WalletAddress)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

// mapUniqueViolation surfaces unique-constraint failures on email or
// wallet_address as conflicts so the resolver can refuse to merge. Driver
// messages differ between Postgres and sqlite, hence the string match.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") {
		return goerrors.Wrap(err, goerrors.CategoryConflict, "identity field already belongs to another user")
	}

	return err
}
