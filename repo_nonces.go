package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Nonces persists single-use challenges for the SIWE and magic link flows.
type Nonces interface {
	repository.Repository[*Nonce]
	NonceStore

	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type nonces struct {
	repository.Repository[*Nonce]
	db *bun.DB
}

var (
	_ Nonces     = (*nonces)(nil)
	_ NonceStore = (*nonces)(nil)
)

func NewNoncesRepository(db *bun.DB) Nonces {
	repo := repository.NewRepository[*Nonce](db, repository.ModelHandlers[*Nonce]{
		NewRecord: func() *Nonce { return &Nonce{} },
		GetID: func(n *Nonce) uuid.UUID {
			if n == nil {
				return uuid.Nil
			}
			return n.ID
		},
		SetID: func(n *Nonce, id uuid.UUID) {
			if n != nil {
				n.ID = id
			}
		},
	})

	return &nonces{
		Repository: repo,
		db:         db,
	}
}

// Issue stores a fresh nonce keyed to a subject (wallet address or email)
// and returns it with its expiry so callers can hand both to the client.
func (r *nonces) Issue(ctx context.Context, purpose NoncePurpose, subject, value string, ttl time.Duration) (*Nonce, error) {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	record := &Nonce{
		ID:        uuid.New(),
		Purpose:   purpose,
		Subject:   subject,
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
	}

	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

// Active returns the newest unconsumed, unexpired nonce for a subject, or
// ErrInvalidCredential when none exists.
func (r *nonces) Active(ctx context.Context, purpose NoncePurpose, subject string) (*Nonce, error) {
	record := &Nonce{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.purpose = ?", purpose).
		Where("?TableAlias.subject = ?", subject).
		Where("?TableAlias.consumed_at IS NULL").
		Where("?TableAlias.expires_at > ?", time.Now()).
		OrderExpr("?TableAlias.expires_at DESC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}

	return record, nil
}

// Consume flips consumed_at exactly once. The conditional update is the one
// transactional guarantee in the subsystem: two concurrent replays race on
// the same row and only one UPDATE matches consumed_at IS NULL.
func (r *nonces) Consume(ctx context.Context, purpose NoncePurpose, subject, value string) (*Nonce, error) {
	record := &Nonce{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.purpose = ?", purpose).
		Where("?TableAlias.subject = ?", subject).
		Where("?TableAlias.value = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}

	now := time.Now()
	if record.Expired(now) {
		return nil, ErrInvalidCredential
	}
	if record.ConsumedAt != nil {
		return nil, ErrNonceConsumed
	}

	res, err := r.db.NewUpdate().
		Model((*Nonce)(nil)).
		Set("consumed_at = ?", now).
		Where("id = ?", record.ID).
		Where("consumed_at IS NULL").
		Exec(ctx)

	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Lost the race against a concurrent replay.
		return nil, ErrNonceConsumed
	}

	record.ConsumedAt = &now
	return record, nil
}

// PurgeExpired deletes nonces whose TTL elapsed before the given time.
func (r *nonces) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*Nonce)(nil)).
		Where("expires_at < ?", before).
		Exec(ctx)

	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
