package identity

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// Resolver finds or creates the canonical user for a provider claim.
//
// Linking is by email first, wallet address second, and the merge is
// additive-only: a claim can fill fields the user record is missing but can
// never overwrite populated ones. A claim whose email and wallet address map
// to two different users fails with ErrConflictingIdentity instead of
// merging; untangling that is an explicit admin action.
type Resolver struct {
	users       UserStore
	logger      Logger
	defaultRole Role
	useHashid   bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDefaultRole sets the role seeded onto newly created users.
func WithDefaultRole(role Role) ResolverOption {
	return func(r *Resolver) {
		if IsValidRole(role) {
			r.defaultRole = role
		}
	}
}

// WithHashidIDs derives new user IDs deterministically from the claim email
// instead of generating random UUIDs.
func WithHashidIDs() ResolverOption {
	return func(r *Resolver) {
		r.useHashid = true
	}
}

// NewResolver returns a Resolver backed by the given user store.
func NewResolver(users UserStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		users:       users,
		logger:      defLogger{},
		defaultRole: RoleUser,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Resolver) WithLogger(logger Logger) *Resolver {
	r.logger = logger
	return r
}

// Resolve maps a verified provider claim onto a canonical user, creating one
// when no record matches either identity field.
func (r *Resolver) Resolve(ctx context.Context, claim *ProviderClaim) (*User, error) {
	if claim == nil {
		return nil, ErrInvalidCredential
	}

	claim.Normalize()
	if err := claim.Validate(); err != nil {
		return nil, err
	}

	byEmail, err := r.lookup(ctx, claim.Email, r.users.GetByEmail)
	if err != nil {
		return nil, err
	}

	byWallet, err := r.lookup(ctx, claim.WalletAddress, r.users.GetByWalletAddress)
	if err != nil {
		return nil, err
	}

	if byEmail != nil && byWallet != nil && byEmail.ID != byWallet.ID {
		r.logger.Warn("Resolve found conflicting identity via %s: email user %s, wallet user %s",
			claim.Provider, byEmail.ID, byWallet.ID)
		clone := ErrConflictingIdentity.Clone()
		if clone == nil {
			return nil, ErrConflictingIdentity
		}
		return nil, clone.WithMetadata(map[string]any{
			"provider":    string(claim.Provider),
			"email_user":  byEmail.ID.String(),
			"wallet_user": byWallet.ID.String(),
		})
	}

	found := byEmail
	if found == nil {
		found = byWallet
	}

	if found != nil {
		return r.merge(ctx, found, claim)
	}

	return r.create(ctx, claim)
}

type lookupFn func(ctx context.Context, key string) (*User, error)

func (r *Resolver) lookup(ctx context.Context, key string, find lookupFn) (*User, error) {
	if key == "" {
		return nil, nil
	}

	user, err := find(ctx, key)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, WrapStoreUnavailable(err)
	}
	return user, nil
}

// merge applies additive-only semantics: only fields currently empty on the
// user are set from the claim. Existing values never yield to a lower-trust
// provider, so an unverified wallet claim cannot clobber a display name that
// came in through a verified email flow.
func (r *Resolver) merge(ctx context.Context, user *User, claim *ProviderClaim) (*User, error) {
	changed := false

	if user.Email == "" && claim.Email != "" {
		user.Email = claim.Email
		changed = true
	}
	if user.WalletAddress == "" && claim.WalletAddress != "" {
		user.WalletAddress = claim.WalletAddress
		changed = true
	}
	if user.DisplayName == "" && claim.DisplayName != "" {
		user.DisplayName = claim.DisplayName
		changed = true
	}
	if user.AvatarURL == "" && claim.AvatarURL != "" {
		user.AvatarURL = claim.AvatarURL
		changed = true
	}

	for key, val := range claim.Metadata {
		if user.Metadata == nil || user.Metadata[key] == nil {
			user.AddMetadata(key, val)
			changed = true
		}
	}

	if !changed {
		return user, nil
	}

	updated, err := r.users.UpdateUser(ctx, user)
	if err != nil {
		// A uniqueness violation here means the identity already belongs to
		// another user that raced us; surface it, never overwrite.
		if isConflict(err) {
			return nil, ErrConflictingIdentity
		}
		return nil, WrapStoreUnavailable(err)
	}

	return updated, nil
}

func (r *Resolver) create(ctx context.Context, claim *ProviderClaim) (*User, error) {
	user := &User{
		Email:         claim.Email,
		WalletAddress: claim.WalletAddress,
		DisplayName:   claim.DisplayName,
		AvatarURL:     claim.AvatarURL,
		Role:          r.defaultRole,
		Metadata:      claim.Metadata,
	}

	if r.useHashid && claim.Email != "" {
		if id, err := hashid.NewUUID(claim.Email); err == nil {
			user.ID = id
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	created, err := r.users.CreateUser(ctx, user)
	if err != nil {
		if isConflict(err) {
			return nil, ErrConflictingIdentity
		}
		return nil, WrapStoreUnavailable(err)
	}

	r.logger.Info("Resolve created user %s via provider %s", created.ID, claim.Provider)

	return created, nil
}
