package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the user's authorization tier
type Role = string

const (
	// RoleUser is the default lowest tier
	RoleUser Role = "user"
	// RoleSubscriber is a newsletter subscriber
	RoleSubscriber Role = "subscriber"
	// RolePatron is a one-time supporter
	RolePatron Role = "patron"
	// RolePremium is a paying member
	RolePremium Role = "premium"
	// RoleSponsor is a recurring sponsor
	RoleSponsor Role = "sponsor"
	// RoleAdmin has full access
	RoleAdmin Role = "admin"
)

// User is the canonical merged identity record. Every provider resolves to
// one of these; email and wallet_address are each unique when present.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string         `bun:"email,nullzero,unique" json:"email,omitempty"`
	WalletAddress string         `bun:"wallet_address,nullzero,unique" json:"wallet_address,omitempty"`
	DisplayName   string         `bun:"display_name" json:"display_name,omitempty"`
	AvatarURL     string         `bun:"avatar_url" json:"avatar_url,omitempty"`
	Role          Role           `bun:"user_role,notnull" json:"user_role,omitempty"`
	Metadata      map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// IsLinkable reports whether the user is reachable by email or wallet address.
func (u *User) IsLinkable() bool {
	return u != nil && (u.Email != "" || u.WalletAddress != "")
}

// RoleRecord is the roles lookup table
type RoleRecord struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string    `bun:"name,notnull,unique" json:"name,omitempty"`
}

// RoleAssignment links a user to a role. A user may carry several rows; the
// role resolver reads the highest-privilege one.
type RoleAssignment struct {
	bun.BaseModel `bun:"table:role_assignments,alias:ra"`
	ID            uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID   `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	RoleID        uuid.UUID   `bun:"role_id,notnull,type:uuid" json:"role_id,omitempty"`
	Role          *RoleRecord `bun:"rel:has-one,join:role_id=id" json:"role,omitempty"`
	CreatedAt     *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// NoncePurpose scopes a nonce to the flow that issued it
type NoncePurpose = string

const (
	// NoncePurposeSIWE is a wallet signature challenge nonce
	NoncePurposeSIWE NoncePurpose = "siwe"
	// NoncePurposeMagicLink is a one-time emailed login token
	NoncePurposeMagicLink NoncePurpose = "magic-link"
)

// Nonce is a single-use challenge bound to a subject (wallet address or
// email). ConsumedAt flips exactly once via a conditional update.
type Nonce struct {
	bun.BaseModel `bun:"table:auth_nonces,alias:non"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Purpose       string     `bun:"purpose,notnull" json:"purpose,omitempty"`
	Subject       string     `bun:"subject,notnull" json:"subject,omitempty"`
	Value         string     `bun:"value,notnull" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	ConsumedAt    *time.Time `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Expired reports whether the nonce TTL has elapsed.
func (n *Nonce) Expired(now time.Time) bool {
	return n != nil && now.After(n.ExpiresAt)
}

// NormalizeEmail lower-cases and trims an email for case-insensitive matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeWalletAddress lower-cases a hex wallet address. Checksummed and
// plain representations of the same address compare equal after this.
func NormalizeWalletAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
