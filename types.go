package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Session holds attributes that are part of an auth session
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetExpiration() *time.Time
}

// CredentialVerifier validates a raw credential against its issuing authority
// and returns a provider-scoped identity claim. Implementations are stateless
// pure validators; any internal failure is normalized to ErrInvalidCredential.
type CredentialVerifier interface {
	Provider() ProviderType
	Verify(ctx context.Context, rawCredential string) (*ProviderClaim, error)
}

// UserStore is the store the resolver and session reader need to find and
// link canonical users.
type UserStore interface {
	GetByUserID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByWalletAddress(ctx context.Context, address string) (*User, error)
	CreateUser(ctx context.Context, record *User) (*User, error)
	UpdateUser(ctx context.Context, record *User) (*User, error)
}

// RoleStore reads role assignment rows for a user. The names it returns may be
// inconsistently cased; NormalizeRole is the only place conversion happens.
type RoleStore interface {
	FindRoleNames(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// NonceStore issues and consumes single-use values for the SIWE and magic link
// flows. Consume must be an atomic consume-if-unconsumed operation.
type NonceStore interface {
	Issue(ctx context.Context, purpose NoncePurpose, subject, value string, ttl time.Duration) (*Nonce, error)
	Active(ctx context.Context, purpose NoncePurpose, subject string) (*Nonce, error)
	Consume(ctx context.Context, purpose NoncePurpose, subject, value string) (*Nonce, error)
}

// Config holds identity options
type Config interface {
	GetSigningKey() string
	GetSessionDuration() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetAuthScheme() string
	GetSessionCookieNames() []string
	GetFallbackCookieName() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
