package identity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

// SessionObject is the reconstituted view of a validated session artifact.
// It carries no role: the role is re-derived through the RoleResolver so a
// role change takes effect without invalidating the session.
type SessionObject struct {
	UserID         string     `json:"user_id,omitempty"`
	Audience       []string   `json:"audience,omitempty"`
	Issuer         string     `json:"issuer,omitempty"`
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetExpiration() *time.Time {
	return s.ExpirationDate
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s aud=%v iss=%s iat=%s",
		s.UserID,
		s.Audience,
		s.Issuer,
		issuedAt,
	)
}

// SessionFromClaims creates a SessionObject from validated session claims.
func SessionFromClaims(claims *SessionClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrInvalidSession
	}

	session := &SessionObject{
		UserID:   claims.UserID(),
		Issuer:   claims.RegisteredClaims.Issuer,
		Audience: append([]string(nil), claims.RegisteredClaims.Audience...),
	}

	if claims.RegisteredClaims.IssuedAt != nil {
		issuedAt := claims.RegisteredClaims.IssuedAt.Time
		session.IssuedAt = &issuedAt
	}

	if claims.RegisteredClaims.ExpiresAt != nil {
		expiresAt := claims.RegisteredClaims.ExpiresAt.Time
		session.ExpirationDate = &expiresAt
	}

	return session, nil
}

// HasUserUUID reports whether Session.GetUserUUID will succeed.
func HasUserUUID(session Session) bool {
	if session == nil {
		return false
	}
	_, err := session.GetUserUUID()
	return err == nil
}
