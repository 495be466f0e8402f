package identity

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashToken generates a bcrypt hash of a one-time token. Only the hash is
// ever persisted; the cleartext goes to the user and nowhere else.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidCredential
	}

	h, err := bcrypt.GenerateFromPassword([]byte(token), tokenHashCost())
	return string(h), err
}

// CompareTokenAndHash validates the given cleartext token against its
// stored hash.
func CompareTokenAndHash(token, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredential
		}
		return err
	}
	return nil
}

// NewOpaqueToken mints a random single-use token value.
func NewOpaqueToken() string {
	return uuid.NewString()
}
