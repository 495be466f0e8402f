package identity

import (
	"github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidCredential marks credentials that failed provider verification.
	TextCodeInvalidCredential = "INVALID_CREDENTIAL"
	// TextCodeConflictingIdentity marks claims whose fields map to two different users.
	TextCodeConflictingIdentity = "CONFLICTING_IDENTITY"
	// TextCodeInvalidSession marks expired or tampered session artifacts.
	TextCodeInvalidSession = "INVALID_SESSION"
	// TextCodeStoreUnavailable marks failures reaching the user or role store.
	TextCodeStoreUnavailable = "STORE_UNAVAILABLE"
	// TextCodeUnlinkableClaim marks verified claims with no linkable identity field.
	TextCodeUnlinkableClaim = "UNLINKABLE_CLAIM"
	// TextCodeNonceConsumed marks replayed single-use nonces.
	TextCodeNonceConsumed = "NONCE_CONSUMED"
)

// ErrInvalidCredential is returned when a raw credential fails verification
// against its issuing authority. Callers treat it as "try the next method".
var ErrInvalidCredential = errors.New("the credential provided is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredential).
	WithCode(errors.CodeUnauthorized)

// ErrConflictingIdentity is returned when a claim's email and wallet address
// resolve to two different canonical users. Never auto-merged.
var ErrConflictingIdentity = errors.New("identity fields belong to different users", errors.CategoryConflict).
	WithTextCode(TextCodeConflictingIdentity).
	WithCode(errors.CodeConflict)

// ErrInvalidSession is returned when a session artifact is expired or fails
// signature validation. Treated identically to "no session provided".
var ErrInvalidSession = errors.New("session is expired or invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidSession).
	WithCode(errors.CodeUnauthorized)

// ErrStoreUnavailable is returned when the backing user or role store cannot
// be reached. This is the only identity error that should surface as a 5xx.
var ErrStoreUnavailable = errors.New("identity store unavailable", errors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable).
	WithCode(errors.CodeInternal)

// ErrUnlinkableClaim is returned when a credential verifies but carries
// neither an email nor a wallet address.
var ErrUnlinkableClaim = errors.New("claim has no linkable identity field", errors.CategoryAuth).
	WithTextCode(TextCodeUnlinkableClaim).
	WithCode(errors.CodeUnauthorized)

// ErrNonceConsumed is returned when a single-use nonce or one-time token is
// presented a second time.
var ErrNonceConsumed = errors.New("nonce already consumed", errors.CategoryAuth).
	WithTextCode(TextCodeNonceConsumed).
	WithCode(errors.CodeUnauthorized)

// ErrUserNotFound is the error we return for non found users.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidRoleName builds the error returned when a role name does not
// normalize to any role in the hierarchy.
func ErrInvalidRoleName(raw string) error {
	return errors.New("unknown or invalid role", errors.CategoryValidation).
		WithTextCode("INVALID_ROLE").
		WithCode(errors.CodeBadRequest).
		WithMetadata(map[string]any{"role": raw})
}

// IsInvalidCredential reports whether err represents a recoverable credential
// failure, including unlinkable claims and consumed nonces.
func IsInvalidCredential(err error) bool {
	return hasTextCode(err, TextCodeInvalidCredential) ||
		hasTextCode(err, TextCodeUnlinkableClaim) ||
		hasTextCode(err, TextCodeNonceConsumed)
}

// IsInvalidSession reports whether err is (or wraps) ErrInvalidSession.
func IsInvalidSession(err error) bool {
	return hasTextCode(err, TextCodeInvalidSession)
}

// IsConflictingIdentity reports whether err is (or wraps) ErrConflictingIdentity.
func IsConflictingIdentity(err error) bool {
	return hasTextCode(err, TextCodeConflictingIdentity)
}

// IsStoreUnavailable reports whether err is (or wraps) ErrStoreUnavailable.
func IsStoreUnavailable(err error) bool {
	return hasTextCode(err, TextCodeStoreUnavailable)
}

func isConflict(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.Category == errors.CategoryConflict
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// WrapInvalidCredential normalizes provider-internal failures (malformed
// responses, timeouts, bad signatures) into ErrInvalidCredential so upstream
// code never special-cases provider errors.
func WrapInvalidCredential(err error, provider ProviderType) error {
	if err == nil {
		return nil
	}
	clone := ErrInvalidCredential.Clone()
	if clone == nil {
		return ErrInvalidCredential
	}
	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"provider": string(provider),
		"cause":    err.Error(),
	})
}

// WrapStoreUnavailable marks a store read/write failure so the caller can
// surface it instead of under-authorizing an otherwise legitimate user.
func WrapStoreUnavailable(err error) error {
	if err == nil {
		return nil
	}
	clone := ErrStoreUnavailable.Clone()
	if clone == nil {
		return ErrStoreUnavailable
	}
	clone.Source = err
	return clone.WithMetadata(map[string]any{
		"cause": err.Error(),
	})
}
