package carauth

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrValidation marks malformed input. Concrete failures are *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateAccount is returned when the email is already registered.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while the lockout policy denies logins.
	ErrAccountLocked = errors.New("account locked")
	// ErrAuthenticationRequired is returned by the gate when no token is presented.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrInvalidToken is the uniform session-token rejection.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInsufficientPermissions is returned when no required role is held.
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	// ErrInvalidOrExpiredToken is the uniform rejection for verification and reset tokens.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrInvalidPassword is returned when the current password does not match.
	ErrInvalidPassword = errors.New("current password is incorrect")
	// ErrAccountNotFound is returned by stores and by GetAccount for a missing account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrStaleAccount is returned by stores when Save loses an optimistic-concurrency race.
	ErrStaleAccount = errors.New("account was modified concurrently")
	// ErrStoreUnavailable is returned when the credential store fails or times out.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrLoginRateLimited is returned when the per-IP login throttle trips.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrEngineNotReady is returned when a required collaborator is missing.
	ErrEngineNotReady = errors.New("engine not ready")
)

// ValidationError carries per-field messages for rejected input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError with a single field message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(ErrValidation.Error())
	b.WriteString(": ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(e.Fields[k])
	}
	return b.String()
}

// Is lets errors.Is(err, ErrValidation) match any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
