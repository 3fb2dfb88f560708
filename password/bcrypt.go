package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MaxBcryptBytes is the longest input bcrypt accepts.
const MaxBcryptBytes = 72

// Bcrypt hashes with bcrypt at a fixed cost. The cost is embedded in the
// hash, so verification always uses the cost chosen at creation.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. Cost must lie within bcrypt's bounds
// and not below 10.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < 10 || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between 10 and %d", bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	if len(password) < MinPasswordBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > MaxBcryptBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (b *Bcrypt) Verify(password string, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// Handles reports whether encodedHash carries a bcrypt prefix.
func (b *Bcrypt) Handles(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}
