package password

import (
	"errors"
	"fmt"
	"sync"
)

// MinPasswordBytes is the floor every hasher enforces. Richer policy lives
// with the caller.
const MinPasswordBytes = 8

var (
	// ErrPasswordTooShort is returned when the input is below MinPasswordBytes.
	ErrPasswordTooShort = errors.New("password is too short")
	// ErrPasswordTooLong is returned when the active algorithm cannot hash the input.
	ErrPasswordTooLong = errors.New("password is too long")
	// ErrUnknownHashFormat is returned when no configured algorithm recognises a stored hash.
	ErrUnknownHashFormat = errors.New("unknown password hash format")
)

// Algorithm selects the hasher used for new credentials.
type Algorithm string

const (
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmBcrypt   Algorithm = "bcrypt"
)

// Hasher hashes new passwords and verifies stored hashes it recognises.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password string, encodedHash string) (bool, error)
	Handles(encodedHash string) bool
}

// Config configures a Service.
type Config struct {
	Algorithm  Algorithm
	Argon2     Argon2Config
	BcryptCost int
}

// Service hashes with the configured algorithm and verifies hashes produced
// by any supported algorithm, so switching Algorithm keeps old credentials
// usable.
type Service struct {
	primary Hasher
	all     []Hasher

	dummyOnce sync.Once
	dummy     string
}

// New builds a Service from cfg.
func New(cfg Config) (*Service, error) {
	argon, err := NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = 10
	}
	bc, err := NewBcrypt(cost)
	if err != nil {
		return nil, err
	}

	s := &Service{all: []Hasher{argon, bc}}
	switch cfg.Algorithm {
	case AlgorithmArgon2id, "":
		s.primary = argon
	case AlgorithmBcrypt:
		s.primary = bc
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}
	return s, nil
}

// Hash hashes password with the primary algorithm.
func (s *Service) Hash(password string) (string, error) {
	return s.primary.Hash(password)
}

// Verify checks password against encodedHash using whichever algorithm
// produced it.
func (s *Service) Verify(password, encodedHash string) (bool, error) {
	for _, h := range s.all {
		if h.Handles(encodedHash) {
			return h.Verify(password, encodedHash)
		}
	}
	return false, ErrUnknownHashFormat
}

// Burn spends the same work as a real verification against a throwaway
// hash. Login calls it for unknown accounts so response time does not
// reveal whether an email is registered.
func (s *Service) Burn(password string) {
	s.dummyOnce.Do(func() {
		s.dummy, _ = s.primary.Hash("carauth-dummy-credential")
	})
	if s.dummy == "" {
		return
	}
	_, _ = s.primary.Verify(password, s.dummy)
}
