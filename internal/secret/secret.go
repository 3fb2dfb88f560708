// Package secret generates the single-use tokens mailed out for email
// verification and password reset.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"time"
)

// Size is the number of random bytes behind every token (256 bits).
const Size = 32

// Token is a freshly generated secret. Value leaves the process only via the
// email sender; Hash is what gets persisted.
type Token struct {
	Value     string
	Hash      string
	ExpiresAt time.Time
}

// Generator produces tokens from an entropy source.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a Generator reading from r, or crypto/rand when r is nil.
func NewGenerator(r io.Reader) *Generator {
	if r == nil {
		r = rand.Reader
	}
	return &Generator{rand: r}
}

// New returns a token expiring ttl after now.
func (g *Generator) New(now time.Time, ttl time.Duration) (Token, error) {
	if ttl <= 0 {
		return Token{}, errors.New("token ttl must be > 0")
	}

	var raw [Size]byte
	if _, err := io.ReadFull(g.rand, raw[:]); err != nil {
		return Token{}, err
	}

	value := hex.EncodeToString(raw[:])
	return Token{
		Value:     value,
		Hash:      Hash(value),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Hash returns the hex SHA-256 digest stored in place of a token value.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// WellFormed reports whether value has the shape New produces. Lookups skip
// the store for anything else.
func WellFormed(value string) bool {
	if len(value) != 2*Size {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}
