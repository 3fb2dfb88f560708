package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	// Stored hashes come from the database, so their parameters are bounded
	// before any work is spent on them.
	maxMemoryKB   uint32 = 1 << 20
	maxTimeCost   uint32 = 64
	maxSaltLength        = 64
	maxKeyLength         = 128

	argon2Prefix = "$argon2id$"
)

// ErrMalformedHash is returned by Verify when a stored Argon2id hash cannot
// be decoded or carries parameters outside the accepted range.
var ErrMalformedHash = errors.New("malformed argon2id hash")

var phcEncoding = base64.RawStdEncoding

// Argon2Config holds the Argon2id cost parameters. They are written into
// every PHC string, so changing them never invalidates existing hashes.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Argon2 hashes with Argon2id and verifies PHC strings.
type Argon2 struct {
	config Argon2Config
}

// phcHash is one decoded $argon2id$ credential.
type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates cfg against the minimum cost floor.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := validateArgon2Config(cfg); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash returns the PHC encoding of password under a fresh random salt.
// Raw string bytes are hashed as provided, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < MinPasswordBytes {
		return "", ErrPasswordTooShort
	}

	h := phcHash{
		memory:      a.config.Memory,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        make([]byte, a.config.SaltLength),
	}
	if _, err := io.ReadFull(rand.Reader, h.salt); err != nil {
		return "", err
	}
	h.key = h.derive(password, a.config.KeyLength)
	return h.String(), nil
}

// Verify recomputes the key with the parameters stored in encodedHash and
// compares in constant time. A malformed hash is an error, a mismatch is not.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	h, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	computed := h.derive(password, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(computed, h.key) == 1, nil
}

// Handles reports whether encodedHash is an Argon2id PHC string.
func (a *Argon2) Handles(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, argon2Prefix)
}

func (h phcHash) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, keyLen)
}

func (h phcHash) params() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", h.memory, h.time, h.parallelism)
}

// String renders h as $argon2id$v=19$m=..,t=..,p=..$salt$key with unpadded
// base64 segments.
func (h phcHash) String() string {
	var b strings.Builder
	b.WriteString(argon2Prefix)
	fmt.Fprintf(&b, "v=%d$", argon2.Version)
	b.WriteString(h.params())
	b.WriteByte('$')
	b.WriteString(phcEncoding.EncodeToString(h.salt))
	b.WriteByte('$')
	b.WriteString(phcEncoding.EncodeToString(h.key))
	return b.String()
}

// decodePHC is the inverse of phcHash.String. The parameter segment must
// round-trip exactly, which rejects reordered, repeated, padded or extra
// fields without a separate check for each.
func decodePHC(encoded string) (phcHash, error) {
	var h phcHash

	rest, ok := strings.CutPrefix(encoded, argon2Prefix)
	if !ok {
		return h, fmt.Errorf("%w: not an argon2id hash", ErrMalformedHash)
	}
	version, rest, ok := strings.Cut(rest, "$")
	if !ok || version != fmt.Sprintf("v=%d", argon2.Version) {
		return h, fmt.Errorf("%w: unsupported version", ErrMalformedHash)
	}
	params, rest, ok := strings.Cut(rest, "$")
	if !ok {
		return h, fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}
	salt, key, ok := strings.Cut(rest, "$")
	if !ok || strings.Contains(key, "$") {
		return h, fmt.Errorf("%w: wrong segment count", ErrMalformedHash)
	}

	if _, err := fmt.Sscanf(params, "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.parallelism); err != nil {
		return h, fmt.Errorf("%w: parameters: %v", ErrMalformedHash, err)
	}
	if h.params() != params {
		return h, fmt.Errorf("%w: non-canonical parameters %q", ErrMalformedHash, params)
	}
	switch {
	case h.memory < minMemoryKB || h.memory > maxMemoryKB:
		return h, fmt.Errorf("%w: memory %d out of range", ErrMalformedHash, h.memory)
	case h.time < minTimeCost || h.time > maxTimeCost:
		return h, fmt.Errorf("%w: time %d out of range", ErrMalformedHash, h.time)
	case h.parallelism < minParallelism:
		return h, fmt.Errorf("%w: parallelism must be >= 1", ErrMalformedHash)
	}

	var err error
	if h.salt, err = phcEncoding.DecodeString(salt); err != nil {
		return h, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	if len(h.salt) < int(minSaltLength) || len(h.salt) > maxSaltLength {
		return h, fmt.Errorf("%w: salt length %d", ErrMalformedHash, len(h.salt))
	}
	if h.key, err = phcEncoding.DecodeString(key); err != nil {
		return h, fmt.Errorf("%w: key: %v", ErrMalformedHash, err)
	}
	if len(h.key) < int(minKeyLength) || len(h.key) > maxKeyLength {
		return h, fmt.Errorf("%w: key length %d", ErrMalformedHash, len(h.key))
	}
	return h, nil
}

func validateArgon2Config(cfg Argon2Config) error {
	if cfg.Memory < minMemoryKB || cfg.Memory > maxMemoryKB {
		return fmt.Errorf("password memory must be between %d and %d KB", minMemoryKB, maxMemoryKB)
	}
	if cfg.Time < minTimeCost || cfg.Time > maxTimeCost {
		return fmt.Errorf("password time must be between %d and %d", minTimeCost, maxTimeCost)
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength || cfg.SaltLength > maxSaltLength {
		return fmt.Errorf("password salt length must be between %d and %d", minSaltLength, maxSaltLength)
	}
	if cfg.KeyLength < minKeyLength || cfg.KeyLength > maxKeyLength {
		return fmt.Errorf("password key length must be between %d and %d", minKeyLength, maxKeyLength)
	}
	return nil
}
