package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/carauth"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "carauth"

// Store is a carauth.CredentialStore backed by Redis. It is safe for
// concurrent use.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// New returns a Store writing under prefix, or "carauth" when prefix is empty.
//
// Scripts touch several keys at once, so on Redis Cluster they must share a
// slot. A cluster client gets the prefix wrapped in a hash tag unless it
// already carries one, which places the whole store on one shard.
func New(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if _, ok := redisClient.(*redis.ClusterClient); ok {
		prefix = hashTagged(prefix)
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func hashTagged(prefix string) string {
	if open := strings.IndexByte(prefix, '{'); open >= 0 {
		if end := strings.IndexByte(prefix[open:], '}'); end > 1 {
			return prefix
		}
	}
	return "{" + prefix + "}"
}

var _ carauth.CredentialStore = (*Store)(nil)

func (s *Store) accountKey(id string) string {
	return s.prefix + ":account:" + id
}

func (s *Store) emailPrefix() string {
	return s.prefix + ":email:"
}

func (s *Store) emailKey(email string) string {
	return s.emailPrefix() + strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) tokenPrefix(kind carauth.TokenKind) string {
	return s.prefix + ":token:" + kind.String() + ":"
}

func (s *Store) tokenKey(kind carauth.TokenKind, hash string) string {
	if hash == "" {
		return ""
	}
	return s.tokenPrefix(kind) + hash
}

// indexKey is tokenKey with a stand-in name for an empty digest. Scripts
// never touch the stand-in; it only keeps KEYS positional.
func (s *Store) indexKey(kind carauth.TokenKind, hash string) string {
	return s.tokenPrefix(kind) + hash
}

func hashString(v interface{}) string {
	str, _ := v.(string)
	return str
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", carauth.ErrStoreUnavailable, err)
}

// FindByEmail resolves the email index and loads the account.
func (s *Store) FindByEmail(ctx context.Context, email string, withCredential bool) (*carauth.Account, error) {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, carauth.ErrAccountNotFound
		}
		return nil, unavailable(err)
	}

	acc, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !withCredential {
		acc.PasswordHash = ""
	}
	return acc, nil
}

// FindByID loads the account hash.
func (s *Store) FindByID(ctx context.Context, id string) (*carauth.Account, error) {
	m, err := s.redis.HGetAll(ctx, s.accountKey(id)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(m) == 0 {
		return nil, carauth.ErrAccountNotFound
	}
	return decodeAccount(m)
}

// Create claims the email index and writes the account in one script.
func (s *Store) Create(ctx context.Context, account *carauth.Account) (*carauth.Account, error) {
	if account == nil || account.ID == "" {
		return nil, errors.New("redisstore: account id is required")
	}

	acc := *account
	acc.Email = strings.ToLower(strings.TrimSpace(acc.Email))
	acc.Version = 1

	keys := []string{s.accountKey(acc.ID), s.emailKey(acc.Email)}
	if acc.VerificationTokenHash != "" {
		keys = append(keys, s.tokenKey(carauth.TokenVerification, acc.VerificationTokenHash))
	}
	if acc.ResetTokenHash != "" {
		keys = append(keys, s.tokenKey(carauth.TokenReset, acc.ResetTokenHash))
	}
	args := append([]interface{}{acc.ID}, allFields(&acc)...)

	res, err := createLua.Run(ctx, s.redis, keys, args...).Int64()
	if err != nil {
		return nil, unavailable(err)
	}
	if res == scriptDuplicate {
		return nil, carauth.ErrDuplicateAccount
	}
	return &acc, nil
}

// Save writes the mutable fields if the stored version still matches.
func (s *Store) Save(ctx context.Context, account *carauth.Account) (*carauth.Account, error) {
	if account == nil || account.ID == "" {
		return nil, errors.New("redisstore: account id is required")
	}

	acc := *account
	acc.Email = strings.ToLower(strings.TrimSpace(acc.Email))

	// The script must name the index keys it replaces, so read them first.
	// The script rejects the write if they changed in between.
	cur, err := s.redis.HMGet(ctx, s.accountKey(acc.ID), "email", "verification_hash", "reset_hash").Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if cur[0] == nil {
		return nil, carauth.ErrAccountNotFound
	}
	oldEmail, oldVerification, oldReset := hashString(cur[0]), hashString(cur[1]), hashString(cur[2])

	keys := []string{
		s.accountKey(acc.ID),
		s.emailKey(acc.Email),
		s.emailKey(oldEmail),
		s.indexKey(carauth.TokenVerification, oldVerification),
		s.indexKey(carauth.TokenVerification, acc.VerificationTokenHash),
		s.indexKey(carauth.TokenReset, oldReset),
		s.indexKey(carauth.TokenReset, acc.ResetTokenHash),
	}
	args := []interface{}{
		strconv.FormatInt(acc.Version, 10),
		oldEmail,
		oldVerification, acc.VerificationTokenHash,
		oldReset, acc.ResetTokenHash,
	}
	args = append(args, mutableFields(&acc)...)

	res, err := saveLua.Run(ctx, s.redis, keys, args...).Int64()
	if err != nil {
		return nil, unavailable(err)
	}
	switch res {
	case scriptMissing:
		return nil, carauth.ErrAccountNotFound
	case scriptStale:
		return nil, carauth.ErrStaleAccount
	case scriptDuplicate:
		return nil, carauth.ErrDuplicateAccount
	}

	// Lockout and last-login may have moved independently; reload them.
	return s.FindByID(ctx, acc.ID)
}

// FindByToken returns the account holding tokenHash for kind if the token
// expires after now.
func (s *Store) FindByToken(ctx context.Context, kind carauth.TokenKind, tokenHash string, now time.Time) (*carauth.Account, error) {
	hashField, expiresField := "verification_hash", "verification_expires"
	if kind == carauth.TokenReset {
		hashField, expiresField = "reset_hash", "reset_expires"
	}

	indexKey := s.tokenKey(kind, tokenHash)
	if indexKey == "" {
		return nil, carauth.ErrAccountNotFound
	}
	id, err := s.redis.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, carauth.ErrAccountNotFound
		}
		return nil, unavailable(err)
	}

	res, err := findByTokenLua.Run(ctx, s.redis,
		[]string{indexKey, s.accountKey(id)},
		id, hashField, expiresField, tokenHash, strconv.FormatInt(now.UnixMicro(), 10),
	).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, carauth.ErrAccountNotFound
		}
		return nil, unavailable(err)
	}

	m, err := pairsToMap(res)
	if err != nil {
		return nil, err
	}
	return decodeAccount(m)
}

// CompareAndSwapLockout replaces the lockout pair only if it equals old.
func (s *Store) CompareAndSwapLockout(ctx context.Context, id string, old, next carauth.LockoutState) (bool, error) {
	res, err := swapLockoutLua.Run(ctx, s.redis, []string{s.accountKey(id)},
		strconv.Itoa(old.FailedAttempts), encodeTime(old.LockUntil),
		strconv.Itoa(next.FailedAttempts), encodeTime(next.LockUntil),
	).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	if res == scriptMissing {
		return false, carauth.ErrAccountNotFound
	}
	return res == 1, nil
}

// RecordLoginSuccess clears the lockout pair and stamps the login time.
func (s *Store) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	res, err := loginSuccessLua.Run(ctx, s.redis, []string{s.accountKey(id)}, encodeTime(at)).Int64()
	if err != nil {
		return unavailable(err)
	}
	if res == scriptMissing {
		return carauth.ErrAccountNotFound
	}
	return nil
}
