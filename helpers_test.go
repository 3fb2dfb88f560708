package carauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// mockStore is an in-memory CredentialStore with the same contract as the
// real backends.
type mockStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	byEmail  map[string]string
	fail     error
}

func newMockStore() *mockStore {
	return &mockStore{
		accounts: map[string]Account{},
		byEmail:  map[string]string{},
	}
}

func (s *mockStore) get(id string) Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

func (s *mockStore) setLockout(id string, st LockoutState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[id]
	acc.FailedAttempts = st.FailedAttempts
	acc.LockUntil = st.LockUntil
	s.accounts[id] = acc
}

func (s *mockStore) FindByEmail(_ context.Context, email string, withCredential bool) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	acc := s.accounts[id]
	if !withCredential {
		acc.PasswordHash = ""
	}
	return &acc, nil
}

func (s *mockStore) FindByID(_ context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	acc, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &acc, nil
}

func (s *mockStore) Create(_ context.Context, account *Account) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	if _, taken := s.byEmail[account.Email]; taken {
		return nil, ErrDuplicateAccount
	}
	acc := *account
	acc.Version = 1
	s.accounts[acc.ID] = acc
	s.byEmail[acc.Email] = acc.ID
	return &acc, nil
}

func (s *mockStore) Save(_ context.Context, account *Account) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	cur, ok := s.accounts[account.ID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if cur.Version != account.Version {
		return nil, ErrStaleAccount
	}
	if account.Email != cur.Email {
		if _, taken := s.byEmail[account.Email]; taken {
			return nil, ErrDuplicateAccount
		}
		delete(s.byEmail, cur.Email)
		s.byEmail[account.Email] = account.ID
	}

	next := *account
	next.FailedAttempts = cur.FailedAttempts
	next.LockUntil = cur.LockUntil
	next.LastLoginAt = cur.LastLoginAt
	next.Version = cur.Version + 1
	s.accounts[next.ID] = next
	return &next, nil
}

func (s *mockStore) FindByToken(_ context.Context, kind TokenKind, tokenHash string, now time.Time) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	for _, acc := range s.accounts {
		hash, exp := acc.VerificationTokenHash, acc.VerificationExpiresAt
		if kind == TokenReset {
			hash, exp = acc.ResetTokenHash, acc.ResetExpiresAt
		}
		if hash != "" && hash == tokenHash && exp.After(now) {
			out := acc
			return &out, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (s *mockStore) CompareAndSwapLockout(_ context.Context, id string, old, next LockoutState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return false, s.fail
	}
	acc, ok := s.accounts[id]
	if !ok {
		return false, ErrAccountNotFound
	}
	if acc.FailedAttempts != old.FailedAttempts || !acc.LockUntil.Equal(old.LockUntil) {
		return false, nil
	}
	acc.FailedAttempts = next.FailedAttempts
	acc.LockUntil = next.LockUntil
	s.accounts[id] = acc
	return true, nil
}

func (s *mockStore) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	acc, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	acc.FailedAttempts = 0
	acc.LockUntil = time.Time{}
	acc.LastLoginAt = at
	s.accounts[id] = acc
	return nil
}

// captureSender records every message handed to it.
type captureSender struct {
	msgs chan EmailMessage
	err  error
}

func newCaptureSender() *captureSender {
	return &captureSender{msgs: make(chan EmailMessage, 16)}
}

func (s *captureSender) Send(_ context.Context, msg EmailMessage) error {
	s.msgs <- msg
	return s.err
}

func (s *captureSender) next(t *testing.T, kind EmailKind) EmailMessage {
	t.Helper()
	for {
		select {
		case msg := <-s.msgs:
			if msg.Kind == kind {
				return msg
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %s email", kind)
			return EmailMessage{}
		}
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Lockout.Threshold = 3
	cfg.Lockout.Duration = 15 * time.Minute
	cfg.Metrics.Enabled = true
	return cfg
}

type testEngine struct {
	*Engine
	store  *mockStore
	mail   *captureSender
	clock  *testClock
	config Config
}

func newTestEngine(t *testing.T, mutate func(*Builder)) *testEngine {
	t.Helper()

	te := &testEngine{
		store:  newMockStore(),
		mail:   newCaptureSender(),
		clock:  newTestClock(),
		config: testConfig(),
	}
	b := New().
		WithConfig(te.config).
		WithStore(te.store).
		WithEmailSender(te.mail).
		WithClock(te.clock.Now)
	if mutate != nil {
		mutate(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	te.Engine = engine
	return te
}

const alicePassword = "Secret@123"

func (te *testEngine) registerAlice(t *testing.T) *AuthResult {
	t.Helper()
	res, err := te.Register(context.Background(), RegisterInput{
		FullName: "Alice Doe",
		Email:    "Alice@Example.com",
		Password: alicePassword,
		Phone:    "+16502530000",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return res
}

var errBackendDown = errors.New("connection refused")
