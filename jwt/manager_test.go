package jwt

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestManager(t *testing.T, clock *fakeClock, mutate func(*Config)) *Manager {
	t.Helper()
	cfg := Config{
		TTL:      24 * time.Hour,
		Secret:   testSecret,
		Issuer:   "carauth",
		Audience: "car-rental-api",
		Now:      clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock, nil)

	token, expiresAt, err := m.Issue(Subject{ID: "acct-1", Email: "alice@x.com", Roles: []string{"customer"}, Membership: "Bronze"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expiresAt.Equal(clock.now.Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry: %v", expiresAt)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "acct-1" || claims.Email != "alice@x.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "customer" || claims.Membership != "Bronze" {
		t.Fatalf("unexpected roles/membership: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
}

func TestVerifyRejectsAfterExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock, func(c *Config) { c.TTL = time.Hour })

	token, _, err := m.Issue(Subject{ID: "acct-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.now = clock.now.Add(59 * time.Minute)
	if _, err := m.Verify(token); err != nil {
		t.Fatalf("expected token valid before expiry: %v", err)
	}

	clock.now = clock.now.Add(2 * time.Minute)
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newTestManager(t, clock, func(c *Config) { c.Secret = []byte("ffffffffffffffffffffffffffffffff") })
	verifier := newTestManager(t, clock, nil)

	token, _, err := issuer.Issue(Subject{ID: "acct-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsTamperedExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock, func(c *Config) { c.TTL = time.Minute })

	token, _, err := m.Issue(Subject{ID: "acct-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token, ".")
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	payload["exp"] = clock.now.Add(365 * 24 * time.Hour).Unix()
	forged, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)

	if _, err := m.Verify(strings.Join(parts, ".")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected tampered token rejected, got %v", err)
	}
}

func TestVerifyRejectsAlgorithmConfusion(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock, nil)

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "acct-1",
		Issuer:    "carauth",
		Audience:  gjwt.ClaimStrings{"car-rental-api"},
		IssuedAt:  gjwt.NewNumericDate(clock.now),
		ExpiresAt: gjwt.NewNumericDate(clock.now.Add(time.Hour)),
	}}

	hs512, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}
	if _, err := m.Verify(hs512); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected hs512 token rejected, got %v", err)
	}

	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := m.Verify(none); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg=none token rejected, got %v", err)
	}
}

func TestVerifyRejectsIssuerAudienceMismatch(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock, nil)
	otherIssuer := newTestManager(t, clock, func(c *Config) { c.Issuer = "someone-else" })
	otherAudience := newTestManager(t, clock, func(c *Config) { c.Audience = "admin-console" })

	for name, mgr := range map[string]*Manager{"issuer": otherIssuer, "audience": otherAudience} {
		token, _, err := mgr.Issue(Subject{ID: "acct-1"})
		if err != nil {
			t.Fatalf("%s: issue: %v", name, err)
		}
		if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected mismatch rejected, got %v", name, err)
		}
	}
}

func TestVerifyRejectsNotBeforeInFuture(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock, nil)

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "acct-1",
		Issuer:    "carauth",
		Audience:  gjwt.ClaimStrings{"car-rental-api"},
		IssuedAt:  gjwt.NewNumericDate(clock.now),
		NotBefore: gjwt.NewNumericDate(clock.now.Add(time.Hour)),
		ExpiresAt: gjwt.NewNumericDate(clock.now.Add(2 * time.Hour)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected nbf in future rejected, got %v", err)
	}
}

func TestVerifyBoundsFutureIssuedAt(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock, func(c *Config) { c.MaxFutureIAT = 10 * time.Minute })

	sign := func(iat time.Time) string {
		claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "acct-1",
			Issuer:    "carauth",
			Audience:  gjwt.ClaimStrings{"car-rental-api"},
			IssuedAt:  gjwt.NewNumericDate(iat),
			ExpiresAt: gjwt.NewNumericDate(clock.now.Add(2 * time.Hour)),
		}}
		token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return token
	}

	if _, err := m.Verify(sign(clock.now.Add(5 * time.Minute))); err != nil {
		t.Fatalf("expected iat within skew accepted, got %v", err)
	}
	if _, err := m.Verify(sign(clock.now.Add(11 * time.Minute))); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected iat beyond skew rejected, got %v", err)
	}
}

func TestKeyRotationKeepsRetiredSecretVerifying(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	retired := []byte("retired-secret-retired-secret-!!")
	old := newTestManager(t, clock, func(c *Config) {
		c.Secret = retired
		c.KeyID = "k1"
	})
	rotated := newTestManager(t, clock, func(c *Config) {
		c.KeyID = "k2"
		c.VerifyKeys = map[string][]byte{"k1": retired}
	})

	token, _, err := old.Issue(Subject{ID: "acct-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := rotated.Verify(token); err != nil {
		t.Fatalf("expected retired kid to verify: %v", err)
	}

	stranger := newTestManager(t, clock, func(c *Config) { c.KeyID = "k9" })
	foreign, _, err := stranger.Issue(Subject{ID: "acct-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := rotated.Verify(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected unknown kid rejected, got %v", err)
	}
}

func TestNewManagerRejectsWeakConfig(t *testing.T) {
	cases := map[string]Config{
		"short secret": {TTL: time.Hour, Secret: []byte("short")},
		"zero ttl":     {Secret: testSecret},
		"bad method":   {TTL: time.Hour, Secret: testSecret, SigningMethod: "rs256"},
		"keys no kid":  {TTL: time.Hour, Secret: testSecret, VerifyKeys: map[string][]byte{"k1": testSecret}},
		"huge leeway":  {TTL: time.Hour, Secret: testSecret, Leeway: time.Hour},
	}
	for name, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("%s: expected config error", name)
		}
	}
}
