package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/MrEthical07/carauth"
	"github.com/MrEthical07/carauth/metrics/export/prometheus"
	"github.com/MrEthical07/carauth/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mailbox struct {
	msgs chan carauth.EmailMessage
}

func (m *mailbox) Send(_ context.Context, msg carauth.EmailMessage) error {
	m.msgs <- msg
	return nil
}

func (m *mailbox) next(t *testing.T, kind carauth.EmailKind) carauth.EmailMessage {
	t.Helper()
	for {
		select {
		case msg := <-m.msgs:
			if msg.Kind == kind {
				return msg
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s email delivered", kind)
		}
	}
}

func newStack(t *testing.T) (http.Handler, *mailbox, *carauth.Engine) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := carauth.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true

	mail := &mailbox{msgs: make(chan carauth.EmailMessage, 16)}
	engine, err := carauth.New().
		WithConfig(cfg).
		WithStore(redisstore.New(rdb, "e2e")).
		WithEmailSender(mail).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	router := NewRouter(Config{
		Service: engine,
		Metrics: prometheus.NewPrometheusExporter(engine).Handler(),
	})
	return router, mail, engine
}

func userID(t *testing.T, data json.RawMessage) (string, string) {
	t.Helper()
	var payload struct {
		User  carauth.AccountView `json:"user"`
		Token string              `json:"token"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	return payload.User.ID, payload.Token
}

func TestAliceScenario(t *testing.T) {
	h, _, _ := newStack(t)
	body := registerBody()
	body["email"] = "alice@x.com"
	body["password"] = "Secret123!"
	body["confirmPassword"] = "Secret123!"

	rec, out := do(t, h, "POST", "/api/auth/register", body, "")
	require.Equal(t, http.StatusCreated, rec.Code, out.Message)
	registeredID, _ := userID(t, out.Data)

	rec, out = do(t, h, "POST", "/api/auth/register", body, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "USER_EXISTS", out.Code)

	creds := map[string]string{"email": "alice@x.com", "password": "Secret123!"}
	rec, out = do(t, h, "POST", "/api/auth/login", creds, "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, token := userID(t, out.Data)

	claims := jwtlib.MapClaims{}
	_, _, err := jwtlib.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	sub, err := claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, registeredID, sub)

	wrong := map[string]string{"email": "alice@x.com", "password": "Wrong123!"}
	for i := 0; i < 5; i++ {
		rec, out = do(t, h, "POST", "/api/auth/login", wrong, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
		require.Equal(t, "INVALID_CREDENTIALS", out.Code)
	}

	rec, out = do(t, h, "POST", "/api/auth/login", creds, "")
	require.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, "ACCOUNT_LOCKED", out.Code)
}

func TestVerifyResetAndProfileOverHTTP(t *testing.T) {
	h, mail, engine := newStack(t)

	rec, out := do(t, h, "POST", "/api/auth/register", registerBody(), "")
	require.Equal(t, http.StatusCreated, rec.Code)
	_, token := userID(t, out.Data)

	verification := mail.next(t, carauth.EmailVerification)
	rec, _ = do(t, h, "POST", "/api/auth/verify-email/"+verification.Token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, out = do(t, h, "POST", "/api/auth/verify-email/"+verification.Token, nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_TOKEN", out.Code)

	rec, out = do(t, h, "GET", "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(out.Data), `"verified":true`)

	rec, _ = do(t, h, "POST", "/api/auth/forgot-password", map[string]string{"email": "alice@example.com"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	reset := mail.next(t, carauth.EmailPasswordReset)

	newPw := map[string]string{"password": "Changed123!", "confirmPassword": "Changed123!"}
	rec, _ = do(t, h, "POST", "/api/auth/reset-password/"+reset.Token, newPw, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, h, "POST", "/api/auth/reset-password/"+reset.Token, newPw, "")
	require.Equal(t, http.StatusBadRequest, rec.Code, "reset token is single use")

	rec, _ = do(t, h, "POST", "/api/auth/login", map[string]string{"email": "alice@example.com", "password": "Changed123!"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out = do(t, h, "PUT", "/api/profile", map[string]string{
		"newPassword": "Another123!", "currentPassword": "Secret123!",
	}, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PASSWORD", out.Code)

	rec, out = do(t, h, "PUT", "/api/profile", map[string]string{"fullName": "Alice Jones"}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(out.Data), `"fullName":"Alice Jones"`)

	assert.Equal(t, uint64(1), engine.MetricsSnapshot().Counters[carauth.MetricEmailVerificationSuccess])
	rec, _ = do(t, h, "GET", "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
