package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/carauth"
)

type stubVerifier struct {
	tokens map[string]*carauth.Identity
	calls  []string
}

func (s *stubVerifier) ValidateToken(_ context.Context, token string) (*carauth.Identity, error) {
	s.calls = append(s.calls, token)
	if id, ok := s.tokens[token]; ok {
		return id, nil
	}
	return nil, carauth.ErrInvalidToken
}

func newStubGate() (*Gate, *stubVerifier) {
	v := &stubVerifier{tokens: map[string]*carauth.Identity{
		"customer-token": {ID: "acc-1", Email: "alice@example.com", Roles: []string{carauth.RoleCustomer}},
		"admin-token":    {ID: "acc-2", Email: "ops@example.com", Roles: []string{carauth.RoleAdmin}},
	}}
	return NewGate(v, "", nil), v
}

// echo answers 200 with the id of the identity in context, or "anonymous".
func echo() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = w.Write([]byte(id.ID))
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Status != "error" {
		t.Fatalf("expected error envelope, got %+v", body)
	}
	return body
}

func TestRequiredRejectsMissingToken(t *testing.T) {
	g, _ := newStubGate()
	rec := httptest.NewRecorder()
	g.Required()(echo()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != "AUTH_REQUIRED" || body.Message != "Authentication required" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRequiredRejectsInvalidTokenUniformly(t *testing.T) {
	g, _ := newStubGate()
	for _, header := range []string{"Bearer forged", "Bearer expired", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		g.Required()(echo()).ServeHTTP(rec, req)

		body := decodeError(t, rec)
		if header == "Bearer " {
			if body.Code != "AUTH_REQUIRED" {
				t.Fatalf("empty bearer: expected AUTH_REQUIRED, got %+v", body)
			}
			continue
		}
		if rec.Code != http.StatusUnauthorized || body.Code != "INVALID_TOKEN" || body.Message != "Invalid or expired session" {
			t.Fatalf("%q: unexpected response %d %+v", header, rec.Code, body)
		}
	}
}

func TestRequiredAcceptsBearerAndCookie(t *testing.T) {
	g, _ := newStubGate()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer customer-token")
	rec := httptest.NewRecorder()
	g.Required()(echo()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "acc-1" {
		t.Fatalf("bearer: unexpected response %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "admin-token"})
	rec = httptest.NewRecorder()
	g.Required()(echo()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "acc-2" {
		t.Fatalf("cookie: unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestCookieWinsOverHeader(t *testing.T) {
	g, v := newStubGate()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "admin-token"})
	req.Header.Set("Authorization", "Bearer customer-token")
	rec := httptest.NewRecorder()
	g.Required()(echo()).ServeHTTP(rec, req)

	if rec.Body.String() != "acc-2" {
		t.Fatalf("expected cookie identity, got %q", rec.Body.String())
	}
	if len(v.calls) != 1 || v.calls[0] != "admin-token" {
		t.Fatalf("expected single cookie verification, got %v", v.calls)
	}
}

func TestOptionalModes(t *testing.T) {
	g, _ := newStubGate()
	h := g.Optional()(echo())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Fatalf("anonymous: unexpected response %d %q", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer customer-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Body.String() != "acc-1" {
		t.Fatalf("expected identity, got %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || decodeError(t, rec).Code != "INVALID_TOKEN" {
		t.Fatalf("invalid token must be rejected, got %d", rec.Code)
	}
}

func TestRequireRoles(t *testing.T) {
	g, _ := newStubGate()
	h := g.RequireRoles(carauth.RoleAdmin)(echo())

	cases := []struct {
		token string
		want  int
		code  string
	}{
		{"", http.StatusUnauthorized, "AUTH_REQUIRED"},
		{"forged", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"customer-token", http.StatusForbidden, "FORBIDDEN"},
		{"admin-token", http.StatusOK, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != tc.want {
			t.Fatalf("token %q: expected %d, got %d", tc.token, tc.want, rec.Code)
		}
		if tc.code != "" {
			if body := decodeError(t, rec); body.Code != tc.code {
				t.Fatalf("token %q: expected %s, got %+v", tc.token, tc.code, body)
			}
		}
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer abc":   "abc",
		"Bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for in, want := range cases {
		got, ok := bearerToken(in)
		if got != want || ok != (want != "") {
			t.Fatalf("bearerToken(%q) = %q, %v", in, got, ok)
		}
	}
}
