package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/carauth"
)

// TokenVerifier verifies a session token. *carauth.Engine satisfies it.
type TokenVerifier interface {
	ValidateToken(ctx context.Context, token string) (*carauth.Identity, error)
}

// Gate builds authentication middleware around a TokenVerifier.
type Gate struct {
	verifier   TokenVerifier
	cookieName string
	logger     *slog.Logger
}

// NewGate returns a Gate reading the session cookie cookieName. An empty
// name falls back to "token"; a nil logger discards rejection logs.
func NewGate(verifier TokenVerifier, cookieName string, logger *slog.Logger) *Gate {
	if cookieName == "" {
		cookieName = "token"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{verifier: verifier, cookieName: cookieName, logger: logger}
}

// Required rejects requests that do not carry a valid session token.
func (g *Gate) Required() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := g.authenticate(w, r, true)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// Optional attaches the identity when a valid token is present and lets
// anonymous requests through untouched.
func (g *Gate) Optional() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := g.authenticate(w, r, false)
			if !ok {
				return
			}
			if identity != nil {
				r = r.WithContext(WithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate writes the rejection itself and reports false when the
// request must stop. A nil identity with true means anonymous.
func (g *Gate) authenticate(w http.ResponseWriter, r *http.Request, required bool) (*carauth.Identity, bool) {
	token, found := g.extractToken(r)
	if !found {
		if !required {
			return nil, true
		}
		g.reject(w, r, carauth.ErrAuthenticationRequired)
		return nil, false
	}

	if g.verifier == nil {
		g.reject(w, r, carauth.ErrInvalidToken)
		return nil, false
	}

	identity, err := g.verifier.ValidateToken(r.Context(), token)
	if err != nil || identity == nil {
		g.reject(w, r, carauth.ErrInvalidToken)
		return nil, false
	}
	return identity, true
}

// extractToken prefers the session cookie over the Authorization header.
func (g *Gate) extractToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(g.cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, err error) {
	g.logger.Warn("request rejected by auth gate",
		slog.String("path", r.URL.Path),
		slog.String("client_ip", clientIP(r)),
		slog.String("reason", err.Error()),
	)
	writeError(w, err)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
