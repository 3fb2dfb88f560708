package carauth

import (
	"context"
	"net/http"
	"time"

	internalflows "github.com/MrEthical07/carauth/internal/flows"
	"github.com/MrEthical07/carauth/jwt"
)

// ValidateToken verifies a session token and returns the identity it
// asserts. Every failure is reported as ErrInvalidToken. The store is not
// consulted.
func (e *Engine) ValidateToken(ctx context.Context, token string) (*Identity, error) {
	claims, err := e.flows.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Identity{
		ID:         claims.Subject,
		Email:      claims.Email,
		Roles:      claims.Roles,
		Membership: claims.Membership,
		TokenID:    claims.TokenID,
		IssuedAt:   claims.IssuedAt,
		ExpiresAt:  claims.ExpiresAt,
	}, nil
}

// IssueToken signs a session token for account.
func (e *Engine) IssueToken(account AccountView) (string, time.Time, error) {
	return e.jwtManager.Issue(jwt.Subject{
		ID:         account.ID,
		Email:      account.Email,
		Roles:      rolesOf(account.Role),
		Membership: string(account.Membership),
	})
}

// TokenTTL returns the session token lifetime.
func (e *Engine) TokenTTL() time.Duration {
	return e.config.JWT.TTL
}

// CookieName returns the name of the session cookie.
func (e *Engine) CookieName() string {
	return e.config.Cookie.Name
}

// SessionCookie builds the cookie carrying token. Production mode marks it
// Secure and SameSite=Strict; development uses SameSite=Lax.
func (e *Engine) SessionCookie(token string, expiresAt time.Time) *http.Cookie {
	c := e.baseCookie()
	c.Value = token
	c.Expires = expiresAt.UTC()
	c.MaxAge = int(e.config.JWT.TTL / time.Second)
	return c
}

// ClearSessionCookie builds a cookie that deletes the session cookie.
func (e *Engine) ClearSessionCookie() *http.Cookie {
	c := e.baseCookie()
	c.Expires = time.Unix(0, 0).UTC()
	c.MaxAge = -1
	return c
}

func (e *Engine) baseCookie() *http.Cookie {
	prod := e.config.Security.ProductionMode
	sameSite := http.SameSiteLaxMode
	if prod {
		sameSite = http.SameSiteStrictMode
	}
	path := e.config.Cookie.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     e.config.Cookie.Name,
		Path:     path,
		Domain:   e.config.Cookie.Domain,
		HttpOnly: true,
		Secure:   prod,
		SameSite: sameSite,
	}
}

func (e *Engine) issueFlowToken(a internalflows.Account) (string, time.Time, error) {
	return e.jwtManager.Issue(jwt.Subject{
		ID:         a.ID,
		Email:      a.Email,
		Roles:      rolesOf(a.Role),
		Membership: a.Membership,
	})
}

func rolesOf(role string) []string {
	if role == "" {
		return []string{RoleCustomer}
	}
	return []string{role}
}

func (e *Engine) validateFlowDeps() internalflows.ValidateDeps {
	return internalflows.ValidateDeps{
		Now: time.Now,
		Verify: func(token string) (internalflows.TokenClaims, error) {
			claims, err := e.jwtManager.Verify(token)
			if err != nil {
				return internalflows.TokenClaims{}, err
			}
			out := internalflows.TokenClaims{
				Subject:    claims.Subject,
				Email:      claims.Email,
				Roles:      claims.Roles,
				Membership: claims.Membership,
				TokenID:    claims.ID,
			}
			if claims.IssuedAt != nil {
				out.IssuedAt = claims.IssuedAt.Time
			}
			if claims.ExpiresAt != nil {
				out.ExpiresAt = claims.ExpiresAt.Time
			}
			return out, nil
		},
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		Observe: func(id int, d time.Duration) {
			if e.metrics != nil {
				e.metrics.Observe(MetricID(id), d)
			}
		},
		Debug: e.logger.Debug,
		Metrics: internalflows.ValidateMetrics{
			TokenRejected:   int(MetricTokenRejected),
			ValidateLatency: int(MetricValidateLatency),
		},
		Errors: internalflows.ValidateErrors{
			EngineNotReady: ErrEngineNotReady,
			InvalidToken:   ErrInvalidToken,
		},
	}
}
