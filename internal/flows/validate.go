package flows

import (
	"context"
	"time"
)

// TokenClaims is the flow-local view of a verified session token.
type TokenClaims struct {
	Subject    string
	Email      string
	Roles      []string
	Membership string
	TokenID    string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

type ValidateMetrics struct {
	TokenRejected   int
	ValidateLatency int
}

type ValidateErrors struct {
	EngineNotReady error
	InvalidToken   error
}

// ValidateDeps captures session token validation dependencies. Nothing here
// reaches the credential store.
type ValidateDeps struct {
	Now func() time.Time

	Verify func(string) (TokenClaims, error)

	MetricInc func(int)
	Observe   func(int, time.Duration)
	Debug     func(string, ...any)

	Metrics ValidateMetrics
	Errors  ValidateErrors
}

// RunValidateToken verifies a session token. Every failure collapses into
// Errors.InvalidToken; the cause only reaches the debug log.
func RunValidateToken(ctx context.Context, token string, deps ValidateDeps) (TokenClaims, error) {
	if deps.Verify == nil {
		return TokenClaims{}, deps.Errors.EngineNotReady
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}

	start := deps.Now()
	claims, err := deps.Verify(token)
	if deps.Observe != nil {
		deps.Observe(deps.Metrics.ValidateLatency, deps.Now().Sub(start))
	}
	if err != nil {
		deps.MetricInc(deps.Metrics.TokenRejected)
		if deps.Debug != nil {
			deps.Debug("carauth: session token rejected", "error", err)
		}
		return TokenClaims{}, deps.Errors.InvalidToken
	}
	return claims, nil
}
