package flows

import (
	"context"
	"errors"
	"time"
)

type EmailVerificationMetrics struct {
	EmailVerificationSuccess int
	EmailVerificationFailure int
}

type EmailVerificationEvents struct {
	EmailVerified      string
	EmailVerifyFailure string
}

type EmailVerificationErrors struct {
	EngineNotReady        error
	InvalidOrExpiredToken error
	AccountNotFound       error
	StaleAccount          error
}

// EmailVerificationDeps captures email verification dependencies.
type EmailVerificationDeps struct {
	Now func() time.Time

	WellFormed  func(string) bool
	HashToken   func(string) string
	FindByToken func(ctx context.Context, tokenHash string, now time.Time) (Account, error)
	SaveAccount func(context.Context, Account) (Account, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics EmailVerificationMetrics
	Events  EmailVerificationEvents
	Errors  EmailVerificationErrors
}

// RunVerifyEmail consumes a verification token. Unknown, expired, already
// used and concurrently consumed tokens all fail the same way.
func RunVerifyEmail(ctx context.Context, token string, deps EmailVerificationDeps) error {
	normalizeEmailVerificationDeps(&deps)
	if deps.WellFormed == nil || deps.HashToken == nil || deps.FindByToken == nil || deps.SaveAccount == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(r string) error {
		deps.MetricInc(deps.Metrics.EmailVerificationFailure)
		deps.EmitAudit(ctx, deps.Events.EmailVerifyFailure, false, "", deps.Errors.InvalidOrExpiredToken, reason(r))
		return deps.Errors.InvalidOrExpiredToken
	}

	if !deps.WellFormed(token) {
		return fail("malformed")
	}

	now := deps.Now()
	account, err := deps.FindByToken(ctx, deps.HashToken(token), now)
	if err != nil {
		if errors.Is(err, deps.Errors.AccountNotFound) {
			return fail("not_found")
		}
		return err
	}

	account.Verified = true
	account.VerificationTokenHash = ""
	account.VerificationExpiresAt = time.Time{}
	account.UpdatedAt = now

	if _, err := deps.SaveAccount(ctx, account); err != nil {
		if errors.Is(err, deps.Errors.StaleAccount) || errors.Is(err, deps.Errors.AccountNotFound) {
			return fail("concurrent_use")
		}
		return err
	}

	deps.MetricInc(deps.Metrics.EmailVerificationSuccess)
	deps.EmitAudit(ctx, deps.Events.EmailVerified, true, account.ID, nil, nil)
	return nil
}

func normalizeEmailVerificationDeps(deps *EmailVerificationDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
