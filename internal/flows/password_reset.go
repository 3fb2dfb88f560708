package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/carauth/internal/secret"
)

const maxResetSaveAttempts = 3

type PasswordResetMetrics struct {
	PasswordResetRequest        int
	PasswordResetConfirmSuccess int
	PasswordResetConfirmFailure int
}

type PasswordResetEvents struct {
	PasswordResetRequest string
	PasswordResetConfirm string
}

type PasswordResetErrors struct {
	EngineNotReady        error
	InvalidOrExpiredToken error
	AccountNotFound       error
	StaleAccount          error
}

// PasswordResetDeps captures request and confirm dependencies.
type PasswordResetDeps struct {
	ResetTTL time.Duration

	Now func() time.Time

	NormalizeEmail   func(string) (string, bool)
	ValidatePassword func(string) error

	FindByEmail func(context.Context, string) (Account, error)
	FindByToken func(ctx context.Context, tokenHash string, now time.Time) (Account, error)
	SaveAccount func(context.Context, Account) (Account, error)

	NewSecret    func(now time.Time, ttl time.Duration) (secret.Token, error)
	WellFormed   func(string) bool
	HashToken    func(string) string
	HashPassword func(string) (string, error)

	SendResetEmail MailFunc
	// PadResponse starts the response pad for a reset request. The returned
	// func blocks until the padded deadline and runs on every return path.
	PadResponse func(context.Context) func()

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

// RunRequestPasswordReset stores a fresh reset token for a known account and
// mails it. Unknown and malformed emails return nil too, and every path is
// held to the same padded duration. Only store failures surface.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	if deps.NormalizeEmail == nil || deps.FindByEmail == nil || deps.SaveAccount == nil || deps.NewSecret == nil {
		return deps.Errors.EngineNotReady
	}
	wait := deps.PadResponse(ctx)
	defer wait()

	deps.MetricInc(deps.Metrics.PasswordResetRequest)

	normalized, ok := deps.NormalizeEmail(email)
	if !ok {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", nil, reason("malformed_email"))
		return nil
	}

	var (
		saved Account
		token secret.Token
	)
	for attempt := 0; ; attempt++ {
		account, err := deps.FindByEmail(ctx, normalized)
		if err != nil {
			if errors.Is(err, deps.Errors.AccountNotFound) {
				deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", nil, reason("unknown_email"))
				return nil
			}
			return err
		}

		now := deps.Now()
		token, err = deps.NewSecret(now, deps.ResetTTL)
		if err != nil {
			return err
		}
		account.ResetTokenHash = token.Hash
		account.ResetExpiresAt = token.ExpiresAt
		account.UpdatedAt = now

		saved, err = deps.SaveAccount(ctx, account)
		if err == nil {
			break
		}
		if !errors.Is(err, deps.Errors.StaleAccount) || attempt+1 >= maxResetSaveAttempts {
			return err
		}
	}

	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, saved.ID, nil, nil)
	if deps.SendResetEmail != nil {
		deps.SendResetEmail(ctx, saved, token.Value)
	}
	return nil
}

// RunResetPassword consumes a reset token and replaces the credential.
// Lockout state is not touched.
func RunResetPassword(ctx context.Context, token, newPassword string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	if deps.ValidatePassword == nil || deps.WellFormed == nil || deps.HashToken == nil ||
		deps.FindByToken == nil || deps.SaveAccount == nil || deps.HashPassword == nil {
		return deps.Errors.EngineNotReady
	}

	if err := deps.ValidatePassword(newPassword); err != nil {
		return err
	}

	fail := func(accountID, r string) error {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, accountID, deps.Errors.InvalidOrExpiredToken, reason(r))
		return deps.Errors.InvalidOrExpiredToken
	}

	if !deps.WellFormed(token) {
		return fail("", "malformed")
	}

	now := deps.Now()
	account, err := deps.FindByToken(ctx, deps.HashToken(token), now)
	if err != nil {
		if errors.Is(err, deps.Errors.AccountNotFound) {
			return fail("", "not_found")
		}
		return err
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return err
	}
	account.PasswordHash = hash
	account.ResetTokenHash = ""
	account.ResetExpiresAt = time.Time{}
	account.UpdatedAt = now

	if _, err := deps.SaveAccount(ctx, account); err != nil {
		if errors.Is(err, deps.Errors.StaleAccount) || errors.Is(err, deps.Errors.AccountNotFound) {
			return fail(account.ID, "concurrent_use")
		}
		return err
	}

	deps.MetricInc(deps.Metrics.PasswordResetConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, true, account.ID, nil, nil)
	return nil
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.PadResponse == nil {
		deps.PadResponse = func(context.Context) func() { return func() {} }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
