package carauth

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	internalflows "github.com/MrEthical07/carauth/internal/flows"
	"github.com/MrEthical07/carauth/internal/secret"
)

// RequestPasswordReset mails a reset token to email if an account holds it.
//
// The result is nil whether or not the email is known, and every call is
// padded to the same window, so neither the answer nor its timing tells
// callers which emails are registered. Only ErrStoreUnavailable surfaces.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	return e.flows.RequestPasswordReset(ctx, email)
}

// ResetPassword consumes a reset token and replaces the account password.
//
// The new password must satisfy the password policy (*ValidationError).
// Unknown, expired and used tokens return ErrInvalidOrExpiredToken. The
// lockout state of the account is not changed.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	return e.flows.ResetPassword(ctx, token, newPassword)
}

func (e *Engine) passwordResetFlowDeps() internalflows.PasswordResetDeps {
	return internalflows.PasswordResetDeps{
		ResetTTL: e.config.PasswordReset.TokenTTL,
		Now:      e.now,
		NormalizeEmail: func(email string) (string, bool) {
			email = normalizeEmail(email)
			return email, validEmail(email)
		},
		ValidatePassword: func(pw string) error {
			return e.validator.password("password", pw)
		},
		FindByEmail: func(ctx context.Context, email string) (internalflows.Account, error) {
			return e.findByEmail(ctx, email, true)
		},
		FindByToken:    e.findByToken(TokenReset),
		SaveAccount:    e.saveAccount,
		NewSecret:      e.secrets.New,
		WellFormed:     secret.WellFormed,
		HashToken:      secret.Hash,
		HashPassword:   e.passwords.Hash,
		SendResetEmail: e.mailer(EmailPasswordReset),
		PadResponse:    padPasswordResetResponse,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.PasswordResetMetrics{
			PasswordResetRequest:        int(MetricPasswordResetRequest),
			PasswordResetConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
			PasswordResetConfirmFailure: int(MetricPasswordResetConfirmFailure),
		},
		Events: internalflows.PasswordResetEvents{
			PasswordResetRequest: auditEventPasswordResetRequest,
			PasswordResetConfirm: auditEventPasswordResetConfirm,
		},
		Errors: internalflows.PasswordResetErrors{
			EngineNotReady:        ErrEngineNotReady,
			InvalidOrExpiredToken: ErrInvalidOrExpiredToken,
			AccountNotFound:       ErrAccountNotFound,
			StaleAccount:          ErrStaleAccount,
		},
	}
}

const (
	resetPadMin = 20 * time.Millisecond
	resetPadMax = 40 * time.Millisecond
)

// padPasswordResetResponse picks a deadline 20-40ms after now. The returned
// func sleeps until that deadline, so known, unknown and malformed emails
// all answer in the same window.
func padPasswordResetResponse(ctx context.Context) func() {
	start := time.Now()
	target := resetPadMin
	if n, err := rand.Int(rand.Reader, big.NewInt(int64(resetPadMax-resetPadMin)+1)); err == nil {
		target += time.Duration(n.Int64())
	}

	return func() {
		remaining := target - time.Since(start)
		if remaining <= 0 {
			return
		}
		timer := time.NewTimer(remaining)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}
}
