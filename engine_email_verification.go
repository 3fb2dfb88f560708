package carauth

import (
	"context"

	internalflows "github.com/MrEthical07/carauth/internal/flows"
	"github.com/MrEthical07/carauth/internal/secret"
)

// VerifyEmail consumes a verification token and marks its account verified.
//
// Unknown, expired, malformed and already-used tokens all return
// ErrInvalidOrExpiredToken. Concurrent use of one token succeeds at most once.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	return e.flows.VerifyEmail(ctx, token)
}

func (e *Engine) emailVerificationFlowDeps() internalflows.EmailVerificationDeps {
	return internalflows.EmailVerificationDeps{
		Now:         e.now,
		WellFormed:  secret.WellFormed,
		HashToken:   secret.Hash,
		FindByToken: e.findByToken(TokenVerification),
		SaveAccount: e.saveAccount,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.EmailVerificationMetrics{
			EmailVerificationSuccess: int(MetricEmailVerificationSuccess),
			EmailVerificationFailure: int(MetricEmailVerificationFailure),
		},
		Events: internalflows.EmailVerificationEvents{
			EmailVerified:      auditEventEmailVerified,
			EmailVerifyFailure: auditEventEmailVerifyFailure,
		},
		Errors: internalflows.EmailVerificationErrors{
			EngineNotReady:        ErrEngineNotReady,
			InvalidOrExpiredToken: ErrInvalidOrExpiredToken,
			AccountNotFound:       ErrAccountNotFound,
			StaleAccount:          ErrStaleAccount,
		},
	}
}
