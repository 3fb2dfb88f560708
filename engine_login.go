package carauth

import (
	"context"
	"errors"

	internalflows "github.com/MrEthical07/carauth/internal/flows"
	"github.com/MrEthical07/carauth/internal/rate"
)

// Login authenticates email and password and issues a session token.
//
// Unknown emails and wrong passwords both return ErrInvalidCredentials. A
// locked account returns ErrAccountLocked without checking the password,
// and so does the failure that crosses the lockout threshold. With the
// login throttle enabled, a client IP over its budget gets
// ErrLoginRateLimited. Store failures surface as ErrStoreUnavailable.
func (e *Engine) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	res, err := e.flows.Login(ctx, internalflows.LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}
	return toAuthResult(res), nil
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	deps := internalflows.LoginDeps{
		Lockout:             e.lockout,
		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		Validate: func(req internalflows.LoginRequest) (internalflows.LoginRequest, error) {
			email, err := e.validator.login(req.Email, req.Password)
			if err != nil {
				return req, err
			}
			req.Email = email
			return req, nil
		},
		FindByEmail: func(ctx context.Context, email string) (internalflows.Account, error) {
			return e.findByEmail(ctx, email, true)
		},
		LoadLockout:        e.loadLockout,
		SwapLockout:        e.swapLockout,
		RecordLoginSuccess: e.recordLoginSuccess,
		VerifyPassword:     e.passwords.Verify,
		BurnPassword:       e.passwords.Burn,
		IssueToken:         e.issueFlowToken,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Warn:      e.warn,
		Metrics: internalflows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginLocked:      int(MetricLoginLocked),
			LoginRateLimited: int(MetricLoginRateLimited),
			AccountLocked:    int(MetricAccountLocked),
		},
		Events: internalflows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
			AccountLocked:    auditEventAccountLocked,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			AccountLocked:      ErrAccountLocked,
			AccountNotFound:    ErrAccountNotFound,
			LoginRateLimited:   ErrLoginRateLimited,
		},
	}

	if e.rateLimiter != nil {
		deps.CheckLoginRate = func(ctx context.Context, ip string) error {
			err := e.rateLimiter.CheckLogin(ctx, ip)
			if errors.Is(err, rate.ErrRateLimited) {
				return ErrLoginRateLimited
			}
			return err
		}
		deps.IncrementLoginRate = func(ctx context.Context, ip string) error {
			_, err := e.rateLimiter.IncrementLogin(ctx, ip)
			return err
		}
	}

	return deps
}
