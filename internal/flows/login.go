package flows

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/carauth/internal/lockout"
)

// LoginRequest is the flow-local login input.
type LoginRequest struct {
	Email    string
	Password string
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginLocked      int
	LoginRateLimited int
	AccountLocked    int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
	AccountLocked    string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	AccountLocked      error
	AccountNotFound    error
	LoginRateLimited   error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Lockout lockout.Policy

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	Validate func(LoginRequest) (LoginRequest, error)

	// CheckLoginRate returns Errors.LoginRateLimited when the caller is
	// throttled. Other errors are logged and ignored.
	CheckLoginRate     func(context.Context, string) error
	IncrementLoginRate func(context.Context, string) error

	FindByEmail        func(context.Context, string) (Account, error)
	LoadLockout        func(context.Context, string) (lockout.State, error)
	SwapLockout        func(ctx context.Context, id string, old, next lockout.State) (bool, error)
	RecordLoginSuccess func(context.Context, string, time.Time) error

	VerifyPassword func(password, encodedHash string) (bool, error)
	// BurnPassword spends the same work as a real verification.
	BurnPassword func(string)
	IssueToken   func(Account) (string, time.Time, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin authenticates email and password under the lockout policy and
// issues a session token.
//
// Unknown email and wrong password produce the same error. A locked account
// is refused before the password is looked at. Store failures pass through
// untouched so they are never reported as bad credentials.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) (*AuthResult, error) {
	normalizeLoginDeps(&deps)
	if deps.Validate == nil ||
		deps.FindByEmail == nil ||
		deps.LoadLockout == nil ||
		deps.SwapLockout == nil ||
		deps.RecordLoginSuccess == nil ||
		deps.VerifyPassword == nil ||
		deps.BurnPassword == nil ||
		deps.IssueToken == nil {
		return nil, deps.Errors.EngineNotReady
	}

	req, err := deps.Validate(req)
	if err != nil {
		return nil, err
	}

	ip := deps.ClientIPFromContext(ctx)
	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, ip); err != nil {
			if errors.Is(err, deps.Errors.LoginRateLimited) {
				deps.MetricInc(deps.Metrics.LoginRateLimited)
				deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", err, nil)
				return nil, deps.Errors.LoginRateLimited
			}
			deps.Warn("carauth: login throttle check failed", "error", err)
		}
	}

	account, err := deps.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, deps.Errors.AccountNotFound) {
			return nil, err
		}
		deps.BurnPassword(req.Password)
		recordThrottledFailure(ctx, ip, deps)
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", deps.Errors.InvalidCredentials, reason("unknown_email"))
		return nil, deps.Errors.InvalidCredentials
	}

	now := deps.Now()
	if deps.Lockout.Status(account.Lockout, now) == lockout.Locked {
		recordThrottledFailure(ctx, ip, deps)
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, account.ID, deps.Errors.AccountLocked, reason("locked"))
		return nil, deps.Errors.AccountLocked
	}

	ok, err := deps.VerifyPassword(req.Password, account.PasswordHash)
	if err != nil {
		return nil, err
	}
	req.Password = ""

	if !ok {
		next, err := deps.Lockout.RecordFailure(ctx, account.Lockout, now,
			func(ctx context.Context) (lockout.State, error) {
				return deps.LoadLockout(ctx, account.ID)
			},
			func(ctx context.Context, old, next lockout.State) (bool, error) {
				return deps.SwapLockout(ctx, account.ID, old, next)
			},
		)
		if err != nil {
			return nil, err
		}
		recordThrottledFailure(ctx, ip, deps)
		deps.MetricInc(deps.Metrics.LoginFailure)

		if deps.Lockout.Status(next, now) == lockout.Locked {
			deps.MetricInc(deps.Metrics.AccountLocked)
			deps.EmitAudit(ctx, deps.Events.AccountLocked, false, account.ID, deps.Errors.AccountLocked, func() map[string]string {
				return map[string]string{
					"failed_attempts": strconv.Itoa(next.FailedAttempts),
					"lock_until":      next.LockUntil.UTC().Format(time.RFC3339),
				}
			})
		}

		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, account.ID, deps.Errors.InvalidCredentials, reason("password_mismatch"))
		return nil, deps.Errors.InvalidCredentials
	}

	if err := deps.RecordLoginSuccess(ctx, account.ID, now); err != nil {
		return nil, err
	}
	account.Lockout = deps.Lockout.OnSuccess()
	account.LastLoginAt = now
	account.PasswordHash = ""

	token, expiresAt, err := deps.IssueToken(account)
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, account.ID, nil, nil)

	return &AuthResult{Account: account, Token: token, ExpiresAt: expiresAt}, nil
}

func recordThrottledFailure(ctx context.Context, ip string, deps LoginDeps) {
	if deps.IncrementLoginRate == nil {
		return
	}
	if err := deps.IncrementLoginRate(ctx, ip); err != nil {
		deps.Warn("carauth: login throttle increment failed", "error", err)
	}
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
}
