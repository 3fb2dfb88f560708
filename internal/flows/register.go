package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/carauth/internal/secret"
)

// RegisterRequest is the flow-local registration input.
type RegisterRequest struct {
	FullName string
	Email    string
	Password string
	Phone    string
}

type RegisterMetrics struct {
	RegisterSuccess   int
	RegisterDuplicate int
}

type RegisterEvents struct {
	Register        string
	RegisterFailure string
}

type RegisterErrors struct {
	EngineNotReady   error
	DuplicateAccount error
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	VerificationTTL time.Duration
	Membership      string
	Role            string
	Preferences     Preferences

	Now   func() time.Time
	NewID func() string

	// Validate returns the normalized request or a validation error.
	Validate      func(RegisterRequest) (RegisterRequest, error)
	HashPassword  func(string) (string, error)
	NewSecret     func(now time.Time, ttl time.Duration) (secret.Token, error)
	CreateAccount func(context.Context, Account) (Account, error)
	IssueToken    func(Account) (string, time.Time, error)

	SendVerificationEmail MailFunc

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister validates input, persists a new unverified account, queues the
// verification email and issues a session token.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (*AuthResult, error) {
	normalizeRegisterDeps(&deps)
	if deps.Validate == nil ||
		deps.HashPassword == nil ||
		deps.NewSecret == nil ||
		deps.CreateAccount == nil ||
		deps.IssueToken == nil ||
		deps.NewID == nil {
		return nil, deps.Errors.EngineNotReady
	}

	req, err := deps.Validate(req)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", err, reason("validation"))
		return nil, err
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	req.Password = ""

	now := deps.Now()
	verification, err := deps.NewSecret(now, deps.VerificationTTL)
	if err != nil {
		return nil, err
	}

	created, err := deps.CreateAccount(ctx, Account{
		ID:                    deps.NewID(),
		Email:                 req.Email,
		PasswordHash:          hash,
		FullName:              req.FullName,
		Phone:                 req.Phone,
		Membership:            deps.Membership,
		Role:                  deps.Role,
		Preferences:           deps.Preferences,
		Verified:              false,
		VerificationTokenHash: verification.Hash,
		VerificationExpiresAt: verification.ExpiresAt,
		CreatedAt:             now,
		UpdatedAt:             now,
	})
	if err != nil {
		if errors.Is(err, deps.Errors.DuplicateAccount) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", err, reason("duplicate"))
		}
		return nil, err
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.Register, true, created.ID, nil, nil)

	if deps.SendVerificationEmail != nil {
		deps.SendVerificationEmail(ctx, created, verification.Value)
	}

	token, expiresAt, err := deps.IssueToken(created)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Account: created, Token: token, ExpiresAt: expiresAt}, nil
}

func normalizeRegisterDeps(deps *RegisterDeps) {
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
