package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.Verify != nil
}

func (s Service) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	return RunRegister(ctx, req, s.deps.Register)
}

func (s Service) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	return RunLogin(ctx, req, s.deps.Login)
}

func (s Service) VerifyEmail(ctx context.Context, token string) error {
	return RunVerifyEmail(ctx, token, s.deps.EmailVerification)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) error {
	return RunRequestPasswordReset(ctx, email, s.deps.PasswordReset)
}

func (s Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return RunResetPassword(ctx, token, newPassword, s.deps.PasswordReset)
}

func (s Service) UpdateProfile(ctx context.Context, accountID string, upd ProfileUpdate) (Account, error) {
	return RunUpdateProfile(ctx, accountID, upd, s.deps.Profile)
}

func (s Service) ValidateToken(ctx context.Context, token string) (TokenClaims, error) {
	return RunValidateToken(ctx, token, s.deps.Validate)
}
