package carauth

import (
	"context"
	"strings"

	internalflows "github.com/MrEthical07/carauth/internal/flows"
)

// Register creates an unverified Bronze customer account and signs it in.
//
// Input is validated first; all failing fields are reported together in a
// *ValidationError. A taken email returns ErrDuplicateAccount. The
// verification email is queued before returning and its delivery never
// affects the result.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	res, err := e.flows.Register(ctx, internalflows.RegisterRequest{
		FullName: in.FullName,
		Email:    in.Email,
		Password: in.Password,
		Phone:    in.Phone,
	})
	if err != nil {
		return nil, err
	}
	return toAuthResult(res), nil
}

// UpdateProfile applies upd to the account and returns the new view.
//
// Changing the password requires CurrentPassword (ErrInvalidPassword). A new
// email marks the account unverified and sends a fresh verification email.
func (e *Engine) UpdateProfile(ctx context.Context, accountID string, upd ProfileUpdate) (*AccountView, error) {
	flowUpd := internalflows.ProfileUpdate{
		FullName:        upd.FullName,
		Phone:           upd.Phone,
		Email:           upd.Email,
		CurrentPassword: upd.CurrentPassword,
		NewPassword:     upd.NewPassword,
	}
	if upd.Preferences != nil {
		p := toFlowPreferences(*upd.Preferences)
		flowUpd.Preferences = &p
	}

	acc, err := e.flows.UpdateProfile(ctx, accountID, flowUpd)
	if err != nil {
		return nil, err
	}
	view := viewOf(acc)
	return &view, nil
}

// GetAccount returns the view of accountID, or ErrAccountNotFound.
func (e *Engine) GetAccount(ctx context.Context, accountID string) (*AccountView, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(accountID) == "" {
		return nil, ErrAccountNotFound
	}
	acc, err := e.findByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	view := viewOf(acc)
	return &view, nil
}

func (e *Engine) registerFlowDeps() internalflows.RegisterDeps {
	return internalflows.RegisterDeps{
		VerificationTTL: e.config.EmailVerification.TokenTTL,
		Membership:      string(MembershipBronze),
		Role:            RoleCustomer,
		Preferences:     toFlowPreferences(DefaultPreferences()),
		Now:             e.now,
		NewID:           newAccountID,
		Validate: func(req internalflows.RegisterRequest) (internalflows.RegisterRequest, error) {
			in, err := e.validator.register(RegisterInput{
				FullName: req.FullName,
				Email:    req.Email,
				Password: req.Password,
				Phone:    req.Phone,
			})
			if err != nil {
				return req, err
			}
			return internalflows.RegisterRequest{
				FullName: in.FullName,
				Email:    in.Email,
				Password: in.Password,
				Phone:    in.Phone,
			}, nil
		},
		HashPassword:          e.passwords.Hash,
		NewSecret:             e.secrets.New,
		CreateAccount:         e.createAccount,
		IssueToken:            e.issueFlowToken,
		SendVerificationEmail: e.mailer(EmailVerification),
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.RegisterMetrics{
			RegisterSuccess:   int(MetricRegisterSuccess),
			RegisterDuplicate: int(MetricRegisterDuplicate),
		},
		Events: internalflows.RegisterEvents{
			Register:        auditEventRegister,
			RegisterFailure: auditEventRegisterFailure,
		},
		Errors: internalflows.RegisterErrors{
			EngineNotReady:   ErrEngineNotReady,
			DuplicateAccount: ErrDuplicateAccount,
		},
	}
}

func (e *Engine) profileFlowDeps() internalflows.ProfileDeps {
	return internalflows.ProfileDeps{
		VerificationTTL: e.config.EmailVerification.TokenTTL,
		Now:             e.now,
		Validate: func(upd internalflows.ProfileUpdate) (internalflows.ProfileUpdate, error) {
			out, err := e.validator.profile(ProfileUpdate{
				FullName:        upd.FullName,
				Phone:           upd.Phone,
				Email:           upd.Email,
				CurrentPassword: upd.CurrentPassword,
				NewPassword:     upd.NewPassword,
			})
			if err != nil {
				return upd, err
			}
			upd.FullName = out.FullName
			upd.Phone = out.Phone
			upd.Email = out.Email
			return upd, nil
		},
		FindByID:              e.findByID,
		SaveAccount:           e.saveAccount,
		VerifyPassword:        e.passwords.Verify,
		HashPassword:          e.passwords.Hash,
		NewSecret:             e.secrets.New,
		SendVerificationEmail: e.mailer(EmailVerification),
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.emitAudit,
		Metrics: internalflows.ProfileMetrics{
			ProfileUpdate:                int(MetricProfileUpdate),
			PasswordChangeSuccess:        int(MetricPasswordChangeSuccess),
			PasswordChangeInvalidCurrent: int(MetricPasswordChangeInvalidCurrent),
		},
		Events: internalflows.ProfileEvents{
			ProfileUpdate:  auditEventProfileUpdate,
			PasswordChange: auditEventPasswordChange,
		},
		Errors: internalflows.ProfileErrors{
			EngineNotReady:  ErrEngineNotReady,
			InvalidPassword: ErrInvalidPassword,
			StaleAccount:    ErrStaleAccount,
		},
	}
}
