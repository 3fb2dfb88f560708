package carauth

import (
	"context"
	"time"

	internalflows "github.com/MrEthical07/carauth/internal/flows"
	"github.com/MrEthical07/carauth/internal/lockout"
	"github.com/google/uuid"
)

func newFlowService(e *Engine) internalflows.Service {
	return internalflows.New(internalflows.Deps{
		Register:          e.registerFlowDeps(),
		Login:             e.loginFlowDeps(),
		EmailVerification: e.emailVerificationFlowDeps(),
		PasswordReset:     e.passwordResetFlowDeps(),
		Profile:           e.profileFlowDeps(),
		Validate:          e.validateFlowDeps(),
	})
}

func newAccountID() string {
	return uuid.NewString()
}

/*
====================================
STORE ADAPTERS
====================================
*/

func (e *Engine) findByEmail(ctx context.Context, email string, withCredential bool) (internalflows.Account, error) {
	acc, err := storeCall(ctx, e, "find_by_email", func(ctx context.Context) (*Account, error) {
		return e.store.FindByEmail(ctx, email, withCredential)
	})
	if err != nil {
		return internalflows.Account{}, err
	}
	return toFlowAccount(acc), nil
}

func (e *Engine) findByID(ctx context.Context, id string) (internalflows.Account, error) {
	acc, err := storeCall(ctx, e, "find_by_id", func(ctx context.Context) (*Account, error) {
		return e.store.FindByID(ctx, id)
	})
	if err != nil {
		return internalflows.Account{}, err
	}
	return toFlowAccount(acc), nil
}

func (e *Engine) findByToken(kind TokenKind) func(context.Context, string, time.Time) (internalflows.Account, error) {
	return func(ctx context.Context, tokenHash string, now time.Time) (internalflows.Account, error) {
		acc, err := storeCall(ctx, e, "find_by_token", func(ctx context.Context) (*Account, error) {
			return e.store.FindByToken(ctx, kind, tokenHash, now)
		})
		if err != nil {
			return internalflows.Account{}, err
		}
		return toFlowAccount(acc), nil
	}
}

func (e *Engine) createAccount(ctx context.Context, a internalflows.Account) (internalflows.Account, error) {
	acc, err := storeCall(ctx, e, "create", func(ctx context.Context) (*Account, error) {
		return e.store.Create(ctx, fromFlowAccount(a))
	})
	if err != nil {
		return internalflows.Account{}, err
	}
	return toFlowAccount(acc), nil
}

func (e *Engine) saveAccount(ctx context.Context, a internalflows.Account) (internalflows.Account, error) {
	acc, err := storeCall(ctx, e, "save", func(ctx context.Context) (*Account, error) {
		return e.store.Save(ctx, fromFlowAccount(a))
	})
	if err != nil {
		return internalflows.Account{}, err
	}
	return toFlowAccount(acc), nil
}

func (e *Engine) loadLockout(ctx context.Context, id string) (lockout.State, error) {
	acc, err := e.findByID(ctx, id)
	if err != nil {
		return lockout.State{}, err
	}
	return acc.Lockout, nil
}

func (e *Engine) swapLockout(ctx context.Context, id string, old, next lockout.State) (bool, error) {
	return storeCall(ctx, e, "swap_lockout", func(ctx context.Context) (bool, error) {
		return e.store.CompareAndSwapLockout(ctx, id, toLockoutState(old), toLockoutState(next))
	})
}

func (e *Engine) recordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	_, err := storeCall(ctx, e, "record_login_success", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.store.RecordLoginSuccess(ctx, id, at)
	})
	return err
}

/*
====================================
CONVERSIONS
====================================
*/

func toFlowAccount(a *Account) internalflows.Account {
	if a == nil {
		return internalflows.Account{}
	}
	return internalflows.Account{
		ID:           a.ID,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		FullName:     a.FullName,
		Phone:        a.Phone,
		Membership:   string(a.Membership),
		Role:         a.Role,
		Preferences: internalflows.Preferences{
			EmailNotifications: a.Preferences.EmailNotifications,
			SMSNotifications:   a.Preferences.SMSNotifications,
			Newsletter:         a.Preferences.Newsletter,
		},
		Verified:              a.Verified,
		VerificationTokenHash: a.VerificationTokenHash,
		VerificationExpiresAt: a.VerificationExpiresAt,
		ResetTokenHash:        a.ResetTokenHash,
		ResetExpiresAt:        a.ResetExpiresAt,
		Lockout: lockout.State{
			FailedAttempts: a.FailedAttempts,
			LockUntil:      a.LockUntil,
		},
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		LastLoginAt: a.LastLoginAt,
		Version:     a.Version,
	}
}

func fromFlowAccount(a internalflows.Account) *Account {
	return &Account{
		ID:           a.ID,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		FullName:     a.FullName,
		Phone:        a.Phone,
		Membership:   Membership(a.Membership),
		Role:         a.Role,
		Preferences: Preferences{
			EmailNotifications: a.Preferences.EmailNotifications,
			SMSNotifications:   a.Preferences.SMSNotifications,
			Newsletter:         a.Preferences.Newsletter,
		},
		Verified:              a.Verified,
		VerificationTokenHash: a.VerificationTokenHash,
		VerificationExpiresAt: a.VerificationExpiresAt,
		ResetTokenHash:        a.ResetTokenHash,
		ResetExpiresAt:        a.ResetExpiresAt,
		FailedAttempts:        a.Lockout.FailedAttempts,
		LockUntil:             a.Lockout.LockUntil,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
		LastLoginAt:           a.LastLoginAt,
		Version:               a.Version,
	}
}

func toLockoutState(s lockout.State) LockoutState {
	return LockoutState{FailedAttempts: s.FailedAttempts, LockUntil: s.LockUntil}
}

func toFlowPreferences(p Preferences) internalflows.Preferences {
	return internalflows.Preferences{
		EmailNotifications: p.EmailNotifications,
		SMSNotifications:   p.SMSNotifications,
		Newsletter:         p.Newsletter,
	}
}

func viewOf(a internalflows.Account) AccountView {
	return fromFlowAccount(a).View()
}

func toAuthResult(r *internalflows.AuthResult) *AuthResult {
	if r == nil {
		return nil
	}
	return &AuthResult{
		Account:   viewOf(r.Account),
		Token:     r.Token,
		ExpiresAt: r.ExpiresAt,
	}
}
