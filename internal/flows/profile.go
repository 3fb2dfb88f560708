package flows

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/carauth/internal/secret"
)

const maxProfileSaveAttempts = 3

// ProfileUpdate is the flow-local profile change set. Nil pointers are left
// untouched.
type ProfileUpdate struct {
	FullName    *string
	Phone       *string
	Email       *string
	Preferences *Preferences

	CurrentPassword string
	NewPassword     string
}

type ProfileMetrics struct {
	ProfileUpdate                int
	PasswordChangeSuccess        int
	PasswordChangeInvalidCurrent int
}

type ProfileEvents struct {
	ProfileUpdate  string
	PasswordChange string
}

type ProfileErrors struct {
	EngineNotReady  error
	InvalidPassword error
	StaleAccount    error
}

// ProfileDeps captures profile update dependencies.
type ProfileDeps struct {
	VerificationTTL time.Duration

	Now func() time.Time

	// Validate returns the normalized update or a validation error.
	Validate       func(ProfileUpdate) (ProfileUpdate, error)
	FindByID       func(context.Context, string) (Account, error)
	SaveAccount    func(context.Context, Account) (Account, error)
	VerifyPassword func(password, encodedHash string) (bool, error)
	HashPassword   func(string) (string, error)
	NewSecret      func(now time.Time, ttl time.Duration) (secret.Token, error)

	SendVerificationEmail MailFunc

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics ProfileMetrics
	Events  ProfileEvents
	Errors  ProfileErrors
}

// RunUpdateProfile applies the allow-listed fields of upd to the account.
//
// A new password needs the current one. A new email drops the verified flag
// and mails a fresh verification token. The read-modify-write is retried a
// few times when another writer bumped the account version.
func RunUpdateProfile(ctx context.Context, accountID string, upd ProfileUpdate, deps ProfileDeps) (Account, error) {
	normalizeProfileDeps(&deps)
	if deps.Validate == nil || deps.FindByID == nil || deps.SaveAccount == nil ||
		deps.VerifyPassword == nil || deps.HashPassword == nil || deps.NewSecret == nil {
		return Account{}, deps.Errors.EngineNotReady
	}

	upd, err := deps.Validate(upd)
	if err != nil {
		return Account{}, err
	}

	var newHash string
	for attempt := 0; ; attempt++ {
		account, err := deps.FindByID(ctx, accountID)
		if err != nil {
			return Account{}, err
		}

		if upd.NewPassword != "" {
			ok, err := deps.VerifyPassword(upd.CurrentPassword, account.PasswordHash)
			if err != nil {
				return Account{}, err
			}
			if !ok {
				deps.MetricInc(deps.Metrics.PasswordChangeInvalidCurrent)
				deps.EmitAudit(ctx, deps.Events.PasswordChange, false, account.ID, deps.Errors.InvalidPassword, nil)
				return Account{}, deps.Errors.InvalidPassword
			}
			if newHash == "" {
				if newHash, err = deps.HashPassword(upd.NewPassword); err != nil {
					return Account{}, err
				}
			}
		}

		now := deps.Now()
		changed, verificationToken, err := applyProfileUpdate(&account, upd, newHash, now, deps)
		if err != nil {
			return Account{}, err
		}
		if len(changed) == 0 {
			return account, nil
		}
		account.UpdatedAt = now

		saved, err := deps.SaveAccount(ctx, account)
		if err != nil {
			if errors.Is(err, deps.Errors.StaleAccount) && attempt+1 < maxProfileSaveAttempts {
				continue
			}
			return Account{}, err
		}

		deps.MetricInc(deps.Metrics.ProfileUpdate)
		deps.EmitAudit(ctx, deps.Events.ProfileUpdate, true, saved.ID, nil, func() map[string]string {
			return map[string]string{"fields": strings.Join(changed, ",")}
		})
		if newHash != "" {
			deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
			deps.EmitAudit(ctx, deps.Events.PasswordChange, true, saved.ID, nil, nil)
		}
		if verificationToken != "" && deps.SendVerificationEmail != nil {
			deps.SendVerificationEmail(ctx, saved, verificationToken)
		}
		return saved, nil
	}
}

func applyProfileUpdate(account *Account, upd ProfileUpdate, newHash string, now time.Time, deps ProfileDeps) ([]string, string, error) {
	var changed []string
	var verificationToken string

	if upd.FullName != nil && *upd.FullName != account.FullName {
		account.FullName = *upd.FullName
		changed = append(changed, "fullName")
	}
	if upd.Phone != nil && *upd.Phone != account.Phone {
		account.Phone = *upd.Phone
		changed = append(changed, "phone")
	}
	if upd.Preferences != nil && *upd.Preferences != account.Preferences {
		account.Preferences = *upd.Preferences
		changed = append(changed, "preferences")
	}
	if upd.Email != nil && *upd.Email != account.Email {
		tok, err := deps.NewSecret(now, deps.VerificationTTL)
		if err != nil {
			return nil, "", err
		}
		account.Email = *upd.Email
		account.Verified = false
		account.VerificationTokenHash = tok.Hash
		account.VerificationExpiresAt = tok.ExpiresAt
		verificationToken = tok.Value
		changed = append(changed, "email")
	}
	if newHash != "" {
		account.PasswordHash = newHash
		changed = append(changed, "password")
	}

	sort.Strings(changed)
	return changed, verificationToken, nil
}

func normalizeProfileDeps(deps *ProfileDeps) {
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
