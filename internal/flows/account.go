package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/carauth/internal/lockout"
)

// Preferences is the flow-local notification settings record.
type Preferences struct {
	EmailNotifications bool
	SMSNotifications   bool
	Newsletter         bool
}

// Account is the flow-local account record. The root engine converts it
// to and from its public Account type.
type Account struct {
	ID           string
	Email        string
	PasswordHash string

	FullName    string
	Phone       string
	Membership  string
	Role        string
	Preferences Preferences

	Verified              bool
	VerificationTokenHash string
	VerificationExpiresAt time.Time

	ResetTokenHash string
	ResetExpiresAt time.Time

	Lockout lockout.State

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt time.Time

	Version int64
}

// AuthResult is returned by the register and login flows.
type AuthResult struct {
	Account   Account
	Token     string
	ExpiresAt time.Time
}

// AuditFunc emits one audit event. metadata may be nil.
type AuditFunc func(ctx context.Context, eventType string, success bool, accountID string, err error, metadata func() map[string]string)

// MailFunc queues an email carrying a single-use token for account.
type MailFunc func(ctx context.Context, account Account, token string)

func noopMetric(int) {}

func noopAudit(context.Context, string, bool, string, error, func() map[string]string) {}

func noopWarn(string, ...any) {}

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}
