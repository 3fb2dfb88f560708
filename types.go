package carauth

import (
	"context"
	"time"
)

// Membership is the loyalty tier of an account.
type Membership string

const (
	MembershipBronze   Membership = "Bronze"
	MembershipSilver   Membership = "Silver"
	MembershipGold     Membership = "Gold"
	MembershipPlatinum Membership = "Platinum"
)

// Valid reports whether m is one of the known tiers.
func (m Membership) Valid() bool {
	switch m {
	case MembershipBronze, MembershipSilver, MembershipGold, MembershipPlatinum:
		return true
	}
	return false
}

// Roles carried in session tokens.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// TokenKind separates the two single-use token purposes. A token of one kind
// never satisfies a lookup of the other.
type TokenKind uint8

const (
	TokenVerification TokenKind = iota + 1
	TokenReset
)

func (k TokenKind) String() string {
	switch k {
	case TokenVerification:
		return "verification"
	case TokenReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Preferences are the notification settings a customer controls.
type Preferences struct {
	EmailNotifications bool `json:"emailNotifications"`
	SMSNotifications   bool `json:"smsNotifications"`
	Newsletter         bool `json:"newsletter"`
}

// DefaultPreferences mirrors the settings given to new accounts.
func DefaultPreferences() Preferences {
	return Preferences{EmailNotifications: true, SMSNotifications: false, Newsletter: false}
}

// Account is the persisted credential record. It never leaves the engine;
// callers receive an AccountView.
//
// Zero time values stand for "not set" on the nullable timestamps.
type Account struct {
	ID           string
	Email        string
	PasswordHash string

	FullName    string
	Phone       string
	Membership  Membership
	Role        string
	Preferences Preferences

	Verified              bool
	VerificationTokenHash string
	VerificationExpiresAt time.Time

	ResetTokenHash string
	ResetExpiresAt time.Time

	FailedAttempts int
	LockUntil      time.Time

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt time.Time

	Version int64
}

// Lockout returns the lockout pair of a.
func (a *Account) Lockout() LockoutState {
	return LockoutState{FailedAttempts: a.FailedAttempts, LockUntil: a.LockUntil}
}

// View strips credential and token material.
func (a *Account) View() AccountView {
	v := AccountView{
		ID:          a.ID,
		Email:       a.Email,
		FullName:    a.FullName,
		Phone:       a.Phone,
		Membership:  a.Membership,
		Role:        a.Role,
		Preferences: a.Preferences,
		Verified:    a.Verified,
		MemberSince: a.CreatedAt,
	}
	if !a.LastLoginAt.IsZero() {
		last := a.LastLoginAt
		v.LastLogin = &last
	}
	return v
}

// AccountView is the caller-facing projection of an Account.
type AccountView struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	FullName    string      `json:"fullName"`
	Phone       string      `json:"phone,omitempty"`
	Membership  Membership  `json:"membershipLevel"`
	Role        string      `json:"role"`
	Preferences Preferences `json:"preferences"`
	Verified    bool        `json:"verified"`
	MemberSince time.Time   `json:"memberSince"`
	LastLogin   *time.Time  `json:"lastLogin,omitempty"`
}

// LockoutState is the failed-attempt counter and lock deadline of an account.
type LockoutState struct {
	FailedAttempts int
	LockUntil      time.Time
}

// CredentialStore persists accounts. Implementations must be safe for
// concurrent use and atomic per account.
//
// Missing accounts are reported as ErrAccountNotFound, a taken email as
// ErrDuplicateAccount, and backend failures wrap ErrStoreUnavailable.
type CredentialStore interface {
	// FindByEmail looks up by lowercased email. PasswordHash is left empty
	// unless withCredential is true.
	FindByEmail(ctx context.Context, email string, withCredential bool) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	// Create inserts a new account; uniqueness of Email is enforced by the store.
	Create(ctx context.Context, account *Account) (*Account, error)
	// Save writes profile, credential, verification and reset state if the
	// stored Version equals account.Version, and bumps Version. Lockout and
	// last-login fields are not written.
	Save(ctx context.Context, account *Account) (*Account, error)
	// FindByToken returns the account holding tokenHash for kind, ignoring
	// tokens whose expiry is not after now.
	FindByToken(ctx context.Context, kind TokenKind, tokenHash string, now time.Time) (*Account, error)
	// CompareAndSwapLockout stores next if the persisted lockout pair equals old.
	CompareAndSwapLockout(ctx context.Context, id string, old, next LockoutState) (bool, error)
	// RecordLoginSuccess clears lockout state and stamps LastLoginAt.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
}

// EmailKind selects the template of an outgoing message.
type EmailKind string

const (
	EmailVerification  EmailKind = "verificationEmail"
	EmailPasswordReset EmailKind = "passwordReset"
)

// EmailMessage is what the engine hands to the email collaborator.
type EmailMessage struct {
	Account AccountView
	Kind    EmailKind
	Token   string
}

// EmailSender delivers account emails. The engine calls it asynchronously and
// only logs failures.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// Identity is the verified content of a session token.
type Identity struct {
	ID         string
	Email      string
	Roles      []string
	Membership string
	TokenID    string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// HasAnyRole reports whether the identity holds at least one of roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	if i == nil {
		return false
	}
	for _, want := range roles {
		for _, have := range i.Roles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Account   AccountView
	Token     string
	ExpiresAt time.Time
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	FullName string
	Email    string
	Password string
	Phone    string
}

// ProfileUpdate lists the fields a customer may change. Nil pointers are
// left untouched.
type ProfileUpdate struct {
	FullName    *string
	Phone       *string
	Email       *string
	Preferences *Preferences

	CurrentPassword string
	NewPassword     string
}
