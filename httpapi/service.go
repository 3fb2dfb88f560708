package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MrEthical07/carauth"
)

// Service is the account API the handlers drive.
type Service interface {
	Register(ctx context.Context, in carauth.RegisterInput) (*carauth.AuthResult, error)
	Login(ctx context.Context, email, password string) (*carauth.AuthResult, error)
	VerifyEmail(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	UpdateProfile(ctx context.Context, accountID string, upd carauth.ProfileUpdate) (*carauth.AccountView, error)
	GetAccount(ctx context.Context, accountID string) (*carauth.AccountView, error)
	ValidateToken(ctx context.Context, token string) (*carauth.Identity, error)

	CookieName() string
	SessionCookie(token string, expiresAt time.Time) *http.Cookie
	ClearSessionCookie() *http.Cookie
}

var _ Service = (*carauth.Engine)(nil)
