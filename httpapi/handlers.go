package httpapi

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/MrEthical07/carauth"
	"github.com/MrEthical07/carauth/middleware"
	"github.com/gorilla/mux"
)

const forgotPasswordMessage = "If an account exists with this email, a password reset link has been sent"

type handlers struct {
	svc    Service
	logger *slog.Logger
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := transportError(req.Validate()); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.svc.Register(r.Context(), carauth.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	http.SetCookie(w, h.svc.SessionCookie(res.Token, res.ExpiresAt))
	writeSuccess(w, http.StatusCreated, "Registration successful. Please check your email to verify your account.",
		map[string]any{"user": res.Account, "token": res.Token})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	http.SetCookie(w, h.svc.SessionCookie(res.Token, res.ExpiresAt))
	writeSuccess(w, http.StatusOK, "", map[string]any{"user": res.Account, "token": res.Token})
}

func (h *handlers) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, h.svc.ClearSessionCookie())
	writeSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.fail(w, r, carauth.ErrAuthenticationRequired)
		return
	}

	view, err := h.svc.GetAccount(r.Context(), identity.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"user": view})
}

func (h *handlers) verifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.VerifyEmail(r.Context(), mux.Vars(r)["token"]); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Email verified successfully", nil)
}

func (h *handlers) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, forgotPasswordMessage, nil)
}

func (h *handlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := transportError(req.Validate()); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), mux.Vars(r)["token"], req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Password reset successful", nil)
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.fail(w, r, carauth.ErrAuthenticationRequired)
		return
	}

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.svc.UpdateProfile(r.Context(), identity.ID, req.update())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Profile updated successfully", map[string]any{"user": view})
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, "", map[string]string{"state": "ok"})
}

// fail logs server-side faults and writes the mapped error envelope.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, _ := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, err)
}

// withRequestMeta records the caller IP and user agent for the engine.
func withRequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ctx := carauth.WithClientIP(r.Context(), host)
		ctx = carauth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
