package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/carauth"
)

type successEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorEnvelope struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorTable is checked in order; the first errors.Is match wins.
var errorTable = []errorMapping{
	{carauth.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed"},
	{carauth.ErrDuplicateAccount, http.StatusBadRequest, "USER_EXISTS", "User already exists"},
	{carauth.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials"},
	{carauth.ErrAccountLocked, http.StatusLocked, "ACCOUNT_LOCKED", "Account is temporarily locked due to too many failed login attempts"},
	{carauth.ErrAuthenticationRequired, http.StatusUnauthorized, "AUTH_REQUIRED", "Authentication required"},
	{carauth.ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired session"},
	{carauth.ErrInsufficientPermissions, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions"},
	{carauth.ErrInvalidOrExpiredToken, http.StatusBadRequest, "INVALID_TOKEN", "Invalid or expired token"},
	{carauth.ErrInvalidPassword, http.StatusBadRequest, "INVALID_PASSWORD", "Current password is incorrect"},
	{carauth.ErrAccountNotFound, http.StatusNotFound, "NOT_FOUND", "User not found"},
	{carauth.ErrLoginRateLimited, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many login attempts, please try again later"},
	{carauth.ErrStaleAccount, http.StatusConflict, "CONFLICT", "Account was modified concurrently, please retry"},
	{carauth.ErrStoreUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable"},
}

// StatusFor returns the HTTP status, error code and public message for err.
// Unknown errors map to 500 INTERNAL_ERROR.
func StatusFor(err error) (int, string, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status, m.code, m.message
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, successEnvelope{Status: "success", Message: message, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	status, code, message := StatusFor(err)
	body := errorEnvelope{Status: "error", Message: message, Code: code}

	var verr *carauth.ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		body.Errors = verr.Fields
	}
	writeJSON(w, status, body)
}
