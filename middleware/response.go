package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/carauth"
)

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func writeError(w http.ResponseWriter, err error) {
	status, body := http.StatusUnauthorized, errorBody{
		Status:  "error",
		Message: "Invalid or expired session",
		Code:    "INVALID_TOKEN",
	}
	switch {
	case errors.Is(err, carauth.ErrAuthenticationRequired):
		body.Message, body.Code = "Authentication required", "AUTH_REQUIRED"
	case errors.Is(err, carauth.ErrInsufficientPermissions):
		status = http.StatusForbidden
		body.Message, body.Code = "Insufficient permissions", "FORBIDDEN"
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
