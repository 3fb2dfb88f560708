package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/MrEthical07/carauth/middleware"
	"github.com/gorilla/mux"
)

// Config wires the router.
type Config struct {
	Service Service
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter returns the API routes. The session gate is built from the
// service itself.
func NewRouter(cfg Config) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{svc: cfg.Service, logger: logger}
	gate := middleware.NewGate(cfg.Service, cfg.Service.CookieName(), logger)
	required := gate.Required()

	r := mux.NewRouter()
	r.Use(withRequestMeta)

	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/register", h.register).Methods(http.MethodPost)
	auth.HandleFunc("/login", h.login).Methods(http.MethodPost)
	auth.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	auth.Handle("/me", required(http.HandlerFunc(h.me))).Methods(http.MethodGet)
	auth.HandleFunc("/verify-email/{token}", h.verifyEmail).Methods(http.MethodPost)
	auth.HandleFunc("/verify-email/{token}", confirmEmailPage).Methods(http.MethodGet)
	auth.HandleFunc("/forgot-password", h.forgotPassword).Methods(http.MethodPost)
	auth.HandleFunc("/reset-password/{token}", h.resetPassword).Methods(http.MethodPost)

	r.Handle("/api/profile", required(http.HandlerFunc(h.me))).Methods(http.MethodGet)
	r.Handle("/api/profile", required(http.HandlerFunc(h.updateProfile))).Methods(http.MethodPut)

	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorEnvelope{Status: "error", Message: "Route not found", Code: "NOT_FOUND"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorEnvelope{Status: "error", Message: "Method not allowed", Code: "METHOD_NOT_ALLOWED"})
	})
	return r
}
