package carauth

import (
	"errors"
	"time"
)

// Config groups every engine setting. Build it from DefaultConfig and
// override fields; Builder.Build validates it.
type Config struct {
	JWT               JWTConfig
	Password          PasswordConfig
	Lockout           LockoutConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	Store             StoreConfig
	Cookie            CookieConfig
	Security          SecurityConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
	Email             EmailConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures session tokens.
type JWTConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default), "hs384", "hs512"
	Secret        []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures hashing and the password policy.
type PasswordConfig struct {
	Algorithm   string // "argon2id" (default) or "bcrypt"
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	BcryptCost  int

	MinLength         int
	MaxLength         int
	RequireComplexity bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig configures the brute-force lockout policy.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

/*
====================================
TOKEN FLOW CONFIG
====================================
*/

// EmailVerificationConfig configures the verification token flow.
type EmailVerificationConfig struct {
	TokenTTL time.Duration
}

// PasswordResetConfig configures the reset token flow.
type PasswordResetConfig struct {
	TokenTTL time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig bounds credential store calls.
type StoreConfig struct {
	Timeout time.Duration
}

/*
====================================
COOKIE & SECURITY CONFIG
====================================
*/

// CookieConfig names the session cookie.
type CookieConfig struct {
	Name   string
	Path   string
	Domain string
}

// SecurityConfig holds deployment-wide switches.
type SecurityConfig struct {
	ProductionMode bool
	LoginThrottle  LoginThrottleConfig
}

// LoginThrottleConfig configures the per-IP login throttle. It needs Redis.
type LoginThrottleConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// EmailConfig configures the async email dispatcher.
type EmailConfig struct {
	BufferSize  int
	SendTimeout time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the development defaults. JWT.Secret is empty and
// must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TTL:           24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "carauth",
			Audience:      "car-rental-api",
		},
		Password: PasswordConfig{
			Algorithm:         "argon2id",
			Memory:            65536,
			Time:              3,
			Parallelism:       2,
			SaltLength:        16,
			KeyLength:         32,
			BcryptCost:        10,
			MinLength:         8,
			MaxLength:         100,
			RequireComplexity: true,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  15 * time.Minute,
		},
		EmailVerification: EmailVerificationConfig{
			TokenTTL: 24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL: time.Hour,
		},
		Store: StoreConfig{
			Timeout: 3 * time.Second,
		},
		Cookie: CookieConfig{
			Name: "token",
			Path: "/",
		},
		Security: SecurityConfig{
			ProductionMode: false,
			LoginThrottle: LoginThrottleConfig{
				Enabled:     false,
				MaxAttempts: 5,
				Window:      15 * time.Minute,
			},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Email: EmailConfig{
			BufferSize:  256,
			SendTimeout: 10 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks cross-field constraints. The JWT and password packages
// apply their own stricter checks when the engine is built.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256", "hs384", "hs512":
	default:
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT Secret is required")
	}
	if c.JWT.Issuer == "" || c.JWT.Audience == "" {
		return errors.New("JWT Issuer and Audience are required")
	}

	// Password
	if c.Password.Algorithm != "argon2id" && c.Password.Algorithm != "bcrypt" {
		return errors.New("Password Algorithm must be 'argon2id' or 'bcrypt'")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if c.Password.Algorithm == "bcrypt" && c.Password.MaxLength > 72 {
		return errors.New("Password MaxLength must be <= 72 with bcrypt")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Token flows
	if c.EmailVerification.TokenTTL <= 0 {
		return errors.New("EmailVerification TokenTTL must be > 0")
	}
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}

	// Store
	if c.Store.Timeout <= 0 {
		return errors.New("Store Timeout must be > 0")
	}

	// Cookie
	if c.Cookie.Name == "" {
		return errors.New("Cookie Name is required")
	}

	// Security
	if c.Security.LoginThrottle.Enabled {
		if c.Security.LoginThrottle.MaxAttempts <= 0 {
			return errors.New("LoginThrottle MaxAttempts must be > 0")
		}
		if c.Security.LoginThrottle.Window <= 0 {
			return errors.New("LoginThrottle Window must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Email
	if c.Email.BufferSize <= 0 {
		return errors.New("Email BufferSize must be > 0")
	}
	if c.Email.SendTimeout <= 0 {
		return errors.New("Email SendTimeout must be > 0")
	}

	return nil
}
