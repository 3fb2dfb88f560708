// Package appconfig loads the carauth-server process configuration:
// defaults, then a YAML file, then a .env file, then CARAUTH_* variables
// from the environment.
package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/carauth"
	"github.com/MrEthical07/carauth/internal/logging"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CARAUTH_"

// Config is the whole process configuration.
type Config struct {
	Production bool           `yaml:"production"`
	Server     ServerConfig   `yaml:"server"`
	Log        logging.Config `yaml:"log"`
	Store      StoreConfig    `yaml:"store"`
	Auth       AuthConfig     `yaml:"auth"`
	Mail       MailConfig     `yaml:"mail"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	Audit      AuditConfig    `yaml:"audit"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type StoreConfig struct {
	Driver   string         `yaml:"driver"` // redis or postgres
	Timeout  time.Duration  `yaml:"timeout"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate"`
}

type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	Issuer            string        `yaml:"issuer"`
	Audience          string        `yaml:"audience"`
	PasswordAlgorithm string        `yaml:"password_algorithm"`
	LockoutThreshold  int           `yaml:"lockout_threshold"`
	LockoutDuration   time.Duration `yaml:"lockout_duration"`
	VerificationTTL   time.Duration `yaml:"verification_ttl"`
	ResetTTL          time.Duration `yaml:"reset_ttl"`
	CookieDomain      string        `yaml:"cookie_domain"`

	LoginThrottle       bool          `yaml:"login_throttle"`
	LoginThrottleMax    int           `yaml:"login_throttle_max"`
	LoginThrottleWindow time.Duration `yaml:"login_throttle_window"`
}

type MailConfig struct {
	Driver  string     `yaml:"driver"` // smtp or log
	BaseURL string     `yaml:"base_url"`
	Brand   string     `yaml:"brand"`
	SMTP    SMTPConfig `yaml:"smtp"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	MaxConns int    `yaml:"max_conns"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Latency bool `yaml:"latency"`
}

type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
	// File receives JSON lines; empty logs events through slog.
	File string `yaml:"file"`
}

// Default returns a development configuration.
func Default() Config {
	engine := carauth.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Addr:            ":5000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: logging.Config{Level: "info", Format: "json"},
		Store: StoreConfig{
			Driver:  "redis",
			Timeout: engine.Store.Timeout,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "carauth"},
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
				Migrate:         true,
			},
		},
		Auth: AuthConfig{
			TokenTTL:            engine.JWT.TTL,
			Issuer:              engine.JWT.Issuer,
			Audience:            engine.JWT.Audience,
			PasswordAlgorithm:   engine.Password.Algorithm,
			LockoutThreshold:    engine.Lockout.Threshold,
			LockoutDuration:     engine.Lockout.Duration,
			VerificationTTL:     engine.EmailVerification.TokenTTL,
			ResetTTL:            engine.PasswordReset.TokenTTL,
			LoginThrottleMax:    engine.Security.LoginThrottle.MaxAttempts,
			LoginThrottleWindow: engine.Security.LoginThrottle.Window,
		},
		Mail: MailConfig{
			Driver:  "log",
			BaseURL: "http://localhost:3000",
			Brand:   "Solid Car",
			SMTP:    SMTPConfig{Port: 587, MaxConns: 4},
		},
	}
}

// Load reads path (optional), then .env in the working directory, then
// the process environment.
func Load(path string) (Config, error) {
	return load(path, ".env", os.LookupEnv)
}

func load(path, envFile string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = vals
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	// The process environment wins over .env.
	lookup := func(key string) (string, bool) {
		if v, ok := lookupEnv(envPrefix + key); ok {
			return v, true
		}
		v, ok := dotenv[envPrefix+key]
		return v, ok
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	boolean("PRODUCTION", &cfg.Production)
	str("SERVER_ADDR", &cfg.Server.Addr)
	if v, ok := lookup("CORS_ORIGINS"); ok {
		cfg.Server.CORSOrigins = splitList(v)
	}
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("LOG_FILE", &cfg.Log.File)

	str("STORE_DRIVER", &cfg.Store.Driver)
	duration("STORE_TIMEOUT", &cfg.Store.Timeout)
	str("REDIS_ADDR", &cfg.Store.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Store.Redis.Password)
	integer("REDIS_DB", &cfg.Store.Redis.DB)
	str("POSTGRES_DSN", &cfg.Store.Postgres.DSN)
	boolean("POSTGRES_MIGRATE", &cfg.Store.Postgres.Migrate)

	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	duration("TOKEN_TTL", &cfg.Auth.TokenTTL)
	integer("LOCKOUT_THRESHOLD", &cfg.Auth.LockoutThreshold)
	duration("LOCKOUT_DURATION", &cfg.Auth.LockoutDuration)
	boolean("LOGIN_THROTTLE", &cfg.Auth.LoginThrottle)
	str("COOKIE_DOMAIN", &cfg.Auth.CookieDomain)

	str("MAIL_DRIVER", &cfg.Mail.Driver)
	str("MAIL_BASE_URL", &cfg.Mail.BaseURL)
	str("SMTP_HOST", &cfg.Mail.SMTP.Host)
	integer("SMTP_PORT", &cfg.Mail.SMTP.Port)
	str("SMTP_USERNAME", &cfg.Mail.SMTP.Username)
	str("SMTP_PASSWORD", &cfg.Mail.SMTP.Password)
	str("SMTP_FROM", &cfg.Mail.SMTP.From)

	boolean("METRICS_ENABLED", &cfg.Metrics.Enabled)
	boolean("AUDIT_ENABLED", &cfg.Audit.Enabled)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the process-level settings. Engine settings are checked
// again by carauth.Config.Validate when the engine is built.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "redis":
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required")
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn is required")
		}
		if c.Auth.LoginThrottle && c.Store.Redis.Addr == "" {
			return errors.New("login throttle needs store.redis.addr")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 bytes (set CARAUTH_JWT_SECRET)")
	}

	switch c.Mail.Driver {
	case "log":
		if c.Production {
			return errors.New("mail driver \"log\" is not allowed in production")
		}
	case "smtp":
		if c.Mail.SMTP.Host == "" || c.Mail.SMTP.Port <= 0 || c.Mail.SMTP.From == "" {
			return errors.New("mail.smtp host, port and from are required")
		}
	default:
		return fmt.Errorf("unknown mail driver %q", c.Mail.Driver)
	}
	if c.Mail.BaseURL == "" {
		return errors.New("mail.base_url is required")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	return nil
}

// EngineConfig translates c into the engine configuration.
func (c Config) EngineConfig() carauth.Config {
	cfg := carauth.DefaultConfig()
	cfg.JWT.Secret = []byte(c.Auth.JWTSecret)
	cfg.JWT.TTL = c.Auth.TokenTTL
	cfg.JWT.Issuer = c.Auth.Issuer
	cfg.JWT.Audience = c.Auth.Audience
	cfg.Password.Algorithm = c.Auth.PasswordAlgorithm
	if cfg.Password.Algorithm == "bcrypt" && cfg.Password.MaxLength > 72 {
		cfg.Password.MaxLength = 72
	}
	cfg.Lockout.Threshold = c.Auth.LockoutThreshold
	cfg.Lockout.Duration = c.Auth.LockoutDuration
	cfg.EmailVerification.TokenTTL = c.Auth.VerificationTTL
	cfg.PasswordReset.TokenTTL = c.Auth.ResetTTL
	cfg.Store.Timeout = c.Store.Timeout
	cfg.Cookie.Domain = c.Auth.CookieDomain
	cfg.Security.ProductionMode = c.Production
	cfg.Security.LoginThrottle.Enabled = c.Auth.LoginThrottle
	cfg.Security.LoginThrottle.MaxAttempts = c.Auth.LoginThrottleMax
	cfg.Security.LoginThrottle.Window = c.Auth.LoginThrottleWindow
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled && c.Metrics.Latency
	cfg.Audit.Enabled = c.Audit.Enabled
	return cfg
}
