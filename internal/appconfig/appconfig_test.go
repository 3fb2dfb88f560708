package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const secret = "0123456789abcdef0123456789abcdef"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadLayersYAMLDotenvAndEnv(t *testing.T) {
	yamlPath := writeFile(t, "carauth.yaml", `
server:
  addr: ":8080"
  cors_origins: ["https://solidcar.example"]
store:
  driver: postgres
  postgres:
    dsn: postgres://file
auth:
  lockout_threshold: 7
  lockout_duration: 30m
mail:
  driver: smtp
  base_url: https://solidcar.example
  smtp:
    host: smtp.example
    from: no-reply@solidcar.example
`)
	envPath := writeFile(t, ".env", "CARAUTH_JWT_SECRET="+secret+"\nCARAUTH_POSTGRES_DSN=postgres://dotenv\n")

	cfg, err := load(yamlPath, envPath, envMap(map[string]string{
		"CARAUTH_POSTGRES_DSN": "postgres://env",
		"CARAUTH_TOKEN_TTL":    "2h",
	}))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Addr != ":8080" || len(cfg.Server.CORSOrigins) != 1 {
		t.Fatalf("yaml server settings not applied: %+v", cfg.Server)
	}
	if cfg.Auth.LockoutThreshold != 7 || cfg.Auth.LockoutDuration != 30*time.Minute {
		t.Fatalf("yaml lockout not applied: %+v", cfg.Auth)
	}
	if cfg.Auth.JWTSecret != secret {
		t.Fatal("expected secret from .env")
	}
	if cfg.Store.Postgres.DSN != "postgres://env" {
		t.Fatalf("environment must win over .env and yaml, got %q", cfg.Store.Postgres.DSN)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Fatalf("expected token ttl from env, got %v", cfg.Auth.TokenTTL)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatal("defaults must survive a partial yaml file")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoadWithoutFiles(t *testing.T) {
	cfg, err := load("", filepath.Join(t.TempDir(), "missing.env"), envMap(nil))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Store.Driver != "redis" || cfg.Mail.Driver != "log" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadReportsBadValues(t *testing.T) {
	_, err := load("", "", envMap(map[string]string{
		"CARAUTH_LOCKOUT_THRESHOLD": "five",
		"CARAUTH_TOKEN_TTL":         "forever",
	}))
	if err == nil {
		t.Fatal("expected parse errors")
	}
	if !strings.Contains(err.Error(), "CARAUTH_LOCKOUT_THRESHOLD") || !strings.Contains(err.Error(), "CARAUTH_TOKEN_TTL") {
		t.Fatalf("expected both keys in error, got %v", err)
	}

	if _, err := load(writeFile(t, "bad.yaml", "server: [\n"), "", envMap(nil)); err == nil {
		t.Fatal("expected yaml parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Auth.JWTSecret = secret

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, "unknown store driver"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }, "dsn"},
		{"log mail in production", func(c *Config) { c.Production = true }, "not allowed in production"},
		{"smtp without host", func(c *Config) { c.Mail.Driver = "smtp" }, "mail.smtp"},
	}
	for _, tc := range cases {
		cfg := valid
		tc.mutate(&cfg)
		err := cfg.Validate()
		if tc.want == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestEngineConfigIsValid(t *testing.T) {
	cfg := Default()
	cfg.Auth.JWTSecret = secret
	cfg.Auth.LockoutThreshold = 4
	cfg.Production = true
	cfg.Metrics.Enabled = true

	engine := cfg.EngineConfig()
	if err := engine.Validate(); err != nil {
		t.Fatalf("engine config invalid: %v", err)
	}
	if engine.Lockout.Threshold != 4 || !engine.Security.ProductionMode || !engine.Metrics.Enabled {
		t.Fatalf("settings not carried over: %+v", engine)
	}
	if string(engine.JWT.Secret) != secret {
		t.Fatal("secret not carried over")
	}
}
