package carauth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/carauth/internal/dispatch"
	"github.com/MrEthical07/carauth/internal/lockout"
	"github.com/MrEthical07/carauth/internal/rate"
	"github.com/MrEthical07/carauth/internal/secret"
	"github.com/MrEthical07/carauth/jwt"
	"github.com/MrEthical07/carauth/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Each Builder builds once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store       CredentialStore
	emailSender EmailSender
	auditSink   AuditSink
	logger      *slog.Logger
	clock       func() time.Time
	entropy     io.Reader

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the credential store. Required.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithEmailSender sets the collaborator that delivers verification and reset
// emails. Without one, emails are logged and discarded.
func (b *Builder) WithEmailSender(sender EmailSender) *Builder {
	b.emailSender = sender
	return b
}

// WithRedis sets the Redis client used by the login throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets where audit events go. Audit.Enabled must be set too.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validation latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithEntropy overrides the randomness behind single-use tokens. Intended
// for tests.
func (b *Builder) WithEntropy(r io.Reader) *Builder {
	b.entropy = r
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if cfg.Security.LoginThrottle.Enabled && b.redis == nil {
		return nil, errors.New("LoginThrottle requires redis client")
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:      cfg,
		store:       b.store,
		emailSender: b.emailSender,
		secrets:     secret.NewGenerator(b.entropy),
		validator:   newInputValidator(cfg.Password),
		metrics:     NewMetrics(cfg.Metrics),
		logger:      logger.With(slog.String("component", "carauth")),
		now:         now,
	}

	// -------- CREDENTIALS --------
	ps, err := password.New(password.Config{
		Algorithm: password.Algorithm(cfg.Password.Algorithm),
		Argon2: password.Argon2Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		},
		BcryptCost: cfg.Password.BcryptCost,
	})
	if err != nil {
		return nil, err
	}
	engine.passwords = ps

	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.JWT.TTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Secret:        cloneBytes(cfg.JWT.Secret),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	policy, err := lockout.New(lockout.Config{
		Threshold: cfg.Lockout.Threshold,
		Duration:  cfg.Lockout.Duration,
	})
	if err != nil {
		return nil, err
	}
	engine.lockout = policy

	// -------- THROTTLE --------
	if cfg.Security.LoginThrottle.Enabled {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			MaxAttempts: cfg.Security.LoginThrottle.MaxAttempts,
			Window:      cfg.Security.LoginThrottle.Window,
		})
	}

	// -------- DISPATCHERS --------
	if cfg.Audit.Enabled && b.auditSink != nil {
		sink := b.auditSink
		engine.audit = dispatch.New(dispatch.Config{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, func(ctx context.Context, event AuditEvent) {
			sink.Emit(ctx, event)
		})
	}
	engine.mail = dispatch.New(dispatch.Config{
		BufferSize: cfg.Email.BufferSize,
		DropIfFull: true,
	}, engine.deliverEmail)

	engine.flows = newFlowService(engine)

	b.built = true

	return engine, nil
}
