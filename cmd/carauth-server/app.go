package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/MrEthical07/carauth"
	"github.com/MrEthical07/carauth/httpapi"
	"github.com/MrEthical07/carauth/internal/appconfig"
	"github.com/MrEthical07/carauth/mailer"
	"github.com/MrEthical07/carauth/metrics/export/prometheus"
	"github.com/MrEthical07/carauth/store/pgstore"
	"github.com/MrEthical07/carauth/store/redisstore"
	"github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
)

// app owns everything the server opened. Close releases it in reverse
// order.
type app struct {
	engine  *carauth.Engine
	handler http.Handler
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func newApp(ctx context.Context, cfg appconfig.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	builder := carauth.New().
		WithConfig(cfg.EngineConfig()).
		WithLogger(logger)

	var redisClient redis.UniversalClient
	if cfg.Store.Redis.Addr != "" && (cfg.Store.Driver == "redis" || cfg.Auth.LoginThrottle) {
		redisClient = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Store.Redis.Addr},
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		a.onClose(redisClient.Close)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		builder.WithRedis(redisClient)
	}

	switch cfg.Store.Driver {
	case "redis":
		builder.WithStore(redisstore.New(redisClient, cfg.Store.Redis.Prefix))
	case "postgres":
		db, err := pgstore.Open(ctx, cfg.Store.Postgres.DSN, pgstore.PoolConfig{
			MaxOpenConns:    cfg.Store.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Store.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		a.onClose(db.Close)
		if cfg.Store.Postgres.Migrate {
			if err := pgstore.Migrate(ctx, db); err != nil {
				return nil, err
			}
		}
		builder.WithStore(pgstore.New(db))
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	sender, closeSender, err := newEmailSender(cfg, logger)
	if err != nil {
		return nil, err
	}
	if closeSender != nil {
		a.onClose(closeSender)
	}
	builder.WithEmailSender(sender)

	if cfg.Audit.Enabled {
		sink, closeSink, err := newAuditSink(cfg.Audit, logger)
		if err != nil {
			return nil, err
		}
		if closeSink != nil {
			a.onClose(closeSink)
		}
		builder.WithAuditSink(sink)
	}

	engine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine
	a.onClose(func() error {
		engine.Close()
		return nil
	})

	routerCfg := httpapi.Config{Service: engine, Logger: logger}
	if cfg.Metrics.Enabled {
		routerCfg.Metrics = prometheus.NewPrometheusExporter(engine).Handler()
	}
	a.handler = wrapHandler(httpapi.NewRouter(routerCfg), cfg.Server, logger, os.Stdout)
	return a, nil
}

func newEmailSender(cfg appconfig.Config, logger *slog.Logger) (carauth.EmailSender, func() error, error) {
	engineCfg := cfg.EngineConfig()
	renderer, err := mailer.NewRenderer(mailer.RenderConfig{
		BaseURL:         cfg.Mail.BaseURL,
		Brand:           cfg.Mail.Brand,
		VerificationTTL: engineCfg.EmailVerification.TokenTTL,
		ResetTTL:        engineCfg.PasswordReset.TokenTTL,
	})
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Mail.Driver {
	case "smtp":
		s, err := mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.Mail.SMTP.Host,
			Port:     cfg.Mail.SMTP.Port,
			Username: cfg.Mail.SMTP.Username,
			Password: cfg.Mail.SMTP.Password,
			From:     cfg.Mail.SMTP.From,
			MaxConns: cfg.Mail.SMTP.MaxConns,
		}, renderer, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error {
			s.Close()
			return nil
		}, nil
	case "log":
		return mailer.NewLogSender(renderer, logger), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown mail driver %q", cfg.Mail.Driver)
	}
}

func newAuditSink(cfg appconfig.AuditConfig, logger *slog.Logger) (carauth.AuditSink, func() error, error) {
	if cfg.File == "" {
		return carauth.NewSlogSink(logger), nil, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit file: %w", err)
	}
	return carauth.NewJSONWriterSink(f), f.Close, nil
}

// wrapHandler adds access logging, panic recovery and, when origins are
// configured, CORS with credentials so the session cookie crosses origins.
func wrapHandler(h http.Handler, cfg appconfig.ServerConfig, logger *slog.Logger, access io.Writer) http.Handler {
	if len(cfg.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(cfg.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
			handlers.AllowCredentials(),
		)(h)
	}
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{logger}))(h)
	return handlers.CombinedLoggingHandler(access, h)
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("panic recovered", "detail", fmt.Sprint(v...))
}
