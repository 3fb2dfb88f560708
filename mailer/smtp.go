package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/MrEthical07/carauth"
	"github.com/knadh/smtppool"
)

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	MaxConns           int
	IdleTimeout        time.Duration
	PoolWaitTimeout    time.Duration
	InsecureSkipVerify bool
}

type pool interface {
	Send(e smtppool.Email) error
	Close()
}

// SMTPSender delivers rendered messages over a pooled SMTP connection.
type SMTPSender struct {
	pool     pool
	from     string
	renderer *Renderer
	logger   *slog.Logger
}

var _ carauth.EmailSender = (*SMTPSender)(nil)

// NewSMTPSender opens the connection pool.
func NewSMTPSender(cfg SMTPConfig, renderer *Renderer, logger *slog.Logger) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, errors.New("mailer: smtp host and port are required")
	}
	if cfg.From == "" {
		return nil, errors.New("mailer: from address is required")
	}
	if renderer == nil {
		return nil, errors.New("mailer: renderer is required")
	}

	var auth smtp.Auth
	if cfg.Username != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 4
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 15 * time.Second
	}
	if cfg.PoolWaitTimeout <= 0 {
		cfg.PoolWaitTimeout = 5 * time.Second
	}

	p, err := smtppool.New(smtppool.Opt{
		Host:            cfg.Host,
		Port:            cfg.Port,
		MaxConns:        cfg.MaxConns,
		IdleTimeout:     cfg.IdleTimeout,
		PoolWaitTimeout: cfg.PoolWaitTimeout,
		TLSConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			ServerName:         cfg.Host,
		},
		Auth: auth,
	})
	if err != nil {
		return nil, fmt.Errorf("mailer: smtp pool: %w", err)
	}
	return newSMTPSender(p, cfg.From, renderer, logger), nil
}

func newSMTPSender(p pool, from string, renderer *Renderer, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{pool: p, from: from, renderer: renderer, logger: logger}
}

// Send renders msg and hands it to the pool. The pool applies its own
// wait timeout; ctx is only checked before sending.
func (s *SMTPSender) Send(ctx context.Context, msg carauth.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out, err := s.renderer.Render(msg)
	if err != nil {
		return err
	}

	err = s.pool.Send(smtppool.Email{
		From:    s.from,
		To:      []string{out.To},
		Subject: out.Subject,
		HTML:    []byte(out.HTML),
		Text:    []byte(out.Text),
	})
	if err != nil {
		s.logger.Error("smtp send failed",
			slog.String("kind", string(msg.Kind)),
			slog.String("account_id", msg.Account.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("mailer: send %s: %w", msg.Kind, err)
	}
	return nil
}

// Close drains the pool.
func (s *SMTPSender) Close() {
	s.pool.Close()
}
