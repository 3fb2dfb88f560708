package carauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/carauth/internal/dispatch"
	"github.com/MrEthical07/carauth/internal/flows"
	"github.com/MrEthical07/carauth/internal/lockout"
	"github.com/MrEthical07/carauth/internal/rate"
	"github.com/MrEthical07/carauth/internal/secret"
	"github.com/MrEthical07/carauth/jwt"
	"github.com/MrEthical07/carauth/password"
)

// Engine is the Auth Service. Build it with [New] and [Builder.Build]; it is
// safe for concurrent use afterwards.
type Engine struct {
	config      Config
	store       CredentialStore
	jwtManager  *jwt.Manager
	passwords   *password.Service
	lockout     lockout.Policy
	secrets     *secret.Generator
	validator   inputValidator
	rateLimiter *rate.Limiter
	audit       *dispatch.Dispatcher[AuditEvent]
	mail        *dispatch.Dispatcher[EmailMessage]
	emailSender EmailSender
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time
	flows       flows.Service
}

// Close drains the audit and email queues and stops their workers.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.mail != nil {
		e.mail.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped on a full queue.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// EmailDropped returns how many emails were dropped on a full queue.
func (e *Engine) EmailDropped() uint64 {
	if e == nil || e.mail == nil {
		return 0
	}
	return e.mail.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// storeCall runs fn under the configured store timeout and normalizes its
// error. Contract errors pass through; everything else becomes
// ErrStoreUnavailable.
func storeCall[T any](ctx context.Context, e *Engine, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Store.Timeout)
	defer cancel()

	out, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, e.mapStoreError(ctx, op, err)
	}
	return out, nil
}

func (e *Engine) mapStoreError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrDuplicateAccount),
		errors.Is(err, ErrStaleAccount):
		return err
	}

	e.metricInc(MetricStoreUnavailable)
	e.logger.LogAttrs(ctx, slog.LevelError, "credential store call failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn(msg, args...)
}
