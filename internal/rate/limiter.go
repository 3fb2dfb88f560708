package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginIPPrefix = "carauth:login:ip:"

// Config holds throttle tuning parameters.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter counts failed logins per client IP in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin returns ErrRateLimited when ip already used its failure budget
// for the current window. An empty ip is never throttled.
func (l *Limiter) CheckLogin(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}
	count, err := l.redis.Get(ctx, loginIPKey(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// IncrementLogin records one failed login for ip and returns the count in
// the current window.
func (l *Limiter) IncrementLogin(ctx context.Context, ip string) (int64, error) {
	if ip == "" {
		return 0, nil
	}
	return l.incrementWithTTL(ctx, loginIPKey(ip), l.config.Window)
}

// ResetLogin clears the counter for ip.
func (l *Limiter) ResetLogin(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}
	if err := l.redis.Del(ctx, loginIPKey(ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Remaining reports how many failures ip may still make in this window.
func (l *Limiter) Remaining(ctx context.Context, ip string) (int, error) {
	count, err := l.redis.Get(ctx, loginIPKey(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return l.config.MaxAttempts, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	left := int64(l.config.MaxAttempts) - count
	if left < 0 {
		left = 0
	}
	return int(left), nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.PExpire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func loginIPKey(ip string) string {
	return loginIPPrefix + ip
}
