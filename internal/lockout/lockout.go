// Package lockout converts repeated failed logins into a temporary deny
// state. Expiry is evaluated lazily on the next attempt; nothing sweeps.
//
// The package owns the transition rules only. Persistence goes through a
// compare-and-swap callback so concurrent failures for one account never
// lose an increment.
package lockout

import (
	"context"
	"errors"
	"time"
)

// Defaults used when Config leaves a field at zero.
const (
	DefaultThreshold = 5
	DefaultDuration  = 15 * time.Minute

	maxSwapAttempts = 8
)

// ErrContention is returned when the state kept changing underneath
// RecordFailure for maxSwapAttempts rounds.
var ErrContention = errors.New("lockout state contention")

// Status is the evaluated lock state of an account.
type Status int

const (
	Open Status = iota
	Locked
)

func (s Status) String() string {
	if s == Locked {
		return "locked"
	}
	return "open"
}

// State is the persisted lockout state of one account. A zero LockUntil
// means no lock was ever set.
type State struct {
	FailedAttempts int
	LockUntil      time.Time
}

// Equal compares two states field by field.
func (s State) Equal(o State) bool {
	return s.FailedAttempts == o.FailedAttempts && s.LockUntil.Equal(o.LockUntil)
}

// Config holds the policy knobs.
type Config struct {
	Threshold int
	Duration  time.Duration
}

// Policy applies the lockout rules.
type Policy struct {
	threshold int
	duration  time.Duration
}

// New returns a Policy, filling zero fields with defaults.
func New(cfg Config) (Policy, error) {
	if cfg.Threshold < 0 || cfg.Duration < 0 {
		return Policy{}, errors.New("lockout threshold and duration must be >= 0")
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Duration == 0 {
		cfg.Duration = DefaultDuration
	}
	return Policy{threshold: cfg.Threshold, duration: cfg.Duration}, nil
}

// Threshold returns the failure count that triggers a lock.
func (p Policy) Threshold() int { return p.threshold }

// Duration returns how long a lock lasts.
func (p Policy) Duration() time.Duration { return p.duration }

// Status reports Locked while LockUntil is in the future.
func (p Policy) Status(s State, now time.Time) Status {
	if !s.LockUntil.IsZero() && s.LockUntil.After(now) {
		return Locked
	}
	return Open
}

// OnFailure returns the state after one more failed attempt. An elapsed lock
// restarts the count, so the first failure after expiry counts as one.
func (p Policy) OnFailure(s State, now time.Time) State {
	if !s.LockUntil.IsZero() && !s.LockUntil.After(now) {
		s = State{}
	}
	s.FailedAttempts++
	if s.FailedAttempts >= p.threshold {
		s.LockUntil = now.Add(p.duration)
	}
	return s
}

// OnSuccess returns the state after a successful login.
func (p Policy) OnSuccess() State {
	return State{}
}

// SwapFunc stores next if the persisted state still equals old. It returns
// false, nil when the state changed concurrently.
type SwapFunc func(ctx context.Context, old, next State) (bool, error)

// LoadFunc reads the current persisted state.
type LoadFunc func(ctx context.Context) (State, error)

// RecordFailure applies OnFailure starting from current and persists it with
// swap, reloading and retrying when another writer got there first.
func (p Policy) RecordFailure(ctx context.Context, current State, now time.Time, load LoadFunc, swap SwapFunc) (State, error) {
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		if attempt > 0 {
			reloaded, err := load(ctx)
			if err != nil {
				return State{}, err
			}
			current = reloaded
		}

		next := p.OnFailure(current, now)
		ok, err := swap(ctx, current, next)
		if err != nil {
			return State{}, err
		}
		if ok {
			return next, nil
		}
		if err := ctx.Err(); err != nil {
			return State{}, err
		}
	}
	return State{}, ErrContention
}
