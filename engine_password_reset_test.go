package carauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPasswordResetFlow(t *testing.T) {
	te := newTestEngine(t, nil)
	reg := te.registerAlice(t)
	ctx := context.Background()

	if err := te.RequestPasswordReset(ctx, "Alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	msg := te.mail.next(t, EmailPasswordReset)
	if msg.Account.ID != reg.Account.ID {
		t.Fatalf("reset email for wrong account %q", msg.Account.ID)
	}
	if stored := te.store.get(reg.Account.ID); stored.PasswordHash == "" {
		t.Fatal("reset request must not clear the password hash")
	}

	if err := te.ResetPassword(ctx, msg.Token, "Fresh@789x"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if _, err := te.Login(ctx, "alice@example.com", "Fresh@789x"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	if _, err := te.Login(ctx, "alice@example.com", alicePassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must fail, got %v", err)
	}

	if err := te.ResetPassword(ctx, msg.Token, "Again@789x"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("replay: expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	start := time.Now()
	if err := te.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("expected nil for unknown email, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("expected enumeration delay, took %v", elapsed)
	}
	if err := te.RequestPasswordReset(ctx, "garbage"); err != nil {
		t.Fatalf("expected nil for malformed email, got %v", err)
	}

	select {
	case msg := <-te.mail.msgs:
		t.Fatalf("no email expected, got %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPasswordResetKnownAndUnknownTakeTheSameWindow(t *testing.T) {
	te := newTestEngine(t, nil)
	te.registerAlice(t)
	ctx := context.Background()

	timed := func(email string) time.Duration {
		start := time.Now()
		if err := te.RequestPasswordReset(ctx, email); err != nil {
			t.Fatalf("%s: %v", email, err)
		}
		return time.Since(start)
	}

	for i := 0; i < 3; i++ {
		known := timed("alice@example.com")
		unknown := timed("nobody@example.com")
		if known < resetPadMin || unknown < resetPadMin {
			t.Fatalf("round %d: expected both paths padded to %v, known=%v unknown=%v", i, resetPadMin, known, unknown)
		}
		te.mail.next(t, EmailPasswordReset)
	}
}

func TestPasswordResetSurfacesStoreFailure(t *testing.T) {
	te := newTestEngine(t, nil)
	te.store.fail = errBackendDown

	if err := te.RequestPasswordReset(context.Background(), "alice@example.com"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestResetPasswordPolicyAndExpiry(t *testing.T) {
	te := newTestEngine(t, nil)
	te.registerAlice(t)
	ctx := context.Background()

	if err := te.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	msg := te.mail.next(t, EmailPasswordReset)

	if err := te.ResetPassword(ctx, msg.Token, "weak"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	te.clock.Advance(te.config.PasswordReset.TokenTTL + time.Second)
	if err := te.ResetPassword(ctx, msg.Token, "Fresh@789x"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestResetPasswordKeepsLockout(t *testing.T) {
	te := newTestEngine(t, nil)
	reg := te.registerAlice(t)
	ctx := context.Background()

	lock := LockoutState{FailedAttempts: 3, LockUntil: te.clock.Now().Add(10 * time.Minute)}
	te.store.setLockout(reg.Account.ID, lock)

	if err := te.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	msg := te.mail.next(t, EmailPasswordReset)
	if err := te.ResetPassword(ctx, msg.Token, "Fresh@789x"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	stored := te.store.get(reg.Account.ID)
	if got := stored.Lockout(); got.FailedAttempts != lock.FailedAttempts || !got.LockUntil.Equal(lock.LockUntil) {
		t.Fatalf("expected lockout kept, got %+v", got)
	}
	if _, err := te.Login(ctx, "alice@example.com", "Fresh@789x"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestResetTokenCannotVerifyEmail(t *testing.T) {
	te := newTestEngine(t, nil)
	te.registerAlice(t)
	ctx := context.Background()
	te.mail.next(t, EmailVerification)

	if err := te.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	msg := te.mail.next(t, EmailPasswordReset)

	if err := te.VerifyEmail(ctx, msg.Token); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
}
