package carauth

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	return &captureSink{events: make(chan AuditEvent, buffer)}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *captureSink) waitFor(t *testing.T, eventType string) AuditEvent {
	t.Helper()
	for {
		select {
		case ev := <-s.events:
			if ev.EventType == eventType {
				return ev
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %s audit event", eventType)
			return AuditEvent{}
		}
	}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	te := newTestEngine(t, func(b *Builder) {
		b.config.Audit.Enabled = false
		b.WithAuditSink(sink)
	})
	te.registerAlice(t)
	_, _ = te.Login(context.Background(), "alice@example.com", "Wrong@1234")
	te.Close()

	if got := sink.count.Load(); got != 0 {
		t.Fatalf("expected no sink calls when disabled, got %d", got)
	}
}

func TestAuditEventsCarryRequestFields(t *testing.T) {
	sink := newCaptureSink(32)
	te := newTestEngine(t, func(b *Builder) {
		b.config.Audit.Enabled = true
		b.WithAuditSink(sink)
	})
	reg := te.registerAlice(t)
	sink.waitFor(t, auditEventRegister)

	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.33"), "test-agent/1.0")
	_, _ = te.Login(ctx, "alice@example.com", "Wrong@1234")

	ev := sink.waitFor(t, auditEventLoginFailure)
	if ev.IP != "198.51.100.33" || ev.UserAgent != "test-agent/1.0" {
		t.Fatalf("unexpected request fields %+v", ev)
	}
	if ev.AccountID != reg.Account.ID || ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("expected stable error code, got %q", ev.Error)
	}
	if !ev.Timestamp.Equal(te.clock.Now()) {
		t.Fatalf("expected engine clock timestamp, got %v", ev.Timestamp)
	}
	for _, v := range ev.Metadata {
		if v == "Wrong@1234" {
			t.Fatal("password leaked into audit metadata")
		}
	}
}

func TestAuditLockoutEvent(t *testing.T) {
	sink := newCaptureSink(64)
	te := newTestEngine(t, func(b *Builder) {
		b.config.Audit.Enabled = true
		b.WithAuditSink(sink)
	})
	te.registerAlice(t)

	for i := 0; i < te.config.Lockout.Threshold; i++ {
		_, _ = te.Login(context.Background(), "alice@example.com", "Wrong@1234")
	}

	ev := sink.waitFor(t, auditEventAccountLocked)
	if ev.Metadata["failed_attempts"] != "3" || ev.Metadata["lock_until"] == "" {
		t.Fatalf("unexpected lockout metadata %v", ev.Metadata)
	}
}
