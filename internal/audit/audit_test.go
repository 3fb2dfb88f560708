package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{EventType: "login_success", AccountID: "a1", Success: true})
	sink.Emit(context.Background(), Event{EventType: "login_failure", Error: "invalid_credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.EventType != "login_success" || first.AccountID != "a1" || !first.Success {
		t.Fatalf("unexpected event: %+v", first)
	}
}

func TestChannelSinkDelivers(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(context.Background(), Event{EventType: "register"})
	select {
	case ev := <-sink.Events():
		if ev.EventType != "register" {
			t.Fatalf("unexpected event %q", ev.EventType)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	sink.Emit(context.Background(), Event{EventType: "account_locked", AccountID: "a1", Metadata: map[string]string{"failed_attempts": "5"}})
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "meta.failed_attempts=5") {
		t.Fatalf("unexpected log line: %s", out)
	}
}
