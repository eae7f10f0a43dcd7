package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/Strob0t/eventcore/internal/config"
)

func TestNew(t *testing.T) {
	cfg := config.Logging{Level: "debug", Service: "test-svc"}
	l, closer := New(cfg)
	defer closer.Close()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewAsync(t *testing.T) {
	cfg := config.Logging{Level: "debug", Service: "test-svc", Async: true}
	l, closer := New(cfg)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	l.Info("queued")
	closer.Close()
	closer.Close() // second close is a no-op
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input).String()
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestCorrelationIDContext(t *testing.T) {
	ctx := context.Background()

	if got := CorrelationID(ctx); got != "" {
		t.Errorf("expected empty correlation ID, got %q", got)
	}

	ctx = WithCorrelationID(ctx, "corr-123")
	ctx = WithEventID(ctx, "evt-9")
	if got := CorrelationID(ctx); got != "corr-123" {
		t.Errorf("expected corr-123, got %q", got)
	}
	if got := EventID(ctx); got != "evt-9" {
		t.Errorf("expected evt-9, got %q", got)
	}
}

func TestContextHandlerAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(&contextHandler{inner: slog.NewJSONHandler(&buf, nil)})

	ctx := WithEventID(WithCorrelationID(context.Background(), "corr-1"), "evt-1")
	l.InfoContext(ctx, "handled")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if rec["correlation_id"] != "corr-1" {
		t.Errorf("correlation_id = %v, want corr-1", rec["correlation_id"])
	}
	if rec["event_id"] != "evt-1" {
		t.Errorf("event_id = %v, want evt-1", rec["event_id"])
	}
}
