package otel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Strob0t/eventcore/internal/config"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), "test", config.Telemetry{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.RecordPublished(ctx, "a.b")
	m.RecordPublishFailure(ctx, "a.b")
	m.RecordConsumed(ctx, "a.b")
	m.RecordDuplicate(ctx, "a.b")
	m.RecordHandlerFailure(ctx, "a.b")
	m.RecordNak(ctx, "a.b")
	m.RecordDeadLettered(ctx, "a.b")
	m.RecordDeadLetterFailure(ctx, "a.b")
	m.RecordHandlerDuration(ctx, "a.b", time.Second)
}

func TestEmptyMetricsRecordNothing(t *testing.T) {
	m := &Metrics{}
	m.RecordPublished(context.Background(), "a.b")
	m.RecordDeadLetterFailure(context.Background(), "a.b")
	m.RecordHandlerDuration(context.Background(), "a.b", time.Second)
}

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m.Published == nil || m.DeadLettered == nil || m.HandlerDuration == nil {
		t.Fatal("instruments not initialized")
	}
	m.RecordPublished(context.Background(), "execution.started")
}

func TestSpans(t *testing.T) {
	ctx, span := StartPublishSpan(context.Background(), "execution.started", "e1", "c1")
	if ctx == nil || span == nil {
		t.Fatal("expected span")
	}
	EndSpan(span, errors.New("boom"))

	_, span = StartHandleSpan(context.Background(), "execution.started", "svc", 2)
	EndSpan(span, nil)
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}

func TestHTTPMiddleware(t *testing.T) {
	h := HTTPMiddleware("test")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}
