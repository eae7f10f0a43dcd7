package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Strob0t/eventcore/internal/domain"
	"github.com/Strob0t/eventcore/internal/domain/event"
	"github.com/Strob0t/eventcore/internal/logger"
	"github.com/Strob0t/eventcore/internal/port/eventbus"
	"github.com/Strob0t/eventcore/internal/service"
)

func TestPublisher_Publish(t *testing.T) {
	b := newFakeBroker()
	p := service.NewPublisher(b, nil)

	e := event.New(&event.ExecutionStarted{ExecutionID: "x1", WorkflowID: "w1"}, event.WithEventID("e1"))
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msgs := b.stored("execution.started")
	if len(msgs) != 1 {
		t.Fatalf("stored = %d, want 1", len(msgs))
	}
	if msgs[0].msgID != "e1" {
		t.Errorf("msg id = %q, want the event id", msgs[0].msgID)
	}
	got, err := event.Decode(msgs[0].data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.EventID != "e1" || got.Data.(*event.ExecutionStarted).WorkflowID != "w1" {
		t.Errorf("stored event = %+v", got)
	}
}

func TestPublisher_RetryIsDeduplicated(t *testing.T) {
	b := newFakeBroker()
	p := service.NewPublisher(b, nil)
	e := event.New(&event.AgentUpdated{AgentID: "a1"})

	for i := 0; i < 2; i++ {
		if err := p.Publish(context.Background(), e); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	if n := len(b.stored("agent.updated")); n != 1 {
		t.Errorf("stored = %d, want 1", n)
	}
}

func TestPublisher_CorrelationFromContext(t *testing.T) {
	b := newFakeBroker()
	p := service.NewPublisher(b, nil)
	ctx := logger.WithCorrelationID(context.Background(), "req-7")

	e := event.New(&event.WorkflowCancelled{WorkflowID: "w1"})
	if err := p.Publish(ctx, e); err != nil {
		t.Fatal(err)
	}
	if e.CorrelationID != "req-7" {
		t.Errorf("correlation = %q, want req-7", e.CorrelationID)
	}

	explicit := event.New(&event.WorkflowCancelled{WorkflowID: "w2"}, event.WithCorrelationID("own"))
	if err := p.Publish(ctx, explicit); err != nil {
		t.Fatal(err)
	}
	if explicit.CorrelationID != "own" {
		t.Errorf("explicit correlation overwritten: %q", explicit.CorrelationID)
	}
}

func TestPublisher_Errors(t *testing.T) {
	tests := []struct {
		name      string
		event     func() *event.Event
		broker    func(*fakeBroker)
		wantCause error
	}{
		{
			name:      "disconnected",
			event:     func() *event.Event { return event.New(&event.ToolRegistered{ToolID: "t1", Name: "grep"}) },
			broker:    func(b *fakeBroker) { b.connected = false },
			wantCause: eventbus.ErrNotConnected,
		},
		{
			name:      "rejected",
			event:     func() *event.Event { return event.New(&event.ToolRegistered{ToolID: "t1", Name: "grep"}) },
			broker:    func(b *fakeBroker) { b.publishErr = func(string) error { return errStreamFull } },
			wantCause: errStreamFull,
		},
		{
			name: "missing id",
			event: func() *event.Event {
				e := event.New(&event.ToolRegistered{ToolID: "t1"})
				e.EventID = ""
				return e
			},
			wantCause: domain.ErrValidation,
		},
		{
			name:      "nil",
			event:     func() *event.Event { return nil },
			wantCause: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBroker()
			if tt.broker != nil {
				tt.broker(b)
			}
			err := service.NewPublisher(b, nil).Publish(context.Background(), tt.event())

			var pe *eventbus.PublishError
			if !errors.As(err, &pe) {
				t.Fatalf("expected PublishError, got %v", err)
			}
			if !errors.Is(err, tt.wantCause) {
				t.Errorf("cause = %v, want %v", err, tt.wantCause)
			}
		})
	}
}

func TestPublisher_PublishStreamRejectsDurableTypes(t *testing.T) {
	p := service.NewPublisher(newFakeBroker(), nil)

	err := p.PublishStream(context.Background(), event.New(&event.ExecutionStarted{ExecutionID: "x"}))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestPublisher_PublishStreamNotStored(t *testing.T) {
	b := newFakeBroker()
	p := service.NewPublisher(b, nil)

	e := event.New(&event.TokenCompleted{ExecutionID: "x", InferenceID: "i"})
	if err := p.PublishStream(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if n := len(b.stored("model.token.completed")); n != 0 {
		t.Errorf("token event stored %d times", n)
	}
}

var errStreamFull = errors.New("maximum messages exceeded")
