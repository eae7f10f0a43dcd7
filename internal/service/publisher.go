package service

import (
	"context"
	"fmt"
	"log/slog"

	ecotel "github.com/Strob0t/eventcore/internal/adapter/otel"
	"github.com/Strob0t/eventcore/internal/domain"
	"github.com/Strob0t/eventcore/internal/domain/event"
	"github.com/Strob0t/eventcore/internal/logger"
	"github.com/Strob0t/eventcore/internal/port/eventbus"
)

// Publisher sends domain events to the bus.
type Publisher struct {
	broker  eventbus.Broker
	metrics *ecotel.Metrics
}

// NewPublisher creates a Publisher. metrics may be nil.
func NewPublisher(broker eventbus.Broker, metrics *ecotel.Metrics) *Publisher {
	return &Publisher{broker: broker, metrics: metrics}
}

// Publish stores e on the subject named by its type and returns once the
// stream has acknowledged it. The event id is the dedup key, so a caller
// retrying a failed Publish with the same event cannot store it twice
// inside the dedup window. Publish never retries on its own; every failure
// is a *eventbus.PublishError.
func (p *Publisher) Publish(ctx context.Context, e *event.Event) error {
	_, err := p.publish(ctx, e)
	return err
}

func (p *Publisher) publish(ctx context.Context, e *event.Event) (eventbus.PublishAck, error) {
	data, err := p.prepare(ctx, e)
	if err != nil {
		return eventbus.PublishAck{}, err
	}
	subject := e.Subject()

	ctx, span := ecotel.StartPublishSpan(ctx, subject, e.EventID, e.CorrelationID)
	ack, err := p.broker.Publish(ctx, subject, data, e.EventID)
	ecotel.EndSpan(span, err)
	if err != nil {
		p.metrics.RecordPublishFailure(ctx, subject)
		slog.Error("event publish failed", "subject", subject, "event_id", e.EventID, "error", err)
		return ack, &eventbus.PublishError{Subject: subject, EventID: e.EventID, Err: err}
	}

	p.metrics.RecordPublished(ctx, subject)
	if ack.Duplicate {
		slog.Debug("event already stored", "subject", subject, "event_id", e.EventID, "seq", ack.Sequence)
	}
	return ack, nil
}

// PublishStream sends a token event without persistence. Delivery is at
// most once and only reaches subscribers connected at the time.
func (p *Publisher) PublishStream(ctx context.Context, e *event.Event) error {
	data, err := p.prepare(ctx, e)
	if err != nil {
		return err
	}
	subject := e.Subject()
	if !event.IsStreaming(e.EventType) {
		return &eventbus.PublishError{
			Subject: subject,
			EventID: e.EventID,
			Err:     fmt.Errorf("%w: %s is not a streaming event type", domain.ErrValidation, e.EventType),
		}
	}

	if err := p.broker.PublishStream(ctx, subject, data); err != nil {
		p.metrics.RecordPublishFailure(ctx, subject)
		return &eventbus.PublishError{Subject: subject, EventID: e.EventID, Err: err}
	}
	p.metrics.RecordPublished(ctx, subject)
	return nil
}

// prepare fills the correlation id from ctx and encodes e.
func (p *Publisher) prepare(ctx context.Context, e *event.Event) ([]byte, error) {
	if e == nil {
		return nil, &eventbus.PublishError{Err: fmt.Errorf("%w: nil event", domain.ErrValidation)}
	}
	if e.CorrelationID == "" {
		e.CorrelationID = logger.CorrelationID(ctx)
	}
	data, err := event.Encode(e)
	if err != nil {
		return nil, &eventbus.PublishError{Subject: e.Subject(), EventID: e.EventID, Err: err}
	}
	return data, nil
}
