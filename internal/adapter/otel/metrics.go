package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "eventcore"

// Metrics holds the event bus instruments. A nil *Metrics records nothing.
type Metrics struct {
	Published        metric.Int64Counter
	PublishFailures  metric.Int64Counter
	Consumed         metric.Int64Counter
	Duplicates       metric.Int64Counter
	HandlerFailures  metric.Int64Counter
	Naks             metric.Int64Counter
	DeadLettered     metric.Int64Counter
	DeadLetterErrors metric.Int64Counter
	HandlerDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.Published, "eventcore.events.published", "Events acknowledged by the stream"},
		{&m.PublishFailures, "eventcore.events.publish_failures", "Publishes rejected or undeliverable"},
		{&m.Consumed, "eventcore.events.consumed", "Events handled successfully"},
		{&m.Duplicates, "eventcore.events.duplicates", "Deliveries skipped as already processed"},
		{&m.HandlerFailures, "eventcore.handler.failures", "Handler invocations that failed or panicked"},
		{&m.Naks, "eventcore.events.naks", "Deliveries negatively acknowledged for redelivery"},
		{&m.DeadLettered, "eventcore.events.dead_lettered", "Events routed to the dead-letter stream"},
		{&m.DeadLetterErrors, "eventcore.dead_letter.failures", "Dead-letter records that could not be stored"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
	}

	m.HandlerDuration, err = meter.Float64Histogram("eventcore.handler.duration_seconds",
		metric.WithDescription("Handler duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func subjectAttr(subject string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("messaging.destination", subject))
}

// add increments the counter picked from m. Safe on a nil receiver.
func (m *Metrics) add(ctx context.Context, pick func(*Metrics) metric.Int64Counter, subject string) {
	if m == nil {
		return
	}
	if c := pick(m); c != nil {
		c.Add(ctx, 1, subjectAttr(subject))
	}
}

// RecordPublished counts an event acknowledged by the stream.
func (m *Metrics) RecordPublished(ctx context.Context, subject string) {
	m.add(ctx, func(m *Metrics) metric.Int64Counter { return m.Published }, subject)
}

// RecordPublishFailure counts a rejected or undeliverable publish.
func (m *Metrics) RecordPublishFailure(ctx context.Context, subject string) {
	m.add(ctx, func(m *Metrics) metric.Int64Counter { return m.PublishFailures }, subject)
}

// RecordConsumed counts an event handled successfully.
func (m *Metrics) RecordConsumed(ctx context.Context, subject string) {
	m.add(ctx, func(m *Metrics) metric.Int64Counter { return m.Consumed }, subject)
}

// RecordDuplicate counts a delivery skipped as already processed.
func (m *Metrics) RecordDuplicate(ctx context.Context, subject string) {
	m.add(ctx, func(m *Metrics) metric.Int64Counter { return m.Duplicates }, subject)
}

// RecordHandlerFailure counts a failed or panicked handler invocation.
func (m *Metrics) RecordHandlerFailure(ctx context.Context, subject string) {
	m.add(ctx, func(m *Metrics) metric.Int64Counter { return m.HandlerFailures }, subject)
}

// RecordNak counts a delivery sent back for redelivery.
func (m *Metrics) RecordNak(ctx context.Context, subject string) {
	m.add(ctx, func(m *Metrics) metric.Int64Counter { return m.Naks }, subject)
}

// RecordDeadLettered counts an event routed to the dead-letter stream.
func (m *Metrics) RecordDeadLettered(ctx context.Context, subject string) {
	m.add(ctx, func(m *Metrics) metric.Int64Counter { return m.DeadLettered }, subject)
}

// RecordDeadLetterFailure counts a dead-letter record that could not be stored.
func (m *Metrics) RecordDeadLetterFailure(ctx context.Context, subject string) {
	m.add(ctx, func(m *Metrics) metric.Int64Counter { return m.DeadLetterErrors }, subject)
}

// RecordHandlerDuration records how long a handler ran.
func (m *Metrics) RecordHandlerDuration(ctx context.Context, subject string, d time.Duration) {
	if m == nil || m.HandlerDuration == nil {
		return
	}
	m.HandlerDuration.Record(ctx, d.Seconds(), subjectAttr(subject))
}
