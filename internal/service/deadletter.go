package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	ecotel "github.com/Strob0t/eventcore/internal/adapter/otel"
	"github.com/Strob0t/eventcore/internal/config"
	"github.com/Strob0t/eventcore/internal/domain/event"
	"github.com/Strob0t/eventcore/internal/port/eventbus"
	"github.com/Strob0t/eventcore/internal/resilience"
)

// deadLetterNamespace seeds the name-based ids of dead-letter events so that
// routing the same failure twice yields the same id (and the stream drops
// the repeat).
var deadLetterNamespace = uuid.MustParse("6f1c2a4e-8d0b-5b7e-9c3a-2e4f6a8b0d1c")

// Failure describes a message that will not be retried.
type Failure struct {
	Subject string
	// Data is the message body exactly as delivered.
	Data []byte
	// Event is the decoded message, nil for undecodable (poison) messages.
	Event          *event.Event
	Reason         string
	Count          int
	FirstFailureAt time.Time
	LastFailureAt  time.Time
	Consumer       string
	StreamSequence uint64
}

// DeadLetterRouter records permanently failing messages on the dead-letter
// stream under dlq.<eventType>.
type DeadLetterRouter struct {
	publisher *Publisher
	breaker   *resilience.Breaker
	metrics   *ecotel.Metrics
}

// NewDeadLetterRouter creates a router publishing through publisher.
// metrics may be nil.
func NewDeadLetterRouter(publisher *Publisher, cfg config.DeadLetter, metrics *ecotel.Metrics) *DeadLetterRouter {
	return &DeadLetterRouter{
		publisher: publisher,
		breaker:   resilience.NewBreaker(cfg.BreakerMaxFailures, cfg.BreakerTimeout, resilience.WithName("dead-letter")),
		metrics:   metrics,
	}
}

// Route stores a dead-letter record for f. Messages that already are
// dead letters are logged and dropped, never re-quarantined. A failure
// returns *eventbus.DeadLetterRoutingError; the caller still acks.
func (r *DeadLetterRouter) Route(ctx context.Context, f Failure) error {
	originalType := event.Type(f.Subject)
	var opts []event.Option
	if f.Event != nil {
		originalType = f.Event.EventType
		opts = append(opts, event.CausedBy(f.Event))
	}

	if event.IsDeadLetter(originalType) {
		slog.Warn("dead letter failed again, dropping", "subject", f.Subject, "reason", f.Reason)
		return nil
	}

	now := time.Now().UTC()
	if f.Reason == "" {
		f.Reason = "unknown failure"
	}
	if f.Count < 1 {
		f.Count = 1
	}
	if f.LastFailureAt.IsZero() {
		f.LastFailureAt = now
	}
	if f.FirstFailureAt.IsZero() {
		f.FirstFailureAt = f.LastFailureAt
	}

	opts = append(opts, event.WithEventID(deadLetterID(f)))
	dl := event.New(&event.DeadLetter{
		OriginalEvent:   f.Data,
		OriginalType:    originalType,
		OriginalSubject: f.Subject,
		FailureReason:   f.Reason,
		FailureCount:    f.Count,
		FirstFailureAt:  f.FirstFailureAt,
		LastFailureAt:   f.LastFailureAt,
		Consumer:        f.Consumer,
		StreamSequence:  f.StreamSequence,
	}, opts...)

	subject := dl.Subject()
	var ack eventbus.PublishAck
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		ack, err = r.publisher.publish(ctx, dl)
		return err
	})
	if err != nil {
		r.metrics.RecordDeadLetterFailure(ctx, subject)
		if errors.Is(err, resilience.ErrCircuitOpen) {
			slog.Warn("dead-letter path open, record dropped", "subject", subject, "original_subject", f.Subject)
		}
		id := ""
		if f.Event != nil {
			id = f.Event.EventID
		}
		return &eventbus.DeadLetterRoutingError{Subject: subject, EventID: id, Err: err}
	}

	if ack.Duplicate {
		slog.Info("dead letter already recorded",
			"subject", f.Subject,
			"dlq_subject", subject,
			"consumer", f.Consumer,
			"dead_letter_id", dl.EventID,
		)
		return nil
	}

	r.metrics.RecordDeadLettered(ctx, f.Subject)
	slog.Warn("event dead-lettered",
		"subject", f.Subject,
		"dlq_subject", subject,
		"failure_count", f.Count,
		"reason", f.Reason,
	)
	return nil
}

// deadLetterID derives the dead-letter event id from the consumer and the
// original event id, or from the stream position for undecodable messages.
// Each consumer that gives up on an event gets its own record.
func deadLetterID(f Failure) string {
	key := ""
	switch {
	case f.Event != nil:
		key = "event:" + f.Event.EventID
	case f.StreamSequence > 0:
		key = "seq:" + f.Subject + ":" + strconv.FormatUint(f.StreamSequence, 10)
	default:
		return uuid.NewString()
	}
	return uuid.NewSHA1(deadLetterNamespace, []byte(f.Consumer+"|"+key)).String()
}
