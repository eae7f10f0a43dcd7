package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	ecotel "github.com/Strob0t/eventcore/internal/adapter/otel"
	"github.com/Strob0t/eventcore/internal/config"
	"github.com/Strob0t/eventcore/internal/domain/event"
	"github.com/Strob0t/eventcore/internal/logger"
	"github.com/Strob0t/eventcore/internal/port/eventbus"
	"github.com/Strob0t/eventcore/internal/port/idempotency"
)

// Handler processes one event. A returned error (or a panic) makes the
// delivery eligible for redelivery and, once attempts run out, for the
// dead-letter stream. Handlers must accept *event.Unknown payloads for
// types this build does not know.
type Handler func(ctx context.Context, e *event.Event) error

// ErrConsumerClosed is returned by Subscribe after Close.
var ErrConsumerClosed = errors.New("consumer closed")

// maxTrackedFailures bounds the first-failure bookkeeping per subscription.
const maxTrackedFailures = 10_000

// SubscribeOption overrides a consumer default for one subscription.
type SubscribeOption func(*eventbus.ConsumerSpec)

// WithDurable sets the durable consumer name.
func WithDurable(name string) SubscribeOption {
	return func(s *eventbus.ConsumerSpec) { s.Durable = name }
}

// WithStream binds the subscription to stream instead of the main stream.
func WithStream(stream string) SubscribeOption {
	return func(s *eventbus.ConsumerSpec) { s.Stream = stream }
}

func WithDeliverPolicy(p eventbus.DeliverPolicy) SubscribeOption {
	return func(s *eventbus.ConsumerSpec) { s.DeliverPolicy = p }
}

func WithAckWait(d time.Duration) SubscribeOption {
	return func(s *eventbus.ConsumerSpec) { s.AckWait = d }
}

func WithMaxDeliver(n int) SubscribeOption {
	return func(s *eventbus.ConsumerSpec) { s.MaxDeliver = n }
}

// WithBatchSize bounds in-flight messages. 1 processes strictly in order.
func WithBatchSize(n int) SubscribeOption {
	return func(s *eventbus.ConsumerSpec) { s.BatchSize = n }
}

// Consumer runs handlers over durable subscriptions with duplicate
// suppression, bounded redelivery and dead-lettering.
type Consumer struct {
	broker  eventbus.Broker
	tracker idempotency.Tracker
	router  *DeadLetterRouter
	cfg     config.Consumer
	stream  string
	metrics *ecotel.Metrics
	now     func() time.Time

	mu      sync.Mutex
	subs    []*subscription
	streams []func()
	closed  bool
}

// NewConsumer creates a Consumer whose subscriptions default to stream and
// the settings in cfg. metrics may be nil.
func NewConsumer(
	broker eventbus.Broker,
	tracker idempotency.Tracker,
	router *DeadLetterRouter,
	cfg config.Consumer,
	stream string,
	metrics *ecotel.Metrics,
) *Consumer {
	return &Consumer{
		broker:  broker,
		tracker: tracker,
		router:  router,
		cfg:     cfg,
		stream:  stream,
		metrics: metrics,
		now:     time.Now,
	}
}

// DurableName derives the durable consumer name for subject so that a
// restarted service reattaches to the same position.
func DurableName(service, subject string) string {
	r := strings.NewReplacer(".", "_", "*", "any", ">", "all", " ", "_", "/", "_", "\\", "_")
	return r.Replace(service + "_" + subject)
}

// Subscribe starts consuming subject with h. The returned function stops
// the subscription and waits for in-flight handlers.
func (c *Consumer) Subscribe(ctx context.Context, subject string, h Handler, opts ...SubscribeOption) (func(), error) {
	if subject == "" {
		return nil, fmt.Errorf("subscribe: empty subject")
	}
	if h == nil {
		return nil, fmt.Errorf("subscribe %s: nil handler", subject)
	}

	spec := eventbus.ConsumerSpec{
		Stream:        c.stream,
		FilterSubject: subject,
		AckWait:       c.cfg.AckWait,
		MaxDeliver:    c.cfg.MaxDeliver,
		DeliverPolicy: eventbus.ParseDeliverPolicy(c.cfg.DeliverPolicy),
		BatchSize:     c.cfg.BatchSize,
	}
	for _, o := range opts {
		o(&spec)
	}
	if spec.Durable == "" {
		spec.Durable = DurableName(c.cfg.Service, subject)
	}
	if spec.MaxDeliver < 1 {
		spec.MaxDeliver = 1
	}
	if spec.BatchSize < 1 {
		spec.BatchSize = 1
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConsumerClosed
	}
	c.mu.Unlock()

	sub := &subscription{
		c:        c,
		spec:     spec,
		handler:  h,
		base:     context.WithoutCancel(ctx),
		sem:      semaphore.NewWeighted(int64(spec.BatchSize)),
		failures: make(map[string]time.Time),
	}
	sub.acquireCtx, sub.cancel = context.WithCancel(context.Background())

	stop, err := c.broker.Consume(ctx, spec, sub.dispatch)
	if err != nil {
		sub.cancel()
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	sub.stopPull = stop

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	slog.Info("subscribed", "subject", subject, "consumer", spec.Durable, "stream", spec.Stream)
	return sub.stop, nil
}

// SubscribeStream receives non-durable token events on subject. There is
// no acknowledgment, redelivery or dead-lettering; handler errors are logged.
func (c *Consumer) SubscribeStream(subject string, h Handler) (func(), error) {
	stop, err := c.broker.SubscribeStream(subject, func(subj string, data []byte) {
		e, err := event.Decode(data)
		if err != nil {
			slog.Warn("undecodable stream message", "subject", subj, "error", err)
			return
		}
		ctx := logger.WithEventID(logger.WithCorrelationID(context.Background(), e.CorrelationID), e.EventID)
		if err := invoke(ctx, h, e, 1); err != nil {
			slog.Warn("stream handler failed", "subject", subj, "event_id", e.EventID, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe stream %s: %w", subject, err)
	}

	c.mu.Lock()
	c.streams = append(c.streams, stop)
	c.mu.Unlock()
	return stop, nil
}

// Close stops every subscription and waits for in-flight handlers.
func (c *Consumer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs, streams := c.subs, c.streams
	c.subs, c.streams = nil, nil
	c.mu.Unlock()

	for _, stop := range streams {
		stop()
	}
	for _, s := range subs {
		s.stop()
	}
}

// subscription is one durable consumer and its in-flight handlers.
type subscription struct {
	c       *Consumer
	spec    eventbus.ConsumerSpec
	handler Handler
	base    context.Context
	sem     *semaphore.Weighted

	acquireCtx context.Context
	cancel     context.CancelFunc
	stopPull   func()
	stopOnce   sync.Once

	mu       sync.Mutex
	stopping bool
	wg       sync.WaitGroup
	failures map[string]time.Time
}

// dispatch is called by the broker for each delivery. It blocks while
// BatchSize handlers are running, which is what preserves delivery order
// for BatchSize 1.
func (s *subscription) dispatch(d eventbus.Delivery) {
	if err := s.sem.Acquire(s.acquireCtx, 1); err != nil {
		return // stopping; the delivery stays unacked and will be redelivered
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		s.sem.Release(1)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)
		s.process(d)
	}()
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()

		s.cancel()
		s.stopPull()
		s.wg.Wait()
		slog.Info("unsubscribed", "subject", s.spec.FilterSubject, "consumer", s.spec.Durable)
	})
}

// process runs the per-message algorithm: decode, skip duplicates, invoke
// the handler, then ack, nak with backoff, or dead-letter and ack.
func (s *subscription) process(d eventbus.Delivery) {
	c := s.c
	info := d.Info()
	subject := d.Subject()
	data := d.Data()

	e, err := event.Decode(data)
	if err != nil {
		slog.Error("undecodable message", "subject", subject, "seq", info.StreamSequence, "error", err)
		now := c.now().UTC()
		s.deadLetter(s.base, d, Failure{
			Subject:        subject,
			Data:           data,
			Reason:         err.Error(),
			Count:          int(info.NumDelivered),
			FirstFailureAt: now,
			LastFailureAt:  now,
			Consumer:       s.spec.Durable,
			StreamSequence: info.StreamSequence,
		})
		return
	}

	ctx := logger.WithEventID(logger.WithCorrelationID(s.base, e.CorrelationID), e.EventID)
	log := slog.With("subject", subject, "event_id", e.EventID, "attempt", info.NumDelivered)

	key := processedKey(s.spec.Durable, e.EventID)
	done, err := c.tracker.IsProcessed(ctx, key)
	if err != nil {
		// Prefer a possible duplicate over a lost event.
		log.Warn("idempotency lookup failed", "error", err)
	}
	if done {
		c.metrics.RecordDuplicate(ctx, subject)
		log.Debug("duplicate delivery skipped")
		ack(d, log)
		return
	}

	hctx, span := ecotel.StartHandleSpan(ctx, subject, s.spec.Durable, info.NumDelivered)
	start := c.now()
	herr := invoke(hctx, s.handler, e, info.NumDelivered)
	c.metrics.RecordHandlerDuration(ctx, subject, c.now().Sub(start))
	ecotel.EndSpan(span, herr)

	if herr == nil {
		if err := c.tracker.MarkProcessed(ctx, key); err != nil {
			log.Warn("mark processed failed", "error", err)
		}
		s.forget(e.EventID)
		c.metrics.RecordConsumed(ctx, subject)
		ack(d, log)
		return
	}

	c.metrics.RecordHandlerFailure(ctx, subject)
	now := c.now().UTC()
	first := s.firstFailure(e.EventID, now)

	if info.NumDelivered < uint64(s.spec.MaxDeliver) {
		delay := c.nakDelay(info.NumDelivered)
		log.Warn("handler failed, redelivering", "error", herr, "delay", delay)
		c.metrics.RecordNak(ctx, subject)
		if err := d.Nak(delay); err != nil {
			log.Error("nak failed", "error", err)
		}
		return
	}

	log.Error("handler failed, attempts exhausted", "error", herr, "max_deliver", s.spec.MaxDeliver)
	s.forget(e.EventID)
	s.deadLetter(ctx, d, Failure{
		Subject:        subject,
		Data:           data,
		Event:          e,
		Reason:         herr.Error(),
		Count:          int(info.NumDelivered),
		FirstFailureAt: first,
		LastFailureAt:  now,
		Consumer:       s.spec.Durable,
		StreamSequence: info.StreamSequence,
	})
}

// deadLetter routes f and acks d whether or not routing succeeded.
func (s *subscription) deadLetter(ctx context.Context, d eventbus.Delivery, f Failure) {
	log := slog.With("subject", f.Subject)
	if s.c.router == nil {
		log.Error("no dead-letter router, dropping failed message")
	} else if err := s.c.router.Route(ctx, f); err != nil {
		log.Error("dead-letter routing failed, acking anyway", "error", err)
	}
	ack(d, log)
}

func (s *subscription) firstFailure(id string, now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.failures[id]; ok {
		return t
	}
	if len(s.failures) >= maxTrackedFailures {
		// Entries left behind by messages that moved to another replica.
		for k := range s.failures {
			delete(s.failures, k)
			if len(s.failures) < maxTrackedFailures/2 {
				break
			}
		}
	}
	s.failures[id] = now
	return now
}

func (s *subscription) forget(id string) {
	s.mu.Lock()
	delete(s.failures, id)
	s.mu.Unlock()
}

// nakDelay doubles the base delay per attempt, capped at MaxNakDelay.
func (c *Consumer) nakDelay(attempt uint64) time.Duration {
	d := c.cfg.NakDelay
	if d <= 0 {
		return 0
	}
	for i := uint64(1); i < attempt; i++ {
		d *= 2
		if c.cfg.MaxNakDelay > 0 && d >= c.cfg.MaxNakDelay {
			return c.cfg.MaxNakDelay
		}
	}
	if c.cfg.MaxNakDelay > 0 && d > c.cfg.MaxNakDelay {
		return c.cfg.MaxNakDelay
	}
	return d
}

// invoke runs h, turning an error or a panic into *eventbus.HandlerError.
func invoke(ctx context.Context, h Handler, e *event.Event, attempt uint64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("handler panic", "event_id", e.EventID, "panic", r, "stack", string(debug.Stack()))
			err = &eventbus.HandlerError{
				EventID:   e.EventID,
				EventType: string(e.EventType),
				Attempt:   attempt,
				Panicked:  true,
				Err:       fmt.Errorf("panic: %v", r),
			}
		}
	}()

	if herr := h(ctx, e); herr != nil {
		return &eventbus.HandlerError{
			EventID:   e.EventID,
			EventType: string(e.EventType),
			Attempt:   attempt,
			Err:       herr,
		}
	}
	return nil
}

func ack(d eventbus.Delivery, log *slog.Logger) {
	if err := d.Ack(); err != nil {
		log.Error("ack failed", "error", err)
	}
}

// processedKey scopes an event id to one durable consumer, so every
// subscriber of a subject runs its handler once.
func processedKey(durable, eventID string) string {
	return durable + "/" + eventID
}
