package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/eventcore/internal/config"
	"github.com/Strob0t/eventcore/internal/domain/event"
	"github.com/Strob0t/eventcore/internal/idempotency"
	"github.com/Strob0t/eventcore/internal/port/eventbus"
	"github.com/Strob0t/eventcore/internal/service"
)

// published is one message stored by fakeBroker.
type published struct {
	subject string
	data    []byte
	msgID   string
}

// fakeBroker is an in-memory eventbus.Broker. Stored messages are kept in
// publish order; deliveries are driven explicitly by the test.
type fakeBroker struct {
	mu         sync.Mutex
	msgs       []published
	seen       map[string]bool
	consumers  map[string]*fakeConsumer
	streamSubs map[string][]func(string, []byte)
	publishErr func(subject string) error
	connected  bool
}

type fakeConsumer struct {
	spec    eventbus.ConsumerSpec
	fn      func(eventbus.Delivery)
	stopped bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		seen:       make(map[string]bool),
		consumers:  make(map[string]*fakeConsumer),
		streamSubs: make(map[string][]func(string, []byte)),
		connected:  true,
	}
}

func (b *fakeBroker) Publish(_ context.Context, subject string, data []byte, msgID string) (eventbus.PublishAck, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return eventbus.PublishAck{}, eventbus.ErrNotConnected
	}
	if b.publishErr != nil {
		if err := b.publishErr(subject); err != nil {
			return eventbus.PublishAck{}, err
		}
	}
	if b.seen[msgID] {
		return eventbus.PublishAck{Stream: "EVENTS", Duplicate: true}, nil
	}
	b.seen[msgID] = true
	b.msgs = append(b.msgs, published{subject: subject, data: data, msgID: msgID})
	return eventbus.PublishAck{Stream: "EVENTS", Sequence: uint64(len(b.msgs))}, nil
}

func (b *fakeBroker) PublishStream(_ context.Context, subject string, data []byte) error {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return eventbus.ErrNotConnected
	}
	subs := append([]func(string, []byte){}, b.streamSubs[subject]...)
	b.mu.Unlock()
	for _, fn := range subs {
		fn(subject, data)
	}
	return nil
}

func (b *fakeBroker) Consume(_ context.Context, spec eventbus.ConsumerSpec, fn func(eventbus.Delivery)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fc := &fakeConsumer{spec: spec, fn: fn}
	b.consumers[spec.Durable] = fc
	return func() {
		b.mu.Lock()
		fc.stopped = true
		b.mu.Unlock()
	}, nil
}

func (b *fakeBroker) SubscribeStream(subject string, fn func(string, []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamSubs[subject] = append(b.streamSubs[subject], fn)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.streamSubs, subject)
	}, nil
}

func (b *fakeBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBroker) consumer(t *testing.T, durable string) *fakeConsumer {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	fc, ok := b.consumers[durable]
	if !ok {
		t.Fatalf("no consumer %q", durable)
	}
	return fc
}

// stored returns the messages published on subject.
func (b *fakeBroker) stored(subject string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []published
	for _, m := range b.msgs {
		if m.subject == subject {
			out = append(out, m)
		}
	}
	return out
}

// deliverUntilSettled delivers data the way JetStream would: redelivering
// after each nak until the message is acked or MaxDeliver is reached.
// It returns the outcome of each delivery ("ack" or "nak").
func (b *fakeBroker) deliverUntilSettled(t *testing.T, durable, subject string, data []byte) []string {
	t.Helper()
	fc := b.consumer(t, durable)

	seq := nextSeq.Add(1)
	var outcomes []string
	for n := uint64(1); ; n++ {
		d := newFakeDelivery(subject, data, n)
		d.seq = seq
		fc.fn(d)
		out := d.wait(t)
		outcomes = append(outcomes, out)
		if out == "ack" || n >= uint64(fc.spec.MaxDeliver) {
			return outcomes
		}
	}
}

// nextSeq hands out stream sequence numbers.
var nextSeq atomic.Uint64

// fakeDelivery records how the consumer settled one delivery.
type fakeDelivery struct {
	subject string
	data    []byte
	n       uint64
	seq     uint64

	once    sync.Once
	settled chan string
	delay   time.Duration
}

func newFakeDelivery(subject string, data []byte, n uint64) *fakeDelivery {
	return &fakeDelivery{subject: subject, data: data, n: n, seq: nextSeq.Add(1), settled: make(chan string, 1)}
}

func (d *fakeDelivery) Subject() string { return d.subject }
func (d *fakeDelivery) Data() []byte    { return d.data }

func (d *fakeDelivery) Info() eventbus.DeliveryInfo {
	return eventbus.DeliveryInfo{Stream: "EVENTS", Consumer: "test", StreamSequence: d.seq, NumDelivered: d.n}
}

func (d *fakeDelivery) Ack() error {
	d.settle("ack")
	return nil
}

func (d *fakeDelivery) Nak(delay time.Duration) error {
	d.delay = delay
	d.settle("nak")
	return nil
}

func (d *fakeDelivery) settle(s string) {
	d.once.Do(func() { d.settled <- s })
}

func (d *fakeDelivery) wait(t *testing.T) string {
	t.Helper()
	select {
	case s := <-d.settled:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("delivery was never acked or nacked")
		return ""
	}
}

// harness wires the services over a fakeBroker.
type harness struct {
	broker    *fakeBroker
	tracker   *idempotency.Memory
	publisher *service.Publisher
	router    *service.DeadLetterRouter
	consumer  *service.Consumer
	cfg       config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Defaults()
	cfg.Consumer.Service = "test"
	cfg.Consumer.NakDelay = 10 * time.Millisecond
	cfg.Consumer.MaxNakDelay = 40 * time.Millisecond

	h := &harness{broker: newFakeBroker(), tracker: idempotency.NewMemory(time.Hour), cfg: cfg}
	h.publisher = service.NewPublisher(h.broker, nil)
	h.router = service.NewDeadLetterRouter(h.publisher, cfg.DeadLetter, nil)
	h.consumer = service.NewConsumer(h.broker, h.tracker, h.router, cfg.Consumer, cfg.Streams.Main, nil)
	t.Cleanup(h.consumer.Close)
	return h
}

// encode builds the wire form of an event with a fixed id.
func encode(t *testing.T, id string, p event.Payload) []byte {
	t.Helper()
	b, err := event.Encode(event.New(p, event.WithEventID(id)))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// decodeDeadLetter returns the dead-letter payload stored on subject.
func decodeDeadLetter(t *testing.T, b *fakeBroker, subject string) (*event.Event, *event.DeadLetter) {
	t.Helper()
	msgs := b.stored(subject)
	if len(msgs) != 1 {
		t.Fatalf("dead letters on %s = %d, want 1", subject, len(msgs))
	}
	e, err := event.Decode(msgs[0].data)
	if err != nil {
		t.Fatalf("decode dead letter: %v", err)
	}
	dl, ok := e.Data.(*event.DeadLetter)
	if !ok {
		t.Fatalf("dead letter payload = %T", e.Data)
	}
	return e, dl
}

var errHandler = errors.New("tool backend unavailable")

// compactJSON normalizes JSON for comparisons.
func compactJSON(t *testing.T, b []byte) string {
	t.Helper()
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, _ := json.Marshal(v)
	return string(out)
}
