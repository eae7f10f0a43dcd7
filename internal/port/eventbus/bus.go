// Package eventbus defines the broker port (interfaces) used by the
// publisher, consumer and dead-letter router.
package eventbus

import (
	"context"
	"time"
)

// DeliverPolicy selects where a brand-new durable consumer starts.
type DeliverPolicy int

const (
	// DeliverAll replays the stream from its first retained message.
	DeliverAll DeliverPolicy = iota
	// DeliverNew starts with messages published after the consumer is created.
	DeliverNew
)

// ParseDeliverPolicy maps "all" / "new" to a DeliverPolicy. Anything else is DeliverAll.
func ParseDeliverPolicy(s string) DeliverPolicy {
	if s == "new" {
		return DeliverNew
	}
	return DeliverAll
}

func (p DeliverPolicy) String() string {
	if p == DeliverNew {
		return "new"
	}
	return "all"
}

// PublishAck is the broker's confirmation of durable storage.
type PublishAck struct {
	Stream    string
	Sequence  uint64
	Duplicate bool // the message id was already stored within the dedup window
}

// ConsumerSpec describes a durable, explicit-ack consumer.
type ConsumerSpec struct {
	Stream        string
	Durable       string
	FilterSubject string
	AckWait       time.Duration
	MaxDeliver    int
	DeliverPolicy DeliverPolicy
	BatchSize     int // max messages pulled per request
}

// DeliveryInfo is broker metadata about one delivery of a message.
type DeliveryInfo struct {
	Stream         string
	Consumer       string
	StreamSequence uint64
	NumDelivered   uint64 // 1 on first delivery
	PublishedAt    time.Time
}

// Delivery is one delivery of a stored message.
type Delivery interface {
	Subject() string
	Data() []byte
	Info() DeliveryInfo
	// Ack confirms the message; it will not be redelivered.
	Ack() error
	// Nak asks the broker to redeliver after delay.
	Nak(delay time.Duration) error
}

// Broker is the capability the event services need from the bus. The NATS
// adapter implements it; tests use an in-memory fake.
type Broker interface {
	// Publish stores data on subject durably. msgID is the dedup key.
	// Implementations fail fast with ErrNotConnected while disconnected.
	Publish(ctx context.Context, subject string, data []byte, msgID string) (PublishAck, error)

	// PublishStream sends data on subject without persistence (at most once).
	PublishStream(ctx context.Context, subject string, data []byte) error

	// Consume binds to (creating if needed) the durable consumer described by
	// spec and calls fn for each delivery. fn is called from a single
	// goroutine per consumer. The returned stop function stops pulling and
	// waits for the pull loop to exit.
	Consume(ctx context.Context, spec ConsumerSpec, fn func(Delivery)) (stop func(), err error)

	// SubscribeStream receives non-durable messages published with PublishStream.
	SubscribeStream(subject string, fn func(subject string, data []byte)) (stop func(), err error)

	// IsConnected reports point-in-time liveness of the connection.
	IsConnected() bool
}
