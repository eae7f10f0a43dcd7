package nats

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/eventcore/internal/port/eventbus"
)

// Publish stores data on subject and waits for the stream ack. msgID is
// sent as Nats-Msg-Id so the stream drops repeats within its dedup window.
func (c *Conn) Publish(ctx context.Context, subject string, data []byte, msgID string) (eventbus.PublishAck, error) {
	if err := c.available(); err != nil {
		return eventbus.PublishAck{}, err
	}

	ack, err := c.js.PublishMsg(ctx, &nats.Msg{Subject: subject, Data: data}, jetstream.WithMsgID(msgID))
	if err != nil {
		return eventbus.PublishAck{}, err
	}
	return eventbus.PublishAck{
		Stream:    ack.Stream,
		Sequence:  ack.Sequence,
		Duplicate: ack.Duplicate,
	}, nil
}

// PublishStream sends data with core NATS. Nothing is stored.
func (c *Conn) PublishStream(_ context.Context, subject string, data []byte) error {
	if err := c.available(); err != nil {
		return err
	}
	return c.nc.Publish(subject, data)
}

// Consume creates or attaches to the durable consumer in spec and pulls
// messages until stop is called.
func (c *Conn) Consume(ctx context.Context, spec eventbus.ConsumerSpec, fn func(eventbus.Delivery)) (func(), error) {
	if err := c.available(); err != nil {
		return nil, err
	}

	cons, err := c.js.CreateOrUpdateConsumer(ctx, spec.Stream, consumerConfig(spec))
	if err != nil {
		return nil, err
	}

	batch := spec.BatchSize
	if batch < 1 {
		batch = 1
	}
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		fn(&delivery{msg: msg})
	},
		jetstream.PullMaxMessages(batch),
		jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
			slog.Warn("nats consume error", "consumer", spec.Durable, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}

	slog.Info("nats consumer attached",
		"stream", spec.Stream,
		"consumer", spec.Durable,
		"filter", spec.FilterSubject,
		"deliver", spec.DeliverPolicy.String(),
	)

	return func() {
		cc.Stop()
		select {
		case <-cc.Closed():
		case <-time.After(c.drainTimeout):
		}
	}, nil
}

// SubscribeStream receives core NATS messages on subject.
func (c *Conn) SubscribeStream(subject string, fn func(subject string, data []byte)) (func(), error) {
	if err := c.available(); err != nil {
		return nil, err
	}
	sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		fn(m.Subject, m.Data)
	})
	if err != nil {
		return nil, err
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Debug("nats unsubscribe", "subject", subject, "error", err)
		}
	}, nil
}

func consumerConfig(spec eventbus.ConsumerSpec) jetstream.ConsumerConfig {
	deliver := jetstream.DeliverAllPolicy
	if spec.DeliverPolicy == eventbus.DeliverNew {
		deliver = jetstream.DeliverNewPolicy
	}
	return jetstream.ConsumerConfig{
		Durable:       spec.Durable,
		FilterSubject: spec.FilterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       spec.AckWait,
		MaxDeliver:    spec.MaxDeliver,
		DeliverPolicy: deliver,
	}
}

// delivery adapts a jetstream.Msg to eventbus.Delivery.
type delivery struct {
	msg jetstream.Msg
}

func (d *delivery) Subject() string { return d.msg.Subject() }
func (d *delivery) Data() []byte    { return d.msg.Data() }
func (d *delivery) Ack() error      { return d.msg.Ack() }

func (d *delivery) Nak(delay time.Duration) error {
	if delay <= 0 {
		return d.msg.Nak()
	}
	return d.msg.NakWithDelay(delay)
}

func (d *delivery) Info() eventbus.DeliveryInfo {
	md, err := d.msg.Metadata()
	if err != nil {
		// Not a JetStream message; treat as a first delivery.
		return eventbus.DeliveryInfo{NumDelivered: 1}
	}
	return eventbus.DeliveryInfo{
		Stream:         md.Stream,
		Consumer:       md.Consumer,
		StreamSequence: md.Sequence.Stream,
		NumDelivered:   md.NumDelivered,
		PublishedAt:    md.Timestamp,
	}
}
