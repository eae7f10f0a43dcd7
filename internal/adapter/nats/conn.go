// Package nats implements the event bus port on NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/eventcore/internal/config"
	"github.com/Strob0t/eventcore/internal/port/eventbus"
)

// State is the lifecycle state of a Conn.
type State int32

const (
	StateConnecting State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the process-wide broker connection. It implements eventbus.Broker.
type Conn struct {
	nc           *nats.Conn
	js           jetstream.JetStream
	drainTimeout time.Duration

	state     atomic.Int32
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ eventbus.Broker = (*Conn)(nil)

// Connect dials the configured servers and initializes JetStream. A failed
// initial handshake returns *eventbus.ConnectionError; later losses are
// retried in the background up to cfg.MaxReconnects (-1 = forever).
func Connect(ctx context.Context, cfg config.NATS) (*Conn, error) {
	servers := strings.Join(cfg.Servers, ",")
	if err := ctx.Err(); err != nil {
		return nil, &eventbus.ConnectionError{Servers: servers, Err: err}
	}

	c := &Conn{
		drainTimeout: cfg.DrainTimeout,
		closed:       make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))

	nc, err := nats.Connect(servers,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DrainTimeout(cfg.DrainTimeout),
		// Publishes while disconnected fail instead of buffering.
		nats.ReconnectBufSize(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrlRedacted())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.state.Store(int32(StateClosed))
			slog.Info("nats connection closed")
			close(c.closed)
		}),
	)
	if err != nil {
		return nil, &eventbus.ConnectionError{Servers: servers, Err: err}
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, &eventbus.ConnectionError{Servers: servers, Err: fmt.Errorf("jetstream init: %w", err)}
	}

	c.nc = nc
	c.js = js
	c.state.Store(int32(StateReady))
	slog.Info("nats connected", "url", nc.ConnectedUrlRedacted(), "name", cfg.Name)
	return c, nil
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// IsConnected reports whether the connection is currently up.
func (c *Conn) IsConnected() bool {
	return c.State() == StateReady && c.nc.IsConnected()
}

// JetStream returns the underlying JetStream context.
func (c *Conn) JetStream() jetstream.JetStream {
	return c.js
}

// Close drains subscriptions and pending acks, then disconnects. If the
// drain does not finish within the drain timeout the connection is closed
// hard. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if err := c.nc.Drain(); err != nil {
			c.nc.Close()
			if !errors.Is(err, nats.ErrConnectionClosed) {
				c.closeErr = fmt.Errorf("nats drain: %w", err)
			}
			return
		}
		select {
		case <-c.closed:
		case <-time.After(c.drainTimeout + time.Second):
			slog.Warn("nats drain timed out, closing", "timeout", c.drainTimeout)
			c.nc.Close()
		}
	})
	return c.closeErr
}

// KeyValue opens (creating if needed) a KV bucket whose entries expire after ttl.
func (c *Conn) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := c.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "processed event ids",
		TTL:         ttl,
		History:     1,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv %s: %w", bucket, err)
	}
	return kv, nil
}

// available returns nil when operations may be issued.
func (c *Conn) available() error {
	if c.State() == StateClosed {
		return eventbus.ErrClosed
	}
	if !c.nc.IsConnected() {
		return eventbus.ErrNotConnected
	}
	return nil
}
