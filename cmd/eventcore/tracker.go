package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	cfnats "github.com/Strob0t/eventcore/internal/adapter/nats"
	"github.com/Strob0t/eventcore/internal/adapter/natskv"
	"github.com/Strob0t/eventcore/internal/adapter/ristretto"
	"github.com/Strob0t/eventcore/internal/adapter/tiered"
	"github.com/Strob0t/eventcore/internal/config"
	"github.com/Strob0t/eventcore/internal/idempotency"
	trackerport "github.com/Strob0t/eventcore/internal/port/idempotency"
)

// processedTracker is the selected idempotency backend plus its lifecycle.
type processedTracker struct {
	trackerport.Tracker
	run   func(ctx context.Context)
	close func()
}

// Run blocks until ctx is cancelled, running backend maintenance if any.
func (t *processedTracker) Run(ctx context.Context) {
	if t.run == nil {
		<-ctx.Done()
		return
	}
	t.run(ctx)
}

func (t *processedTracker) Close() {
	if t.close != nil {
		t.close()
	}
}

// kvOpener is the slice of the NATS connection the kv backend needs.
type kvOpener interface {
	KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error)
}

var _ kvOpener = (*cfnats.Conn)(nil)

// newTracker builds the backend named by cfg.Backend.
//
//   - memory: per-process map swept on an interval. Lost on restart and not
//     shared between replicas.
//   - kv: JetStream KV bucket (shared, survives restarts) with an
//     in-process ristretto cache in front.
func newTracker(ctx context.Context, cfg config.Idempotency, conn kvOpener) (*processedTracker, error) {
	switch cfg.Backend {
	case "", "memory":
		m := idempotency.NewMemory(cfg.TTL)
		slog.Info("idempotency tracker", "backend", "memory", "ttl", cfg.TTL)
		return &processedTracker{
			Tracker: m,
			run:     func(ctx context.Context) { m.Run(ctx, cfg.SweepInterval) },
		}, nil

	case "kv":
		kv, err := conn.KeyValue(ctx, cfg.Bucket, cfg.TTL)
		if err != nil {
			return nil, err
		}
		l1, err := ristretto.New(cfg.L1MaxSizeMB<<20, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("l1 cache: %w", err)
		}
		slog.Info("idempotency tracker", "backend", "kv", "bucket", cfg.Bucket, "ttl", cfg.TTL, "l1_mb", cfg.L1MaxSizeMB)
		return &processedTracker{
			Tracker: tiered.New(l1, natskv.New(kv)),
			close:   l1.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
