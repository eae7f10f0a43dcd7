package nats

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/eventcore/internal/config"
	"github.com/Strob0t/eventcore/internal/domain/event"
	"github.com/Strob0t/eventcore/internal/port/eventbus"
)

// StreamSpec describes one durable stream.
type StreamSpec struct {
	Name        string
	Description string
	Subjects    []string
	MaxAge      time.Duration
	MaxMsgs     int64
	MaxBytes    int64
	Duplicates  time.Duration
	Replicas    int
}

// TopologyFromConfig returns the main and dead-letter stream specs.
func TopologyFromConfig(cfg config.Streams) []StreamSpec {
	return []StreamSpec{
		{
			Name:        cfg.Main,
			Description: "domain events",
			Subjects:    event.DurableSubjects,
			MaxAge:      cfg.MaxAge,
			MaxMsgs:     cfg.MaxMsgs,
			MaxBytes:    cfg.MaxBytes,
			Duplicates:  cfg.DuplicateWindow,
			Replicas:    cfg.Replicas,
		},
		{
			Name:        cfg.DeadLetter,
			Description: "dead-lettered events",
			Subjects:    event.DeadLetterSubjects,
			MaxAge:      cfg.DLQMaxAge,
			MaxMsgs:     cfg.DLQMaxMsgs,
			MaxBytes:    cfg.MaxBytes,
			Duplicates:  cfg.DuplicateWindow,
			Replicas:    cfg.Replicas,
		},
	}
}

func (s StreamSpec) streamConfig() jetstream.StreamConfig {
	maxBytes := s.MaxBytes
	if maxBytes == 0 {
		maxBytes = -1
	}
	replicas := s.Replicas
	if replicas < 1 {
		replicas = 1
	}
	return jetstream.StreamConfig{
		Name:        s.Name,
		Description: s.Description,
		Subjects:    s.Subjects,
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		MaxAge:      s.MaxAge,
		MaxMsgs:     s.MaxMsgs,
		MaxBytes:    maxBytes,
		Duplicates:  s.Duplicates,
		Replicas:    replicas,
	}
}

// streamCreator is the slice of jetstream.JetStream that provisioning needs.
type streamCreator interface {
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// EnsureTopology creates every stream in specs. A stream that already
// exists counts as provisioned; its configuration is left untouched. Any
// other failure stops at the first error with *eventbus.ProvisioningError.
func EnsureTopology(ctx context.Context, js streamCreator, specs []StreamSpec) error {
	for _, s := range specs {
		_, err := js.CreateStream(ctx, s.streamConfig())
		switch {
		case err == nil:
			slog.Info("stream created", "stream", s.Name, "subjects", s.Subjects)
		case errors.Is(err, jetstream.ErrStreamNameAlreadyInUse):
			slog.Info("stream already exists", "stream", s.Name)
		default:
			return &eventbus.ProvisioningError{Stream: s.Name, Err: err}
		}
	}
	return nil
}

// EnsureTopology provisions specs on this connection.
func (c *Conn) EnsureTopology(ctx context.Context, specs []StreamSpec) error {
	return EnsureTopology(ctx, c.js, specs)
}
