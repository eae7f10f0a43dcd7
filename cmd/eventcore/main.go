// Command eventcore runs the event delivery core: it connects to NATS,
// provisions the event streams, watches the dead-letter stream and serves
// a health endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	cfnats "github.com/Strob0t/eventcore/internal/adapter/nats"
	ecotel "github.com/Strob0t/eventcore/internal/adapter/otel"
	"github.com/Strob0t/eventcore/internal/config"
	"github.com/Strob0t/eventcore/internal/domain/event"
	"github.com/Strob0t/eventcore/internal/logger"
	"github.com/Strob0t/eventcore/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closer := logger.New(cfg.Logging)
	defer closer.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"path", cfgPath,
		"servers", cfg.NATS.Servers,
		"main_stream", cfg.Streams.Main,
		"dlq_stream", cfg.Streams.DeadLetter,
		"idempotency", cfg.Idempotency.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownTelemetry, err := ecotel.Init(ctx, cfg.Logging.Service, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	metrics, err := ecotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	conn, err := cfnats.Connect(ctx, cfg.NATS)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Warn("nats close", "error", err)
		}
	}()

	if err := conn.EnsureTopology(ctx, cfnats.TopologyFromConfig(cfg.Streams)); err != nil {
		return err
	}
	if flags.ProvisionOnly {
		slog.Info("topology provisioned, exiting")
		return nil
	}

	tracker, err := newTracker(ctx, cfg.Idempotency, conn)
	if err != nil {
		return fmt.Errorf("idempotency: %w", err)
	}
	defer tracker.Close()

	// --- Services ---

	publisher := service.NewPublisher(conn, metrics)
	router := service.NewDeadLetterRouter(publisher, cfg.DeadLetter, metrics)
	consumer := service.NewConsumer(conn, tracker, router, cfg.Consumer, cfg.Streams.Main, metrics)
	defer consumer.Close()

	if _, err := consumer.Subscribe(ctx, event.DeadLetterPrefix+">", monitorDeadLetters,
		service.WithStream(cfg.Streams.DeadLetter),
		service.WithDurable(service.DurableName(cfg.Consumer.Service, "dlq_monitor")),
	); err != nil {
		return fmt.Errorf("dead-letter monitor: %w", err)
	}

	// --- Run ---

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tracker.Run(gctx)
		return nil
	})

	if cfg.Server.Port != "" {
		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           newHealthRouter(conn, cfg.Logging.Service),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("health endpoint listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	slog.Info("eventcore running", "service", cfg.Consumer.Service)
	<-gctx.Done()
	slog.Info("shutting down")
	return g.Wait()
}

// monitorDeadLetters logs every record that reaches the dead-letter stream.
func monitorDeadLetters(ctx context.Context, e *event.Event) error {
	dl, ok := e.Data.(*event.DeadLetter)
	if !ok {
		slog.WarnContext(ctx, "unexpected event on dead-letter stream", "type", e.EventType)
		return nil
	}
	slog.WarnContext(ctx, "dead letter",
		"original_type", dl.OriginalType,
		"original_subject", dl.OriginalSubject,
		"reason", dl.FailureReason,
		"failure_count", dl.FailureCount,
		"first_failure_at", dl.FirstFailureAt,
		"last_failure_at", dl.LastFailureAt,
		"consumer", dl.Consumer,
	)
	return nil
}
