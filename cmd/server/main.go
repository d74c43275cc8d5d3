package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tickbook/api/grpcserver"
	"tickbook/config"
	"tickbook/infra/health"
	"tickbook/infra/kafka"
	"tickbook/infra/log"
	"tickbook/infra/metrics"
	"tickbook/infra/outbox"
	"tickbook/infra/runner"
	"tickbook/infra/sequence"
	"tickbook/infra/tape"
	"tickbook/jobs/broadcaster"
	"tickbook/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tickbook:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment and YAML still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := log.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- Metrics ----------------

	registry, m := metrics.Init(logger)

	// ---------------- Sinks ----------------

	sinks := []service.Sink{service.LogSink{Log: log.Component(logger, "l1")}}

	var box *outbox.Outbox
	if cfg.Kafka.Publish {
		box, err = outbox.Open(outbox.Config{Dir: cfg.Outbox.Dir})
		if err != nil {
			return err
		}
		defer box.Close()
		sinks = append(sinks, box)
	}

	// ---------------- Tape ----------------

	var rec *tape.Writer
	if cfg.Tape.Record != "" {
		rec, err = tape.Create(tape.Config{Dir: cfg.Tape.Record, SyncEvery: 1024})
		if err != nil {
			return err
		}
	}

	// ---------------- Service ----------------

	// Numbering resumes above anything already on the tape or in the
	// outbox; ReplayTape raises it further if the replayed tape is ahead.
	seq := sequence.New(0)
	if rec != nil {
		seq.Observe(rec.LastSeq())
	}
	if box != nil {
		seq.Observe(box.LastSeq())
	}

	svc, err := service.New(service.Config{
		Book:       cfg.BookConfig(),
		QueueDepth: cfg.Engine.QueueDepth,
		BatchSize:  cfg.Engine.BatchSize,
		NotifyRing: cfg.Engine.NotifyRing,
		Recorder:   rec,
		Sinks:      sinks,
		Seq:        seq,
		Metrics:    m,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	if cfg.Tape.Replay != "" {
		if _, err := svc.ReplayTape(ctx, cfg.Tape.Replay); err != nil {
			return err
		}
	}

	// ---------------- Workers ----------------

	g, gctx := runner.New(ctx)
	g.Go(gctx, "book", svc.Run)

	if cfg.Kafka.Consume {
		consumer := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.OrdersTopic,
			GroupID: cfg.Kafka.GroupID,
		}, logger)
		defer consumer.Close()
		g.Go(gctx, "ingest", func(ctx context.Context) error {
			n, err := svc.Ingest(ctx, consumer)
			logger.Info().Int("events", n).Uint64("skipped", consumer.Skipped()).Msg("ingest stopped")
			return err
		})
	}

	var bc *broadcaster.Broadcaster
	if cfg.Kafka.Publish {
		producer, err := broadcaster.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			g.Stop()
			return fmt.Errorf("kafka producer: %w", err)
		}
		bc = broadcaster.New(box, producer, broadcaster.Config{
			Topic:    cfg.Kafka.L1Topic,
			Interval: cfg.Outbox.Interval,
			Ticks:    cfg.Ticks(),
			Metrics:  m,
			Logger:   logger,
		})
		defer bc.Close()
		g.Go(gctx, "broadcaster", bc.Run)
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		g.Stop()
		return fmt.Errorf("grpc listen: %w", err)
	}
	grpcSrv := grpcserver.NewGRPCServer(grpcserver.NewServer(svc, cfg.Ticks(), logger))
	g.Go(gctx, "grpc", func(context.Context) error {
		return grpcSrv.Serve(lis)
	})

	// ---------------- HTTP ----------------

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.HandleFunc("/healthz", health.Healthz)
	mux.HandleFunc("/readyz", health.Readyz)
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
	}
	g.Go(gctx, "http", func(context.Context) error {
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	health.Register("book", func() error {
		select {
		case <-svc.Done():
			return service.ErrStopped
		default:
			return nil
		}
	})
	if box != nil {
		health.Register("outbox", func() error {
			return box.CheckBacklog(cfg.Outbox.MaxPending)
		})
	}
	health.SetReady(true)
	logger.Info().
		Str("grpc", cfg.GRPC.Addr).
		Str("http", cfg.HTTP.Addr).
		Str("index", cfg.IndexKind().String()).
		Msg("tickbook started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-g.Err():
		logger.Error().Err(runErr).Msg("worker failed")
	}

	// ---------------- Shutdown ----------------

	health.SetReady(false)
	grpcSrv.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	g.Stop()

	// The owner has flushed its last updates into the outbox by now.
	if bc != nil {
		if n, err := bc.PublishOnce(); err != nil {
			logger.Warn().Err(err).Int("sent", n).Msg("final publish incomplete")
		}
	}
	if rec != nil {
		if err := rec.Close(); err != nil {
			logger.Error().Err(err).Msg("tape close failed")
		}
	}
	logger.Info().Uint64("dropped_l1", svc.Dropped()).Msg("shutdown complete")
	return runErr
}
