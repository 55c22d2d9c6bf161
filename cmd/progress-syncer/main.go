package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lifeline/internal/bootstrap"
	"lifeline/internal/syncer"
	"lifeline/pkg/config"
	"lifeline/pkg/consumer"
	"lifeline/pkg/server"
	"lifeline/pkg/worker"
	"lifeline/pkg/writer"

	"go.uber.org/zap"
)

func main() {
	// 1. Load config
	bootstrap.LoadEnv()
	cfg, err := config.Load(os.Getenv("LIFELINE_CONFIG"))
	if err == nil {
		err = cfg.ValidateSyncer()
	}
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	l, err := bootstrap.Logger(cfg, "progress-syncer")
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer l.Sync()

	l.Info("progress syncer initializing", zap.String("env", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize PostgreSQL
	pgWriter, err := writer.NewPostgresWriter(ctx, writer.PostgresConfig{
		URI:      cfg.Postgres.URI,
		MinConns: int32(cfg.Postgres.MinConns),
		MaxConns: int32(cfg.Postgres.MaxConns),
	}, l)
	if err != nil {
		l.Error("failed to connect to postgres", err)
		os.Exit(1)
	}
	defer pgWriter.Close()

	// 4. Initialize Consumer
	kafkaConsumer := consumer.NewKafkaConsumer(consumer.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer kafkaConsumer.Close()

	// 5. Initialize Worker Pool
	workerPool := worker.NewWorkerPool(l, pgWriter, kafkaConsumer, worker.Options{
		Workers:       cfg.Syncer.WorkerCount,
		BatchSize:     cfg.Syncer.BatchSize,
		FlushInterval: cfg.Syncer.FlushInterval,
	})

	// 6. Create service
	svc := syncer.NewService(l, kafkaConsumer, workerPool)

	// 7. Start observability server
	obsServer := server.New(cfg.MetricsAddr, l, map[string]server.Check{
		"postgres": pgWriter.Ping,
	})
	go func() {
		if err := obsServer.Start(); err != nil {
			l.Error("observability server failed", err)
		}
	}()

	// 8. Start service
	l.Info("progress syncer starting",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic))
	if err := svc.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			l.Info("progress syncer stopping")
		} else {
			l.Error("progress syncer failed", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	obsServer.Shutdown(shutdownCtx)
}
