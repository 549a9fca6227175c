package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/config"
	"github.com/ariefcatur/go-marketplace-settlement/internal/events"
	kafkax "github.com/ariefcatur/go-marketplace-settlement/internal/kafka"
	"github.com/ariefcatur/go-marketplace-settlement/internal/logger"
	"github.com/ariefcatur/go-marketplace-settlement/internal/metrics"
	"github.com/ariefcatur/go-marketplace-settlement/internal/notify"
	"github.com/ariefcatur/go-marketplace-settlement/internal/outbox"
	"github.com/ariefcatur/go-marketplace-settlement/internal/postgres"
	"github.com/ariefcatur/go-marketplace-settlement/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// The worker relays the outbox to Kafka and fans domain events out to
// per-user Redis channels.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	service := cfg.ServiceName + "-worker"
	log, err := logger.New(cfg.Environment, service)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, provider, err := metrics.Init(ctx, metrics.Config{
		ServiceName:  service,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatal("metrics init", zap.Error(err))
	}

	// DB
	db, err := postgres.ConnectWithRetry(ctx, cfg.PostgresDSN, 10, 2*time.Second, func(attempt int, err error) {
		log.Warn("postgres not ready", zap.Int("attempt", attempt), zap.Error(err))
	})
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, log)
	defer prod.Close()

	relay := outbox.NewRelay(&postgres.Store{DB: db}, prod, m, log, cfg.OutboxPollInterval, cfg.OutboxBatch)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, events.AllTopics, cfg.NotifierWorkers, log)
	notifier := notify.New(rdb, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		log.Info("notifier started", zap.String("group", cfg.NotifierGroup), zap.Int("workers", cfg.NotifierWorkers))
		return cons.Start(gctx, notifier.Handle)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error("worker stopped", zap.Error(err))
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown", zap.Error(err))
	}
}
