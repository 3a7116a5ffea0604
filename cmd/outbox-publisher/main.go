package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/restaurant-core/pkg/config"
	"github.com/angelmondragon/restaurant-core/pkg/db"
	"github.com/angelmondragon/restaurant-core/pkg/logger"
	"github.com/angelmondragon/restaurant-core/pkg/metrics"
	"github.com/angelmondragon/restaurant-core/pkg/migrate"
	"github.com/angelmondragon/restaurant-core/pkg/outbox"
	"github.com/angelmondragon/restaurant-core/pkg/outbox/registry"
	"github.com/angelmondragon/restaurant-core/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	requeue := flag.String("requeue", "", "move a dead-lettered event id back into the outbox and exit")
	flag.Parse()
	os.Exit(run(*requeue))
}

// run returns the process exit code so deferred closes always execute.
func run(requeue string) int {
	bootCtx := context.Background()
	if err := godotenv.Load(); err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Warn(bootCtx, ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Error(bootCtx, "failed to load config", err)
		return 1
	}
	cfg.Service.Kind = serviceKind
	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap database", err)
		return 1
	}
	defer closeWith(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		logg.Error(bootCtx, "failed to run dev migrations", err)
		return 1
	}

	dlqRepo := outbox.NewDLQRepository(dbClient.DB())
	if requeue != "" {
		return requeueDeadLetter(logg, dlqRepo, requeue)
	}

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(bootCtx, "failed to build event registry", err)
		return 1
	}
	pubsubClient, err := pubsub.NewClient(bootCtx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap pubsub", err)
		return 1
	}
	defer closeWith(logg, "pubsub client", pubsubClient.Close)

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: dlqRepo,
		Metrics:       metrics.NewDomainMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(bootCtx, "failed to create outbox publisher", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(bootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"topics":      eventRegistry.Topics(),
		"ordering":    cfg.PubSub.OrderingEnabled,
	})
	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		return 1
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
	return 0
}

func closeWith(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), fmt.Sprintf("error closing %s", name), err)
	}
}

func requeueDeadLetter(logg *logger.Logger, dlq *outbox.DLQRepository, raw string) int {
	ctx := logg.WithField(context.Background(), "event_id", raw)
	eventID, err := uuid.Parse(raw)
	if err != nil {
		logg.Error(ctx, "invalid event id", err)
		return 2
	}
	if err := dlq.Requeue(ctx, eventID); err != nil {
		logg.Error(ctx, "failed to requeue dead letter", err)
		return 1
	}
	logg.Info(ctx, "dead letter requeued")
	return 0
}
