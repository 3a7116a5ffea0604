package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/restaurant-core/internal/app"
	"github.com/angelmondragon/restaurant-core/internal/cron"
	"github.com/angelmondragon/restaurant-core/pkg/config"
	"github.com/angelmondragon/restaurant-core/pkg/db"
	"github.com/angelmondragon/restaurant-core/pkg/logger"
	"github.com/angelmondragon/restaurant-core/pkg/metrics"
	"github.com/angelmondragon/restaurant-core/pkg/migrate"
	"github.com/angelmondragon/restaurant-core/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()
	os.Exit(run(*once))
}

func run(once bool) int {
	boot := context.Background()
	if err := godotenv.Load(); err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Warn(boot, ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Error(boot, "failed to load config", err)
		return 1
	}
	cfg.Service.Kind = serviceKind
	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	service, shutdown, err := wire(boot, cfg, logg)
	defer func() {
		if err := shutdown(); err != nil {
			logg.Error(boot, "error releasing worker resources", err)
		}
	}()
	if err != nil {
		logg.Error(boot, "failed to start cron worker", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(boot, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    service.Interval().String(),
	})

	if once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			return 1
		}
		return 0
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		return 1
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return 0
}

// wire opens the stores and assembles the cron service. The returned
// shutdown func is always non-nil and closes whatever was opened.
func wire(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*cron.Service, func() error, error) {
	var closers []func() error
	shutdown := func() error {
		var errs error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, closers[i]())
		}
		return errs
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, shutdown, fmt.Errorf("bootstrap database: %w", err)
	}
	closers = append(closers, dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return nil, shutdown, fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, shutdown, fmt.Errorf("bootstrap redis: %w", err)
	}
	closers = append(closers, redisClient.Close)

	core, err := app.New(app.Deps{
		DB:         dbClient,
		Redis:      redisClient,
		Config:     cfg,
		Logger:     logg,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return nil, shutdown, fmt.Errorf("build services: %w", err)
	}

	jobs, err := registerJobs(cfg, logg, core)
	if err != nil {
		return nil, shutdown, fmt.Errorf("register jobs: %w", err)
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cron.LockName), cron.LockTTL(cfg.Cron.Interval))
	if err != nil {
		return nil, shutdown, fmt.Errorf("cron lock: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	return service, shutdown, err
}

func registerJobs(cfg *config.Config, logg *logger.Logger, core *app.Core) (*cron.Registry, error) {
	jobs := cron.NewRegistry()

	shiftTotals, err := cron.NewShiftTotalsJob(cron.ShiftTotalsJobParams{Logger: logg, Shifts: core.CashShifts})
	if err != nil {
		return nil, err
	}
	promotionExpiry, err := cron.NewPromotionExpiryJob(cron.PromotionExpiryJobParams{Logger: logg, Promotions: core.Promotions})
	if err != nil {
		return nil, err
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		Repository:  core.OutboxRepo,
		DeadLetters: core.DeadLetters,
		Retention:   cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, err
	}

	for _, job := range []cron.Job{shiftTotals, promotionExpiry, outboxRetention} {
		if err := jobs.Register(job); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}
