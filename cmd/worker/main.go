package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/openaid/aid-inventory/internal/alerts"
	"github.com/openaid/aid-inventory/internal/items"
	"github.com/openaid/aid-inventory/internal/maintenance"
	"github.com/openaid/aid-inventory/pkg/config"
	"github.com/openaid/aid-inventory/pkg/db"
	"github.com/openaid/aid-inventory/pkg/instance"
	"github.com/openaid/aid-inventory/pkg/logger"
	"github.com/openaid/aid-inventory/pkg/metrics"
	"github.com/openaid/aid-inventory/pkg/outbox"
	"github.com/openaid/aid-inventory/pkg/outbox/idempotency"
	"github.com/openaid/aid-inventory/pkg/outbox/registry"
	"github.com/openaid/aid-inventory/pkg/pubsub"
	"github.com/openaid/aid-inventory/pkg/redis"
)

const serviceName = "worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	fatalIf(logg, "failed to load config", err)
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceName,
		"instance":    instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	fatalIf(logg, "failed to bootstrap database", err)
	defer closeQuietly(logg, "database", dbClient.Close)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	fatalIf(logg, "failed to bootstrap redis", err)
	defer closeQuietly(logg, "redis", redisClient.Close)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	stockMetrics := metrics.NewStockMetrics(reg)
	jobMetrics := metrics.NewJobMetrics(reg)

	conn := dbClient.DB()
	itemRepo := items.NewRepository(conn)
	outboxRepo := outbox.NewRepository(conn)

	lock, err := maintenance.NewRedisLock(redisClient, maintenance.LockKey, cfg.Maintenance.LockTTL)
	fatalIf(logg, "failed to build maintenance lock", err)
	retention, err := maintenance.NewOutboxRetentionJob(logg, dbClient, outboxRepo, cfg.Maintenance.OutboxRetentionDays)
	fatalIf(logg, "failed to build outbox retention job", err)
	sweep, err := maintenance.NewLowStockSweepJob(logg, itemRepo, stockMetrics)
	fatalIf(logg, "failed to build low stock sweep job", err)
	maint, err := maintenance.NewRunner(maintenance.RunnerParams{
		Logger:   logg,
		Registry: maintenance.NewRegistry(retention, sweep),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Maintenance.Interval,
	})
	fatalIf(logg, "failed to build maintenance runner", err)

	ready := map[string]pinger{
		"database": dbClient.Ping,
		"redis":    redisClient.Ping,
	}
	runners := map[string]runner{
		"maintenance": maint,
		"metrics": runFunc(func(ctx context.Context) error {
			return metrics.Serve(ctx, cfg.App.MetricsAddr, reg, logg)
		}),
	}

	if cfg.Inventory.LowStockAlertEnabled {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, true, logg)
		fatalIf(logg, "failed to bootstrap pubsub", err)
		defer closeQuietly(logg, "pubsub", pubsubClient.Close)

		manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
		fatalIf(logg, "failed to build idempotency manager", err)
		consumer, err := alerts.NewConsumer(alerts.ConsumerParams{
			Items:        itemRepo,
			DB:           dbClient,
			Outbox:       outbox.NewService(outboxRepo, logg),
			Subscription: pubsubClient.StockEventsSubscription(),
			Idempotency:  manager,
			Decoders:     registry.NewDefaultDecoderRegistry(),
			Metrics:      stockMetrics,
			Logger:       logg,
		})
		fatalIf(logg, "failed to build low stock consumer", err)
		ready["pubsub"] = pubsubClient.Ping
		runners["low-stock-alerts"] = consumer
	} else {
		logg.Info(ctx, "low stock alerts disabled")
	}

	service, err := NewService(ServiceParams{Logger: logg, Ready: ready, Runners: runners})
	fatalIf(logg, "failed to create worker service", err)

	logg.Info(ctx, "starting worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}

func fatalIf(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}

func closeQuietly(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}
