package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/bookinga/bookinga-backend/internal/notifications"
	"github.com/bookinga/bookinga-backend/internal/realtime"
	"github.com/bookinga/bookinga-backend/pkg/config"
	"github.com/bookinga/bookinga-backend/pkg/db"
	"github.com/bookinga/bookinga-backend/pkg/logger"
	"github.com/bookinga/bookinga-backend/pkg/metrics"
	"github.com/bookinga/bookinga-backend/pkg/migrate"
	"github.com/bookinga/bookinga-backend/pkg/outbox"
	"github.com/bookinga/bookinga-backend/pkg/outbox/idempotency"
	"github.com/bookinga/bookinga-backend/pkg/pubsub"
	"github.com/bookinga/bookinga-backend/pkg/push"
	"github.com/bookinga/bookinga-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "notification-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "notification-worker"

	logg = logger.New(logger.Options{
		ServiceName: "notification-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		logg.Error(bootCtx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap redis", err)
		os.Exit(1)
	}

	pubsubClient, err := pubsub.NewClient(bootCtx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}

	pushClient, err := push.NewClient(bootCtx, cfg.GCP, cfg.Notifications, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap push relay", err)
		os.Exit(1)
	}

	defer func() {
		if err := multierr.Combine(pubsubClient.Close(), redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing clients", err)
		}
	}()

	gdb := dbClient.DB()
	repo := notifications.NewRepository(gdb)
	tokens := notifications.NewTokenRepository(gdb)
	pushMetrics := metrics.NewPushMetrics(prometheus.DefaultRegisterer)

	broadcaster, err := realtime.NewBroadcaster(redisClient, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to create realtime broadcaster", err)
		os.Exit(1)
	}

	dispatcher, err := notifications.NewDispatcher(repo, tokens, pushClient, logg,
		notifications.WithRealtime(broadcaster),
		notifications.WithPushMetrics(pushMetrics),
	)
	if err != nil {
		logg.Error(bootCtx, "failed to create dispatcher", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(dbClient, repo, tokens, outbox.NewService(outbox.NewRepository(gdb), logg), logg)
	if err != nil {
		logg.Error(bootCtx, "failed to create notification service", err)
		os.Exit(1)
	}
	expander, err := notifications.NewExpander(dbClient, repo, notificationService, pushMetrics, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to create bulk expander", err)
		os.Exit(1)
	}

	claims, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(bootCtx, "failed to create idempotency manager", err)
		os.Exit(1)
	}

	consumer, err := notifications.NewConsumer(pubsubClient.NotificationSubscription(), claims, dispatcher, expander, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to create notification consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: consumer,
	})
	if err != nil {
		logg.Error(bootCtx, "failed to create notification worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"serviceKind":  cfg.Service.Kind,
		"subscription": cfg.PubSub.NotificationSubscription,
	})
	logg.Info(ctx, "starting notification worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notification worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "notification worker shutting down gracefully")
}
