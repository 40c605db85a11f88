package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/bookinga/bookinga-backend/api/controllers/live"
	"github.com/bookinga/bookinga-backend/api/routes"
	"github.com/bookinga/bookinga-backend/internal/appointments"
	"github.com/bookinga/bookinga-backend/internal/notifications"
	"github.com/bookinga/bookinga-backend/internal/realtime"
	"github.com/bookinga/bookinga-backend/internal/users"
	"github.com/bookinga/bookinga-backend/pkg/config"
	"github.com/bookinga/bookinga-backend/pkg/db"
	"github.com/bookinga/bookinga-backend/pkg/logger"
	"github.com/bookinga/bookinga-backend/pkg/migrate"
	"github.com/bookinga/bookinga-backend/pkg/outbox"
	"github.com/bookinga/bookinga-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing clients", err)
		}
	}()

	gdb := dbClient.DB()
	cache := appointments.NewDataCache(cfg.Cache.TTL)
	userRepo := users.NewRepository(gdb)
	apptRepo := appointments.NewRepository(gdb)

	notificationService, err := notifications.NewService(
		dbClient,
		notifications.NewRepository(gdb),
		notifications.NewTokenRepository(gdb),
		outbox.NewService(outbox.NewRepository(gdb), logg),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	broadcaster, err := realtime.NewBroadcaster(redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create realtime broadcaster", err)
		os.Exit(1)
	}

	actions, err := appointments.NewService(dbClient, apptRepo, notificationService, cache, broadcaster, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create appointment service", err)
		os.Exit(1)
	}

	loaderCfg := appointments.LoaderConfig{
		Debounce:    cfg.Cache.Debounce,
		LookupChunk: cfg.Cache.LookupChunk,
	}

	liveHandler := live.Handler(live.Deps{
		Cache:  cache,
		Store:  apptRepo,
		Users:  userRepo,
		Loader: loaderCfg,
		Listen: func(ctx context.Context, handle func(realtime.Event), channels ...string) error {
			return realtime.Listen(ctx, redisClient, logg, handle, channels...)
		},
		DedupCooldown:  cfg.Notifications.DedupCooldown,
		ClickURL:       cfg.Notifications.ClickURL,
		Location:       cfg.App.Location(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logg,
	})

	router := routes.NewRouter(cfg, logg, routes.Deps{
		DB:            dbClient,
		Redis:         redisClient,
		Idempotency:   redisClient,
		Appointments:  appointments.NewReader(cache, apptRepo, userRepo, logg, loaderCfg),
		Actions:       actions,
		Notifications: notificationService,
		Live:          liveHandler,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down")
	}
}
