package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/flowpay/flowpay/internal/auth"
	"github.com/flowpay/flowpay/internal/config"
	"github.com/flowpay/flowpay/internal/events"
	"github.com/flowpay/flowpay/internal/idempotency"
	"github.com/flowpay/flowpay/internal/identity"
	"github.com/flowpay/flowpay/internal/infra"
	"github.com/flowpay/flowpay/internal/logging"
	"github.com/flowpay/flowpay/internal/notification"
	"github.com/flowpay/flowpay/internal/routes"
	"github.com/flowpay/flowpay/internal/server"
	"github.com/flowpay/flowpay/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppName)

	ctx := context.Background()

	var dbPool *pgxpool.Pool
	var store wallet.Store
	var userRepo identity.Repository
	if cfg.DatabaseURL != "" {
		dbPool, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()
		store = wallet.NewPostgresStore(dbPool)
		userRepo = identity.NewPostgresRepository(dbPool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		store = wallet.NewMemoryStore()
		userRepo = identity.NewMemoryRepository()
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else {
		logger.Warn("REDIS_URL not set, idempotency guard and balance cache run degraded")
	}

	guard := idempotency.NewGuard(cache, cfg.IdempotencyTTL, logger)
	balanceCache := wallet.NewCache(cache, cfg.CacheTTL, logger)

	var publisher events.Publisher
	var memBus *events.MemoryBus
	if cfg.AMQPURL != "" {
		conn, err := infra.NewAMQPConnection(cfg.AMQPURL)
		if err != nil {
			logger.Error("connect rabbitmq", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		pub, err := events.NewAMQPPublisher(conn, cfg.EventExchange, logger)
		if err != nil {
			logger.Error("build publisher", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		publisher = pub
	} else {
		logger.Warn("AMQP_URL not set, using in-process event bus")
		memBus = events.NewMemoryBus(logger)
		publisher = memBus
	}

	walletSvc := wallet.NewService(store, balanceCache, guard, publisher, logger)
	identitySvc := identity.NewService(userRepo, publisher, logger)
	tokens := auth.NewManager(cfg.JWTSecret, cfg.AppName, cfg.TokenTTL)
	notifier := notification.NewConsumer(notification.NewLoggerNotifier(logger), cache, cfg.IdempotencyTTL, logger)

	consumerCtx, stopConsumers := context.WithCancel(ctx)
	defer stopConsumers()

	if memBus != nil {
		memBus.Subscribe("user.registered", walletSvc.HandleUserEvent)
		memBus.Subscribe("user.registered", notifier.Handle)
		memBus.Subscribe("wallet.*", notifier.Handle)
	} else {
		lifecycle := events.NewConsumer(cfg.AMQPURL, cfg.EventExchange, "wallet.user_events",
			[]string{"user.registered"}, walletSvc.HandleUserEvent, logger)
		notifications := events.NewConsumer(cfg.AMQPURL, cfg.EventExchange, "notification.wallet_events",
			[]string{"user.registered", "wallet.*"}, notifier.Handle, logger)
		go lifecycle.Run(consumerCtx)
		go notifications.Run(consumerCtx)
	}

	srv, err := server.New(routes.Deps{
		Cfg:      cfg,
		DB:       dbPool,
		Cache:    cache,
		Logger:   logger,
		Wallet:   walletSvc,
		Identity: identitySvc,
		Tokens:   tokens,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	stopConsumers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
