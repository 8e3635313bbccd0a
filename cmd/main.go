/**
 * @description
 * This is the main entry point for the SUP ledger service. It loads the
 * configuration, opens the ledger store, connects the optional Redis, RabbitMQ,
 * KYC and payout integrations, starts the anomaly monitor and the cron jobs,
 * and serves the HTTP API until it receives a termination signal.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Shared velocity windows.
 * - go.uber.org/zap: Structured logging.
 * - internal/api, internal/app, internal/config, internal/store: Service packages.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/api"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/app"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/config"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/store"
	"github.com/vibetrailmedia/stepupnaija-sub004/pkg/kycclient"
	"github.com/vibetrailmedia/stepupnaija-sub004/pkg/payoutclient"
	"github.com/vibetrailmedia/stepupnaija-sub004/pkg/rabbitmq"
	"go.uber.org/zap"
)

func newLogger(format string) (*zap.Logger, error) {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	logger, err := newLogger(cfg.LogFormat)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"logger init failed\" err=%v", err)
	}
	defer logger.Sync()
	bootLog := logger.With(zap.String("component", "bootstrap"))
	bootLog.Info("starting sup ledger", zap.String("port", cfg.ServerPort), zap.String("store", cfg.StoreDriver))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledger, closeLedger, err := openLedger(ctx, cfg, bootLog)
	if err != nil {
		bootLog.Fatal("ledger store unavailable", zap.Error(err))
	}
	defer closeLedger()

	velocity := openVelocityCounter(cfg, bootLog)

	// Publishing is best effort. Without a broker events are logged and dropped.
	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{Logger: logger}
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		bootLog.Warn("rabbitmq url missing; event publishing disabled")
	} else if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, logger); err != nil {
		bootLog.Warn("rabbitmq producer unavailable; using fallback", zap.Error(err))
	} else {
		publisher = producer
		defer producer.Close()
		bootLog.Info("rabbitmq producer connected")
	}

	var kyc app.KYCProvider
	if strings.TrimSpace(cfg.KYCServiceURL) != "" {
		kyc = kycclient.NewClient(cfg.KYCServiceURL, cfg.InternalAPIKey)
	} else {
		bootLog.Warn("kyc service not configured; using stored tiers")
	}
	var payouts app.PayoutProvider
	if strings.TrimSpace(cfg.PayoutGatewayURL) != "" {
		payouts = payoutclient.NewClient(cfg.PayoutGatewayURL, cfg.PayoutGatewayAPIKey)
	} else {
		bootLog.Warn("payout gateway not configured; cashouts stay pending until reported")
	}

	events := app.NewEvents(publisher, cfg.EventsExchange, logger)
	treasury := app.NewTreasuryService(ledger, events, logger)
	if err := treasury.Bootstrap(ctx); err != nil {
		bootLog.Fatal("treasury bootstrap failed", zap.Error(err))
	}

	monitor := app.NewAnomalyMonitor(ledger, treasury, velocity, events, app.MonitorConfig{
		LargeWithdrawalNGN: cfg.LargeWithdrawal(),
		VelocityPerMinute:  cfg.VelocityPerMinute,
		Cooldown:           cfg.AlertCooldown(),
	}, logger)
	events.Subscribe(monitor)
	monitor.Start(ctx)

	wallet := app.NewWalletService(ledger, nil, kyc, payouts, monitor, events, logger)
	draws := app.NewDrawEngine(wallet, ledger, events, logger)

	if strings.TrimSpace(cfg.RabbitMQURL) != "" {
		consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL, logger)
		if err != nil {
			bootLog.Warn("rabbitmq consumer unavailable; payout results only accepted over http", zap.Error(err))
		} else {
			defer consumer.Close()
			payoutConsumer := app.NewPayoutStatusConsumer(wallet, logger)
			err := consumer.Consume(ctx, rabbitmq.Subscription{
				Exchange: cfg.EventsExchange,
				Queue:    cfg.PayoutEventQueue,
				Prefetch: 16,
				Handlers: payoutConsumer.Handlers(),
			})
			if err != nil {
				bootLog.Fatal("payout consumer start failed", zap.Error(err))
			}
			bootLog.Info("payout consumer started", zap.String("queue", cfg.PayoutEventQueue))
		}
	}

	jobs := app.NewJobs(draws, wallet, monitor, treasury, cfg.PayoutTimeout(), logger)
	scheduler := app.NewScheduler(jobs, logger, cfg)
	if failed := scheduler.Start(); failed > 0 {
		bootLog.Warn("some scheduled jobs were not registered", zap.Int("failed", failed))
	}

	handlers := api.NewHandlers(wallet, draws, treasury, monitor, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           api.NewRouter(handlers, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("component", "http"), zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped unexpectedly", zap.String("component", "http"), zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started", zap.String("component", "http"))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.String("component", "http"), zap.Error(err))
	}

	// Wait for running jobs before the store closes.
	<-scheduler.Stop().Done()
	cancel()
	logger.Info("shutdown complete", zap.String("component", "http"))
}

func openLedger(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Ledger, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory ledger; balances are lost on restart")
		return store.NewMemoryLedger(), func() {}, nil
	}

	if cfg.RunMigrations {
		if err := store.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := dbpool.Ping(pingCtx); err != nil {
		dbpool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("database connected")
	return store.NewPostgresLedger(dbpool), dbpool.Close, nil
}

// openVelocityCounter returns a Redis-backed counter when REDIS_URL is usable
// so that replicas share velocity windows. Otherwise the monitor keeps them
// in process.
func openVelocityCounter(cfg config.Config, logger *zap.Logger) app.VelocityCounter {
	if cfg.RedisURL == "" {
		logger.Info("redis url missing; velocity windows kept in memory")
		return app.NewMemoryVelocityCounter()
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis url parse failed; velocity windows kept in memory", zap.Error(err))
		return app.NewMemoryVelocityCounter()
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; velocity windows kept in memory", zap.Error(err))
		client.Close()
		return app.NewMemoryVelocityCounter()
	}
	logger.Info("redis connected")
	return app.NewRedisVelocityCounter(client, cfg.RedisKeyPrefix)
}
