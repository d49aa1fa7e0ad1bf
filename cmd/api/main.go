package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/akhmetov/payvault/internal/currency"
	"github.com/akhmetov/payvault/internal/fee"
	"github.com/akhmetov/payvault/internal/infra/postgres"
	"github.com/akhmetov/payvault/internal/notify"
	"github.com/akhmetov/payvault/internal/platform/user"
	"github.com/akhmetov/payvault/internal/rate"
	"github.com/akhmetov/payvault/internal/settlement"
	"github.com/akhmetov/payvault/internal/transport/httpapi"
	"github.com/akhmetov/payvault/internal/transport/httpapi/handler"
	"github.com/akhmetov/payvault/internal/transport/httpapi/middleware"
	"github.com/akhmetov/payvault/internal/wallet"
	"github.com/akhmetov/payvault/pkg/config"
	"github.com/akhmetov/payvault/pkg/logger"
)

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewDefault(cfg.Env)
	log.Info("Starting PayVault API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Initialize database connection pool
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("Database connection established")

	// Initialize Redis client for rate caching and event publishing
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Redis connection established")

	// Currency catalog and fee schedule
	catalog := currency.NewCatalog(cfg.Currencies...)
	fees := fee.DefaultSchedule()
	log.Info("Currency catalog loaded", "currencies", catalog.Codes())

	// Rate provider with Redis read-through cache
	rates := rate.NewCache(rate.DefaultTable(), redisClient, log)

	// Initialize repositories
	userRepo := postgres.NewUserRepository(pool)
	ledgerRepo := postgres.NewLedgerRepository(pool)
	walletRepo := postgres.NewWalletRepository(pool)

	// Initialize services
	userSvc := user.NewService(userRepo, log)
	jwtSvc := middleware.NewJWTService(cfg.JWTSecret, 24*time.Hour)
	walletSvc := wallet.NewService(walletRepo, catalog)

	// Transaction events go to the log and the Redis channel
	notifier := notify.Multi{
		notify.NewLogNotifier(log),
		notify.NewRedisNotifier(redisClient, log),
	}

	// Initialize the settlement engine
	engine, err := settlement.NewService(settlement.Config{
		Repo:            ledgerRepo,
		Catalog:         catalog,
		Fees:            fees,
		Rates:           rates,
		ExchangeFeeRate: cfg.ExchangeFeeRate,
		Notifier:        notifier,
		Logger:          log,
	})
	if err != nil {
		log.Error("Failed to initialize settlement engine", "error", err)
		os.Exit(1)
	}
	log.Info("Settlement engine initialized")

	// Initialize HTTP handlers
	authHandler := handler.NewAuthHandler(userSvc, jwtSvc)
	walletHandler := handler.NewWalletHandler(walletSvc)
	transactionHandler := handler.NewTransactionHandler(engine)
	adminHandler := handler.NewAdminHandler(engine)
	healthHandler := handler.NewHealthHandler(pool)

	// Create JWT middleware
	jwtMiddleware := middleware.JWTMiddleware(jwtSvc)

	// Create HTTP router
	r := httpapi.NewRouter(httpapi.Config{
		Logger:             log,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		AuthHandler:        authHandler,
		WalletHandler:      walletHandler,
		TransactionHandler: transactionHandler,
		AdminHandler:       adminHandler,
		HealthHandler:      healthHandler,
		JWTMiddleware:      jwtMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}
