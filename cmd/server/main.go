package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	customersapp "github.com/SeanGareth505/JobAssessment/internal/app/customers"
	ordersapp "github.com/SeanGareth505/JobAssessment/internal/app/orders"
	"github.com/SeanGareth505/JobAssessment/internal/config"
	http_customers "github.com/SeanGareth505/JobAssessment/internal/handler/http/customers"
	httpmiddleware "github.com/SeanGareth505/JobAssessment/internal/handler/http/middleware"
	http_orders "github.com/SeanGareth505/JobAssessment/internal/handler/http/orders"
	"github.com/SeanGareth505/JobAssessment/internal/idempotency"
	"github.com/SeanGareth505/JobAssessment/internal/infrastructure/database"
	"github.com/SeanGareth505/JobAssessment/internal/infrastructure/kafka"
	"github.com/SeanGareth505/JobAssessment/internal/outbox"
	postgres_customer_repo "github.com/SeanGareth505/JobAssessment/internal/repository/customer_repo/postgres"
	postgres_order_repo "github.com/SeanGareth505/JobAssessment/internal/repository/order_repo/postgres"
	postgres_outbox_repo "github.com/SeanGareth505/JobAssessment/internal/repository/outbox_repo/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("Order API starting...")

	db := mustConnectDB(cfg, appLogger)
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	appLogger.Info("Running database migrations...")
	migrateDSN := "postgres://" + cfg.GetDBMigrationConnectionString()
	m, err := migrate.New("file://migrations", migrateDSN)
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed.")

	kafkaProducer, err := kafka.NewProducer(cfg.GetKafkaBrokers(), appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create Kafka producer", zap.Error(err))
	}
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	outboxRepository := postgres_outbox_repo.NewOutboxRepository(db, appLogger)
	orderRepository := postgres_order_repo.NewOrderRepository(db, outboxRepository, appLogger)
	customerRepository := postgres_customer_repo.NewCustomerRepository(db, outboxRepository, appLogger)
	publisherLock := postgres_outbox_repo.NewAdvisoryLock(db, appLogger)

	var cache idempotency.Cache
	if cfg.RedisAddr != "" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		cache = idempotency.NewRedisCache(redisClient, cfg.IdempotencyTTL)
		appLogger.Info("Using Redis idempotency cache", zap.String("addr", cfg.RedisAddr))
	} else {
		cache = idempotency.NewMemoryCache(cfg.IdempotencyTTL)
		appLogger.Info("Using in-memory idempotency cache")
	}

	orderService := ordersapp.NewOrderService(orderRepository, customerRepository, cache, false, appLogger)
	customerService := customersapp.NewCustomerService(customerRepository, appLogger)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher := outbox.NewPublisher(
		outboxRepository,
		publisherLock,
		kafkaProducer,
		cfg.OutboxBatchSize,
		cfg.OutboxPollInterval,
		cfg.OutboxPollTimeout,
		appLogger.With(zap.String("component", "OutboxPublisher")),
	)
	publisherDone := make(chan struct{})
	go func() {
		defer close(publisherDone)
		publisher.Run(rootCtx)
	}()

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(httpmiddleware.CorrelationID)
	r.Use(chimiddleware.Recoverer)

	http_orders.RegisterRoutes(r, orderService, appLogger)
	http_customers.RegisterRoutes(r, customerService, appLogger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	appLogger.Info("Order API started", zap.String("address", server.Addr))

	<-rootCtx.Done()

	appLogger.Info("Shutting down Order API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	}
	<-publisherDone
	appLogger.Info("Order API stopped.")
}

func mustConnectDB(cfg *config.Config, appLogger *zap.Logger) *sql.DB {
	dbConfig := database.DBConfig{
		Host:     cfg.DBConfig.DBHost,
		Port:     cfg.DBConfig.DBPort,
		User:     cfg.DBConfig.DBUser,
		Password: cfg.DBConfig.DBPassword,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.DBSSLMode,
	}

	var db *sql.DB
	var err error
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			appLogger.Info("Connected to PostgreSQL database.")
			return db
		}
		appLogger.Warn(fmt.Sprintf("Failed to connect to database (attempt %d/%d): %v. Retrying in %s...",
			i+1, maxRetries, err, retryDelay))
		time.Sleep(retryDelay)
	}

	appLogger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	return nil
}
