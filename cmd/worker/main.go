package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	customersapp "github.com/SeanGareth505/JobAssessment/internal/app/customers"
	ordersapp "github.com/SeanGareth505/JobAssessment/internal/app/orders"
	"github.com/SeanGareth505/JobAssessment/internal/config"
	"github.com/SeanGareth505/JobAssessment/internal/domain/event"
	kafka_handler "github.com/SeanGareth505/JobAssessment/internal/handler/kafka"
	"github.com/SeanGareth505/JobAssessment/internal/idempotency"
	"github.com/SeanGareth505/JobAssessment/internal/infrastructure/database"
	"github.com/SeanGareth505/JobAssessment/internal/infrastructure/kafka"
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
	appLogger.Info("Event worker starting...", zap.Bool("auto_fulfill", cfg.WorkerAutoFulfill))

	db := mustConnectDB(cfg, appLogger)
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		}
	}()

	// Producer is only used for dead-letter hand-off.
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

	orderService := ordersapp.NewOrderService(
		orderRepository,
		customerRepository,
		idempotency.NewMemoryCache(cfg.IdempotencyTTL),
		cfg.WorkerAutoFulfill,
		appLogger,
	)
	customerService := customersapp.NewCustomerService(customerRepository, appLogger)

	orderConsumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     cfg.GetKafkaBrokers(),
		Topic:       event.QueueOrderCreated,
		GroupID:     cfg.KafkaConsumerGroup,
		MaxAttempts: cfg.WorkerMaxAttempts,
		RetryDelay:  cfg.WorkerRetryDelay,
	}, kafkaProducer, appLogger.With(zap.String("component", "OrderCreatedConsumer")))

	customerConsumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     cfg.GetKafkaBrokers(),
		Topic:       event.QueueCustomerCreated,
		GroupID:     cfg.KafkaConsumerGroup,
		MaxAttempts: cfg.WorkerMaxAttempts,
		RetryDelay:  cfg.WorkerRetryDelay,
	}, kafkaProducer, appLogger.With(zap.String("component", "CustomerCreatedConsumer")))

	orderHandler := kafka_handler.NewOrderCreatedConsumer(orderService, appLogger)
	customerHandler := kafka_handler.NewCustomerCreatedConsumer(customerService, appLogger)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The two queues progress independently; within each queue processing is
	// strictly sequential.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := orderConsumer.Run(rootCtx, orderHandler.HandleMessage); err != nil {
			appLogger.Error("order-created consumer exited with error", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := customerConsumer.Run(rootCtx, customerHandler.HandleMessage); err != nil {
			appLogger.Error("customer-created consumer exited with error", zap.Error(err))
		}
	}()

	appLogger.Info("Event worker listening",
		zap.Strings("queues", []string{event.QueueOrderCreated, event.QueueCustomerCreated}))

	<-rootCtx.Done()
	appLogger.Info("Shutting down event worker...")
	wg.Wait()
	appLogger.Info("Event worker stopped.")
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
