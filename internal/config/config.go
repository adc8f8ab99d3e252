package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBConfig struct {
		DBHost     string
		DBPort     string
		DBUser     string
		DBPassword string
		DBName     string
		DBSSLMode  string
	}

	KafkaURL           string
	KafkaConsumerGroup string

	HTTPPort int

	OutboxPollInterval time.Duration
	OutboxPollTimeout  time.Duration
	OutboxBatchSize    int

	WorkerMaxAttempts int
	WorkerRetryDelay  time.Duration
	WorkerAutoFulfill bool

	RedisAddr      string
	RedisPassword  string
	IdempotencyTTL time.Duration
}

func LoadConfig() (*Config, error) {
	// A missing .env file is fine; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.DBConfig.DBHost = getEnvOrDefault("DB_HOST", "localhost")
	cfg.DBConfig.DBPort = getEnvOrDefault("DB_PORT", "5432")
	cfg.DBConfig.DBUser = getEnvOrDefault("DB_USER", "postgres")
	cfg.DBConfig.DBPassword = getEnvOrDefault("DB_PASSWORD", "postgres")
	cfg.DBConfig.DBName = getEnvOrDefault("DB_NAME", "orders_db")
	cfg.DBConfig.DBSSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	cfg.KafkaURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "order-worker-group")

	port, err := strconv.Atoi(getEnvOrDefault("HTTP_PORT", "8081"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_PORT: %w", err)
	}
	cfg.HTTPPort = port

	cfg.OutboxPollInterval, err = parseDuration("OUTBOX_POLL_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}
	cfg.OutboxPollTimeout, err = parseDuration("OUTBOX_POLL_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cfg.OutboxBatchSize, err = strconv.Atoi(getEnvOrDefault("OUTBOX_BATCH_SIZE", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid OUTBOX_BATCH_SIZE: %w", err)
	}

	cfg.WorkerMaxAttempts, err = strconv.Atoi(getEnvOrDefault("WORKER_MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_MAX_ATTEMPTS: %w", err)
	}
	cfg.WorkerRetryDelay, err = parseDuration("WORKER_RETRY_DELAY", "5s")
	if err != nil {
		return nil, err
	}
	cfg.WorkerAutoFulfill = getEnvOrDefault("WORKER_AUTO_FULFILL", "false") == "true"

	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", "")
	cfg.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", "")
	cfg.IdempotencyTTL, err = parseDuration("IDEMPOTENCY_TTL", "24h")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnvOrDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBConfig.DBHost, c.DBConfig.DBPort, c.DBConfig.DBUser, c.DBConfig.DBPassword, c.DBConfig.DBName, c.DBConfig.DBSSLMode)
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("%s:%s@%s:%s/%s?sslmode=%s",
		c.DBConfig.DBUser, c.DBConfig.DBPassword, c.DBConfig.DBHost, c.DBConfig.DBPort, c.DBConfig.DBName, c.DBConfig.DBSSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return []string{c.KafkaURL}
}
