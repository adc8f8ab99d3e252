package kafka

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/SeanGareth505/JobAssessment/internal/domain/event"
	"github.com/SeanGareth505/JobAssessment/internal/util"
)

type MessageHandler func(ctx context.Context, message []byte) error

// messageFetcher is the part of kafka.Reader the consumer loop needs;
// narrowed so tests can substitute a fake.
type messageFetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	MaxAttempts int
	RetryDelay  time.Duration
}

// Consumer fetches exactly one message at a time from a single topic and
// commits its offset only after the handler's effect has durably committed,
// so processing within a queue is strictly sequential. Handler failures are
// retried in place with a fixed delay; after MaxAttempts the message is
// forwarded to the topic's dead-letter queue and acknowledged. Poison
// messages (event.ErrPoisonMessage) are acknowledged immediately since
// redelivering a malformed payload can never succeed.
type Consumer struct {
	reader      messageFetcher
	producer    Producer
	topic       string
	dlqTopic    string
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger
}

func NewConsumer(cfg ConsumerConfig, producer Producer, l *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		QueueCapacity:  1,
		CommitInterval: 0, // synchronous commits
		Logger:         zap.NewStdLog(l.With(zap.String("kafka_component", "consumer"))),
	})

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}

	return &Consumer{
		reader:      reader,
		producer:    producer,
		topic:       cfg.Topic,
		dlqTopic:    event.DLQFor(cfg.Topic),
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      l,
	}
}

// Run blocks until ctx is cancelled. The kafka.Reader reconnects on its own
// when the broker connection drops; fetch errors are logged and retried.
func (c *Consumer) Run(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Kafka consumer started", zap.String("topic", c.topic))
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				c.logger.Info("Kafka consumer stopping", zap.String("topic", c.topic))
				return nil
			}
			c.logger.Error("Error fetching message from Kafka", zap.String("topic", c.topic), zap.Error(err))
			if !sleepCtx(ctx, time.Second) {
				return nil
			}
			continue
		}

		if !c.processMessage(ctx, msg, handler) {
			// Shutdown mid-message; the offset stays uncommitted so the
			// message is redelivered to the next session.
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Failed to commit offset for message",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

// processMessage runs the handler with bounded retries. It returns true when
// the message should be acknowledged (success, poison discard, or
// dead-lettered), false only when shutdown interrupted it mid-message.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, handler MessageHandler) bool {
	correlationID := correlationIDFromHeaders(msg.Headers)
	if correlationID == "" {
		correlationID = util.NewCorrelationID()
	}
	msgCtx := util.WithCorrelationID(ctx, correlationID)
	log := c.logger.With(
		zap.String("topic", c.topic),
		zap.Int64("offset", msg.Offset),
		zap.String("correlation_id", correlationID))

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = handler(msgCtx, msg.Value)
		if lastErr == nil {
			log.Debug("Message processed and acked")
			return true
		}
		if errors.Is(lastErr, event.ErrPoisonMessage) {
			log.Warn("Poison message discarded", zap.Error(lastErr), zap.ByteString("raw_message", msg.Value))
			return true
		}
		log.Error("Error handling message",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
			zap.Error(lastErr))
		if attempt < c.maxAttempts {
			if !sleepCtx(ctx, c.retryDelay) {
				return false
			}
		}
	}

	return c.deadLetter(msgCtx, msg, correlationID, lastErr)
}

// deadLetter forwards the message to the dead-letter queue, retrying the
// hand-off until it succeeds or ctx is cancelled. The loop must not advance
// past a message that is neither applied nor dead-lettered: committing any
// later offset on the partition would implicitly commit this one and drop it.
func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, correlationID string, cause error) bool {
	headers := []kafka.Header{
		{Key: util.CorrelationIDHeader, Value: []byte(correlationID)},
		{Key: "x-source-topic", Value: []byte(c.topic)},
		{Key: "x-attempts", Value: []byte(strconv.Itoa(c.maxAttempts))},
		{Key: "x-last-error", Value: []byte(cause.Error())},
	}
	for {
		err := c.producer.Produce(ctx, c.dlqTopic, msg.Value, headers...)
		if err == nil {
			break
		}
		c.logger.Error("Failed to dead-letter message; retrying hand-off",
			zap.String("dlq_topic", c.dlqTopic),
			zap.Error(err))
		if !sleepCtx(ctx, c.retryDelay) {
			return false
		}
	}
	c.logger.Warn("Message dead-lettered after exhausting retries; manual intervention required",
		zap.String("dlq_topic", c.dlqTopic),
		zap.Int("attempts", c.maxAttempts),
		zap.Error(cause))
	return true
}

func correlationIDFromHeaders(headers []kafka.Header) string {
	for _, h := range headers {
		if h.Key == util.CorrelationIDHeader {
			return string(h.Value)
		}
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
