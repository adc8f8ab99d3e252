package outbox

import (
	"context"
	"time"

	segkafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/SeanGareth505/JobAssessment/internal/domain/event"
	"github.com/SeanGareth505/JobAssessment/internal/infrastructure/kafka"
	"github.com/SeanGareth505/JobAssessment/internal/repository/outbox_repo"
	"github.com/SeanGareth505/JobAssessment/internal/util"
)

// Publisher drains pending outbox messages into the broker on a fixed poll
// interval. It publishes strictly in (occurred_at, seq) order and stops the
// current batch on the first send failure, so a transient broker error never
// lets a later record overtake an earlier one. A record is marked processed
// only after the broker has confirmed the hand-off; until then every failure
// mode resolves to "retry on the next tick".
type Publisher struct {
	outboxRepo   outbox_repo.OutboxRepository
	lock         outbox_repo.PublisherLock
	producer     kafka.Producer
	batchSize    int
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *zap.Logger
}

func NewPublisher(
	outboxRepo outbox_repo.OutboxRepository,
	lock outbox_repo.PublisherLock,
	producer kafka.Producer,
	batchSize int,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	logger *zap.Logger,
) *Publisher {
	return &Publisher{
		outboxRepo:   outboxRepo,
		lock:         lock,
		producer:     producer,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       logger,
	}
}

// Run blocks until ctx is cancelled, executing one bounded unit of work per
// tick. A failing tick is logged and never takes the process down.
func (p *Publisher) Run(ctx context.Context) {
	p.logger.Info("Outbox publisher started",
		zap.Duration("poll_interval", p.pollInterval),
		zap.Int("batch_size", p.batchSize))

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox publisher stopped.")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Publisher) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Outbox publisher tick panicked", zap.Any("panic", r))
		}
	}()

	tickCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	defer cancel()

	// Broker being down is an expected transient state, not an error.
	if !p.producer.Healthy(tickCtx) {
		p.logger.Debug("Kafka not reachable; skipping outbox poll.")
		return
	}

	release, ok, err := p.lock.TryLock(tickCtx)
	if err != nil {
		p.logger.Error("Failed to acquire outbox publisher lock", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	defer release()

	messages, err := p.outboxRepo.GetPendingMessages(tickCtx, p.batchSize)
	if err != nil {
		p.logger.Error("Failed to get pending outbox messages", zap.Error(err))
		return
	}
	if len(messages) == 0 {
		return
	}

	p.logger.Info("Publishing pending outbox messages", zap.Int("count", len(messages)))

	for _, msg := range messages {
		if tickCtx.Err() != nil {
			return
		}

		queue, ok := event.QueueForType(msg.EventType)
		if !ok {
			// Unknown event types cannot be routed and would wedge the queue
			// forever; park them and move on.
			p.logger.Error("Outbox message has unknown event type; marking processed without publish",
				zap.String("message_id", msg.ID),
				zap.String("event_type", msg.EventType))
			if err := p.outboxRepo.MarkMessageProcessed(tickCtx, msg.ID); err != nil {
				p.logger.Error("Failed to mark unroutable outbox message", zap.String("message_id", msg.ID), zap.Error(err))
				return
			}
			continue
		}

		var headers []segkafka.Header
		if msg.CorrelationID != "" {
			headers = append(headers, segkafka.Header{Key: util.CorrelationIDHeader, Value: []byte(msg.CorrelationID)})
		}

		if err := p.producer.Produce(tickCtx, queue, msg.Payload, headers...); err != nil {
			// Stop the batch here: the next tick retries from this same
			// record, preserving per-aggregate ordering.
			p.logger.Warn("Failed to publish outbox message; will retry next poll",
				zap.String("message_id", msg.ID),
				zap.String("queue", queue),
				zap.Error(err))
			return
		}

		if err := p.outboxRepo.MarkMessageProcessed(tickCtx, msg.ID); err != nil {
			// The send succeeded but the mark did not; stop so the next tick
			// republishes from this record (at-least-once).
			p.logger.Error("Failed to mark outbox message as processed",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			return
		}

		p.logger.Debug("Outbox message published",
			zap.String("message_id", msg.ID),
			zap.String("event_type", msg.EventType),
			zap.String("queue", queue))
	}
}
