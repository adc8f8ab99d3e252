package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/SeanGareth505/JobAssessment/internal/app/orders"
	"github.com/SeanGareth505/JobAssessment/internal/domain/event"
	"github.com/SeanGareth505/JobAssessment/internal/util"
)

type OrderCreatedConsumer struct {
	orderService orders.OrderService
	logger       *zap.Logger
}

func NewOrderCreatedConsumer(s orders.OrderService, l *zap.Logger) *OrderCreatedConsumer {
	return &OrderCreatedConsumer{orderService: s, logger: l}
}

// HandleMessage parses and applies one order-created event. Decode failures
// surface event.ErrPoisonMessage so the consume loop discards instead of
// retrying; any other error is treated as transient.
func (c *OrderCreatedConsumer) HandleMessage(ctx context.Context, message []byte) error {
	evt, err := event.DecodeOrderCreated(message)
	if err != nil {
		return err
	}

	c.logger.Info("Received order-created event",
		zap.String("order_id", evt.ID),
		zap.String("correlation_id", util.CorrelationIDFromContext(ctx)))

	if err := c.orderService.ApplyOrderCreated(ctx, evt); err != nil {
		c.logger.Error("Error applying order-created event",
			zap.String("order_id", evt.ID),
			zap.Error(err))
		return err
	}
	return nil
}
