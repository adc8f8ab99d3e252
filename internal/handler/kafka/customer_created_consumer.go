package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/SeanGareth505/JobAssessment/internal/app/customers"
	"github.com/SeanGareth505/JobAssessment/internal/domain/event"
	"github.com/SeanGareth505/JobAssessment/internal/util"
)

type CustomerCreatedConsumer struct {
	customerService customers.CustomerService
	logger          *zap.Logger
}

func NewCustomerCreatedConsumer(s customers.CustomerService, l *zap.Logger) *CustomerCreatedConsumer {
	return &CustomerCreatedConsumer{customerService: s, logger: l}
}

func (c *CustomerCreatedConsumer) HandleMessage(ctx context.Context, message []byte) error {
	evt, err := event.DecodeCustomerCreated(message)
	if err != nil {
		return err
	}

	c.logger.Info("Received customer-created event",
		zap.String("customer_id", evt.ID),
		zap.String("correlation_id", util.CorrelationIDFromContext(ctx)))

	if err := c.customerService.ApplyCustomerCreated(ctx, evt); err != nil {
		c.logger.Error("Error applying customer-created event",
			zap.String("customer_id", evt.ID),
			zap.Error(err))
		return err
	}
	return nil
}
