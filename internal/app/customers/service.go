package customers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SeanGareth505/JobAssessment/internal/domain"
	"github.com/SeanGareth505/JobAssessment/internal/domain/event"
	"github.com/SeanGareth505/JobAssessment/internal/repository/customer_repo"
	"github.com/SeanGareth505/JobAssessment/internal/repository/outbox_repo"
	"github.com/SeanGareth505/JobAssessment/internal/util"
)

var ErrInvalidCustomer = errors.New("invalid customer data")

type CustomerService interface {
	CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (*CustomerResponse, error)
	GetCustomer(ctx context.Context, customerID string) (*CustomerResponse, error)
	// ApplyCustomerCreated is the worker-side idempotent effect of a
	// customer-created event: insert only if no row with that id exists.
	ApplyCustomerCreated(ctx context.Context, evt *event.CustomerCreated) error
}

type customerService struct {
	customerRepo customer_repo.CustomerRepository
	logger       *zap.Logger
}

func NewCustomerService(customerRepo customer_repo.CustomerRepository, logger *zap.Logger) CustomerService {
	return &customerService{customerRepo: customerRepo, logger: logger}
}

func (s *customerService) CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (*CustomerResponse, error) {
	customer, err := domain.NewCustomer(util.GenerateUUID(), req.Name, req.Email, req.CountryCode)
	if err != nil {
		s.logger.Warn("Rejected customer creation request", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidCustomer, err)
	}

	payload, err := json.Marshal(event.CustomerCreated{
		ID:            customer.ID,
		Name:          customer.Name,
		Email:         customer.Email,
		CountryCode:   customer.CountryCode,
		OccurredAtUtc: customer.CreatedAt,
	})
	if err != nil {
		s.logger.Error("Failed to marshal customer-created payload", zap.String("customer_id", customer.ID), zap.Error(err))
		return nil, errors.New("internal server error")
	}

	msg := &outbox_repo.OutboxMessage{
		ID:            util.GenerateUUID(),
		AggregateType: "Customer",
		AggregateID:   customer.ID,
		EventType:     event.TypeCustomerCreated,
		Payload:       payload,
		CorrelationID: util.CorrelationIDFromContext(ctx),
		OccurredAt:    customer.CreatedAt,
		SchemaVersion: 1,
	}

	if err := s.customerRepo.CreateCustomerAndOutboxMessage(ctx, customer, msg); err != nil {
		s.logger.Error("Failed to save customer and outbox message", zap.String("customer_id", customer.ID), zap.Error(err))
		return nil, errors.New("failed to create customer")
	}

	s.logger.Info("Customer created and customer-created event added to outbox", zap.String("customer_id", customer.ID))
	return mapCustomerToResponse(customer), nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID string) (*CustomerResponse, error) {
	customer, err := s.customerRepo.GetCustomerByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		s.logger.Error("Failed to get customer", zap.String("customer_id", customerID), zap.Error(err))
		return nil, errors.New("internal server error")
	}
	return mapCustomerToResponse(customer), nil
}

func (s *customerService) ApplyCustomerCreated(ctx context.Context, evt *event.CustomerCreated) error {
	createdAt := evt.OccurredAtUtc
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	customer := &domain.Customer{
		ID:          evt.ID,
		Name:        evt.Name,
		Email:       evt.Email,
		CountryCode: evt.CountryCode,
		CreatedAt:   createdAt,
	}

	inserted, err := s.customerRepo.CreateCustomerIfAbsent(ctx, customer)
	if err != nil {
		return fmt.Errorf("failed to insert customer from event: %w", err)
	}
	if !inserted {
		s.logger.Info("Customer already exists, replay is a no-op", zap.String("customer_id", evt.ID))
		return nil
	}
	s.logger.Info("Customer persisted from customer-created event", zap.String("customer_id", evt.ID))
	return nil
}
