package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SeanGareth505/JobAssessment/internal/domain"
	"github.com/SeanGareth505/JobAssessment/internal/domain/event"
	"github.com/SeanGareth505/JobAssessment/internal/idempotency"
	"github.com/SeanGareth505/JobAssessment/internal/repository/customer_repo"
	"github.com/SeanGareth505/JobAssessment/internal/repository/order_repo"
	"github.com/SeanGareth505/JobAssessment/internal/repository/outbox_repo"
	"github.com/SeanGareth505/JobAssessment/internal/util"
)

var ErrInvalidOrder = errors.New("invalid order data")

type OrderService interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (*OrderResponse, error)
	UpdateLineItems(ctx context.Context, orderID string, req *UpdateOrderRequest) (*OrderResponse, error)
	// UpdateStatus runs the status transition under optimistic concurrency.
	// When idempotencyKey is non-empty, a cached result for (orderID, key)
	// is returned without re-executing the transition.
	UpdateStatus(ctx context.Context, orderID string, target domain.OrderStatus, idempotencyKey string) (*OrderResponse, error)
	// ApplyOrderCreated is the worker-side idempotent effect of an
	// order-created event.
	ApplyOrderCreated(ctx context.Context, evt *event.OrderCreated) error
}

type orderService struct {
	orderRepo    order_repo.OrderRepository
	customerRepo customer_repo.CustomerRepository
	cache        idempotency.Cache
	autoFulfill  bool
	logger       *zap.Logger
}

func NewOrderService(
	orderRepo order_repo.OrderRepository,
	customerRepo customer_repo.CustomerRepository,
	cache idempotency.Cache,
	autoFulfill bool,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orderRepo:    orderRepo,
		customerRepo: customerRepo,
		cache:        cache,
		autoFulfill:  autoFulfill,
		logger:       logger,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	if _, err := s.customerRepo.GetCustomerByID(ctx, req.CustomerID); err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		s.logger.Error("Failed to look up customer for order creation", zap.String("customer_id", req.CustomerID), zap.Error(err))
		return nil, errors.New("internal server error")
	}

	items := mapLineItemRequests(req.LineItems)
	order, err := domain.NewOrder(util.GenerateUUID(), req.CustomerID, req.CurrencyCode, items)
	if err != nil {
		s.logger.Warn("Rejected order creation request", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	msg, err := s.buildOrderCreatedMessage(ctx, order)
	if err != nil {
		s.logger.Error("Failed to build order-created outbox message", zap.String("order_id", order.ID), zap.Error(err))
		return nil, errors.New("internal server error")
	}

	if err := s.orderRepo.CreateOrderAndOutboxMessage(ctx, order, msg); err != nil {
		s.logger.Error("Failed to save order and outbox message", zap.String("order_id", order.ID), zap.Error(err))
		return nil, errors.New("failed to create order")
	}

	s.logger.Info("Order created and order-created event added to outbox",
		zap.String("order_id", order.ID),
		zap.String("customer_id", order.CustomerID))
	return mapOrderToResponse(order), nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*OrderResponse, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		s.logger.Error("Failed to get order", zap.String("order_id", orderID), zap.Error(err))
		return nil, errors.New("internal server error")
	}
	return mapOrderToResponse(order), nil
}

func (s *orderService) UpdateLineItems(ctx context.Context, orderID string, req *UpdateOrderRequest) (*OrderResponse, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		s.logger.Error("Failed to load order for line-item update", zap.String("order_id", orderID), zap.Error(err))
		return nil, errors.New("internal server error")
	}

	expectedVersion := order.Version
	items := mapLineItemRequests(req.LineItems)
	if err := order.ReplaceLineItems(items); err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			return nil, domain.ErrInvalidState
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	newVersion, err := s.orderRepo.ReplaceLineItems(ctx, order, expectedVersion)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) || errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to persist line-item update", zap.String("order_id", orderID), zap.Error(err))
		return nil, errors.New("failed to update order")
	}
	order.Version = newVersion

	s.logger.Info("Order line items updated",
		zap.String("order_id", orderID),
		zap.Float64("total_amount", order.TotalAmount))
	return mapOrderToResponse(order), nil
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID string, target domain.OrderStatus, idempotencyKey string) (*OrderResponse, error) {
	if !domain.IsValidStatus(target) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidOrder, target)
	}

	key := strings.TrimSpace(idempotencyKey)
	if key != "" {
		cached, ok, err := s.cache.Get(ctx, orderID, key)
		if err != nil {
			// The cache is an optimization; a broken cache must not block
			// the transition itself.
			s.logger.Warn("Idempotency cache lookup failed", zap.String("order_id", orderID), zap.Error(err))
		} else if ok {
			var res OrderResponse
			if err := json.Unmarshal(cached, &res); err == nil {
				s.logger.Info("Status update replayed from idempotency cache",
					zap.String("order_id", orderID))
				return &res, nil
			}
			s.logger.Warn("Discarding undecodable idempotency cache entry", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		s.logger.Error("Failed to load order for status update", zap.String("order_id", orderID), zap.Error(err))
		return nil, errors.New("internal server error")
	}

	expectedVersion := order.Version
	if err := order.TransitionTo(target); err != nil {
		s.logger.Warn("Rejected status transition",
			zap.String("order_id", orderID),
			zap.String("from", string(order.Status)),
			zap.String("to", string(target)))
		return nil, domain.ErrInvalidTransition
	}

	newVersion, err := s.orderRepo.UpdateStatus(ctx, orderID, target, expectedVersion)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) || errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to persist status update", zap.String("order_id", orderID), zap.Error(err))
		return nil, errors.New("failed to update order status")
	}
	order.Version = newVersion

	res := mapOrderToResponse(order)
	if key != "" {
		if data, err := json.Marshal(res); err == nil {
			if err := s.cache.Set(ctx, orderID, key, data); err != nil {
				s.logger.Warn("Failed to store idempotency cache entry", zap.String("order_id", orderID), zap.Error(err))
			}
		}
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("new_status", string(target)),
		zap.Int64("version", newVersion))
	return res, nil
}

func (s *orderService) ApplyOrderCreated(ctx context.Context, evt *event.OrderCreated) error {
	order, err := s.orderRepo.GetOrderByID(ctx, evt.ID)
	switch {
	case err == nil:
		if order.IsTerminal() {
			s.logger.Info("Order already terminal, replay is a no-op",
				zap.String("order_id", order.ID),
				zap.String("status", string(order.Status)))
			return nil
		}
		if s.autoFulfill {
			return s.fulfill(ctx, order)
		}
		s.logger.Info("Order already exists, auto-fulfill disabled",
			zap.String("order_id", order.ID),
			zap.String("status", string(order.Status)))
		return nil

	case errors.Is(err, domain.ErrOrderNotFound):
		newOrder := orderFromEvent(evt)
		inserted, err := s.orderRepo.CreateOrderIfAbsent(ctx, newOrder)
		if err != nil {
			return fmt.Errorf("failed to insert order from event: %w", err)
		}
		if !inserted {
			// A concurrent delivery of the same event won the insert race.
			s.logger.Info("Order inserted by a concurrent delivery", zap.String("order_id", evt.ID))
			return nil
		}
		s.logger.Info("Order persisted from order-created event",
			zap.String("order_id", newOrder.ID),
			zap.Int("line_items", len(newOrder.LineItems)))
		if s.autoFulfill {
			return s.fulfill(ctx, newOrder)
		}
		return nil

	default:
		return fmt.Errorf("failed to load order for event: %w", err)
	}
}

// fulfill advances the order as an event-driven mutation. Unlike direct
// status updates it is not bound to the caller-facing transition table, but
// it still goes through the version check so concurrent writers are detected.
func (s *orderService) fulfill(ctx context.Context, order *domain.Order) error {
	newVersion, err := s.orderRepo.UpdateStatus(ctx, order.ID, domain.OrderStatusFulfilled, order.Version)
	if err != nil {
		return fmt.Errorf("failed to auto-fulfill order %s: %w", order.ID, err)
	}
	s.logger.Info("Order auto-fulfilled", zap.String("order_id", order.ID), zap.Int64("version", newVersion))
	return nil
}

func (s *orderService) buildOrderCreatedMessage(ctx context.Context, order *domain.Order) (*outbox_repo.OutboxMessage, error) {
	items := make([]event.OrderCreatedLineItem, len(order.LineItems))
	for i, li := range order.LineItems {
		items[i] = event.OrderCreatedLineItem{
			ID:         li.ID,
			OrderID:    li.OrderID,
			ProductSku: li.ProductSku,
			Quantity:   li.Quantity,
			UnitPrice:  li.UnitPrice,
		}
	}
	payload, err := json.Marshal(event.OrderCreated{
		ID:            order.ID,
		CustomerID:    order.CustomerID,
		TotalAmount:   order.TotalAmount,
		CurrencyCode:  order.CurrencyCode,
		OccurredAtUtc: order.CreatedAt,
		LineItems:     items,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order-created payload: %w", err)
	}

	return &outbox_repo.OutboxMessage{
		ID:            util.GenerateUUID(),
		AggregateType: "Order",
		AggregateID:   order.ID,
		EventType:     event.TypeOrderCreated,
		Payload:       payload,
		CorrelationID: util.CorrelationIDFromContext(ctx),
		OccurredAt:    order.CreatedAt,
		SchemaVersion: 1,
	}, nil
}

func orderFromEvent(evt *event.OrderCreated) *domain.Order {
	createdAt := evt.OccurredAtUtc
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	order := &domain.Order{
		ID:           evt.ID,
		CustomerID:   evt.CustomerID,
		Status:       domain.OrderStatusPending,
		CurrencyCode: evt.CurrencyCode,
		TotalAmount:  evt.TotalAmount,
		Version:      1,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	for _, li := range evt.LineItems {
		id := li.ID
		if id == "" {
			id = util.GenerateUUID()
		}
		order.LineItems = append(order.LineItems, domain.LineItem{
			ID:         id,
			OrderID:    evt.ID,
			ProductSku: li.ProductSku,
			Quantity:   li.Quantity,
			UnitPrice:  li.UnitPrice,
		})
	}
	return order
}

func mapLineItemRequests(reqs []LineItemRequest) []domain.LineItem {
	items := make([]domain.LineItem, len(reqs))
	for i, li := range reqs {
		items[i] = domain.LineItem{
			ID:         util.GenerateUUID(),
			ProductID:  li.ProductID,
			ProductSku: li.ProductSku,
			Quantity:   li.Quantity,
			UnitPrice:  li.UnitPrice,
		}
	}
	return items
}
