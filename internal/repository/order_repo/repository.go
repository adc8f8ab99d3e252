package order_repo

import (
	"context"

	"github.com/SeanGareth505/JobAssessment/internal/domain"
	"github.com/SeanGareth505/JobAssessment/internal/repository/outbox_repo"
)

type OrderRepository interface {
	// CreateOrderAndOutboxMessage persists the order, its line items and the
	// outbox message in a single transaction.
	CreateOrderAndOutboxMessage(ctx context.Context, order *domain.Order, msg *outbox_repo.OutboxMessage) error
	// CreateOrderIfAbsent inserts the order with its line items unless a row
	// with the same id already exists. Returns true when the insert happened.
	CreateOrderIfAbsent(ctx context.Context, order *domain.Order) (bool, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	// UpdateStatus writes the new status conditioned on the version being
	// unchanged since read. Returns the new version, or
	// domain.ErrConcurrencyConflict when another writer advanced it first.
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, expectedVersion int64) (int64, error)
	// ReplaceLineItems swaps the order's line items and total under the same
	// version check, in one transaction.
	ReplaceLineItems(ctx context.Context, order *domain.Order, expectedVersion int64) (int64, error)
}
