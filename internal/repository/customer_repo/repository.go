package customer_repo

import (
	"context"

	"github.com/SeanGareth505/JobAssessment/internal/domain"
	"github.com/SeanGareth505/JobAssessment/internal/repository/outbox_repo"
)

type CustomerRepository interface {
	// CreateCustomerAndOutboxMessage persists the customer and its outbox
	// message in a single transaction.
	CreateCustomerAndOutboxMessage(ctx context.Context, customer *domain.Customer, msg *outbox_repo.OutboxMessage) error
	// CreateCustomerIfAbsent inserts the customer unless a row with the same
	// id already exists. Existence is the idempotency key for replayed
	// customer-created events.
	CreateCustomerIfAbsent(ctx context.Context, customer *domain.Customer) (bool, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
}
