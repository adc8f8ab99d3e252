package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SeanGareth505/JobAssessment/internal/domain"
	"github.com/SeanGareth505/JobAssessment/internal/domain/event"
	"github.com/SeanGareth505/JobAssessment/internal/idempotency"
	"github.com/SeanGareth505/JobAssessment/internal/repository/outbox_repo"
)

type fakeOrderRepo struct {
	mu                sync.Mutex
	orders            map[string]*domain.Order
	outbox            []*outbox_repo.OutboxMessage
	updateStatusCalls int
	// readHook mutates the copy returned by GetOrderByID, used to simulate
	// stale reads under concurrent writers.
	readHook func(o *domain.Order)
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*domain.Order)}
}

func (r *fakeOrderRepo) CreateOrderAndOutboxMessage(_ context.Context, order *domain.Order, msg *outbox_repo.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
	r.outbox = append(r.outbox, msg)
	return nil
}

func (r *fakeOrderRepo) CreateOrderIfAbsent(_ context.Context, order *domain.Order) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return false, nil
	}
	cp := *order
	r.orders[order.ID] = &cp
	return true, nil
}

func (r *fakeOrderRepo) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *order
	if r.readHook != nil {
		r.readHook(&cp)
	}
	return &cp, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, orderID string, status domain.OrderStatus, expectedVersion int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return 0, domain.ErrOrderNotFound
	}
	if order.Version != expectedVersion {
		return 0, domain.ErrConcurrencyConflict
	}
	order.Status = status
	order.Version++
	r.updateStatusCalls++
	return order.Version, nil
}

func (r *fakeOrderRepo) ReplaceLineItems(_ context.Context, updated *domain.Order, expectedVersion int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[updated.ID]
	if !ok {
		return 0, domain.ErrOrderNotFound
	}
	if order.Version != expectedVersion {
		return 0, domain.ErrConcurrencyConflict
	}
	order.LineItems = updated.LineItems
	order.TotalAmount = updated.TotalAmount
	order.Version++
	return order.Version, nil
}

type fakeCustomerRepo struct {
	mu        sync.Mutex
	customers map[string]*domain.Customer
}

func newFakeCustomerRepo(ids ...string) *fakeCustomerRepo {
	r := &fakeCustomerRepo{customers: make(map[string]*domain.Customer)}
	for _, id := range ids {
		r.customers[id] = &domain.Customer{ID: id, Name: "Customer " + id}
	}
	return r
}

func (r *fakeCustomerRepo) CreateCustomerAndOutboxMessage(_ context.Context, customer *domain.Customer, _ *outbox_repo.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers[customer.ID] = customer
	return nil
}

func (r *fakeCustomerRepo) CreateCustomerIfAbsent(_ context.Context, customer *domain.Customer) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[customer.ID]; ok {
		return false, nil
	}
	r.customers[customer.ID] = customer
	return true, nil
}

func (r *fakeCustomerRepo) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	customer, ok := r.customers[id]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	return customer, nil
}

func newTestService(orderRepo *fakeOrderRepo, customerRepo *fakeCustomerRepo, autoFulfill bool) OrderService {
	return NewOrderService(orderRepo, customerRepo, idempotency.NewMemoryCache(time.Hour), autoFulfill, zap.NewNop())
}

func seedOrder(repo *fakeOrderRepo, id string, status domain.OrderStatus, version int64) {
	repo.orders[id] = &domain.Order{
		ID:           id,
		CustomerID:   "c1",
		Status:       status,
		CurrencyCode: "ZAR",
		TotalAmount:  10,
		Version:      version,
	}
}

func TestCreateOrderWritesOutboxRecord(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	svc := newTestService(orderRepo, newFakeCustomerRepo("c1"), false)

	res, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		CustomerID:   "c1",
		CurrencyCode: "zar",
		LineItems: []LineItemRequest{
			{ProductSku: "SKU-1", Quantity: 2, UnitPrice: 7.5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.OrderStatusPending), res.Status)
	assert.Equal(t, 15.0, res.TotalAmount)
	assert.Equal(t, "ZAR", res.CurrencyCode)

	require.Len(t, orderRepo.outbox, 1)
	msg := orderRepo.outbox[0]
	assert.Equal(t, event.TypeOrderCreated, msg.EventType)
	assert.Equal(t, "Order", msg.AggregateType)
	assert.Equal(t, res.ID, msg.AggregateID)

	evt, err := event.DecodeOrderCreated(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, res.ID, evt.ID)
	assert.Equal(t, 15.0, evt.TotalAmount)
	require.Len(t, evt.LineItems, 1)
	assert.Equal(t, "SKU-1", evt.LineItems[0].ProductSku)
}

func TestCreateOrderUnknownCustomer(t *testing.T) {
	svc := newTestService(newFakeOrderRepo(), newFakeCustomerRepo(), false)

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		CustomerID:   "missing",
		CurrencyCode: "ZAR",
		LineItems:    []LineItemRequest{{Quantity: 1, UnitPrice: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "o1", domain.OrderStatusPending, 1)
	svc := newTestService(orderRepo, newFakeCustomerRepo("c1"), false)
	ctx := context.Background()

	res, err := svc.UpdateStatus(ctx, "o1", domain.OrderStatusPaid, "")
	require.NoError(t, err)
	assert.Equal(t, string(domain.OrderStatusPaid), res.Status)
	assert.Equal(t, int64(2), res.Version)

	_, err = svc.UpdateStatus(ctx, "o1", domain.OrderStatusPending, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.OrderStatusPaid, orderRepo.orders["o1"].Status)

	res, err = svc.UpdateStatus(ctx, "o1", domain.OrderStatusFulfilled, "")
	require.NoError(t, err)
	assert.Equal(t, string(domain.OrderStatusFulfilled), res.Status)
	assert.Equal(t, int64(3), res.Version)

	_, err = svc.UpdateStatus(ctx, "o1", domain.OrderStatusPaid, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.OrderStatusFulfilled, orderRepo.orders["o1"].Status)
}

func TestUpdateStatusUnknownTarget(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "o1", domain.OrderStatusPending, 1)
	svc := newTestService(orderRepo, newFakeCustomerRepo(), false)

	_, err := svc.UpdateStatus(context.Background(), "o1", domain.OrderStatus("SHIPPED"), "")
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestUpdateStatusIdempotencyKeyReplays(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "o1", domain.OrderStatusPending, 1)
	svc := newTestService(orderRepo, newFakeCustomerRepo(), false)
	ctx := context.Background()

	first, err := svc.UpdateStatus(ctx, "o1", domain.OrderStatusPaid, "k1")
	require.NoError(t, err)

	second, err := svc.UpdateStatus(ctx, "o1", domain.OrderStatusPaid, "k1")
	require.NoError(t, err)

	assert.Equal(t, first, second, "replay with the same key must return the identical result")
	assert.Equal(t, 1, orderRepo.updateStatusCalls, "the transition must execute exactly once")
}

func TestUpdateStatusDifferentKeyReEvaluates(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "o1", domain.OrderStatusPending, 1)
	svc := newTestService(orderRepo, newFakeCustomerRepo(), false)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, "o1", domain.OrderStatusPaid, "k1")
	require.NoError(t, err)

	// A different key must not be satisfied from the cache: the transition
	// table is re-evaluated against current state, and PAID -> PAID is
	// rejected.
	_, err = svc.UpdateStatus(ctx, "o1", domain.OrderStatusPaid, "k2")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestUpdateStatusConcurrencyConflict(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "o1", domain.OrderStatusPending, 1)
	// Both callers read version 1; only the first conditional write can win.
	orderRepo.readHook = func(o *domain.Order) { o.Version = 1 }
	svc := newTestService(orderRepo, newFakeCustomerRepo(), false)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, "o1", domain.OrderStatusPaid, "")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, "o1", domain.OrderStatusCancelled, "")
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Equal(t, domain.OrderStatusPaid, orderRepo.orders["o1"].Status, "the losing writer must not overwrite")
}

func TestUpdateLineItemsOnlyWhilePending(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "o1", domain.OrderStatusPaid, 1)
	svc := newTestService(orderRepo, newFakeCustomerRepo(), false)

	_, err := svc.UpdateLineItems(context.Background(), "o1", &UpdateOrderRequest{
		LineItems: []LineItemRequest{{Quantity: 1, UnitPrice: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestUpdateLineItemsRecomputesTotal(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	seedOrder(orderRepo, "o1", domain.OrderStatusPending, 1)
	svc := newTestService(orderRepo, newFakeCustomerRepo(), false)

	res, err := svc.UpdateLineItems(context.Background(), "o1", &UpdateOrderRequest{
		LineItems: []LineItemRequest{
			{ProductSku: "SKU-2", Quantity: 4, UnitPrice: 2.5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.TotalAmount)
	assert.Equal(t, int64(2), res.Version)
}

func orderCreatedFixture() *event.OrderCreated {
	return &event.OrderCreated{
		ID:            "o1",
		CustomerID:    "c1",
		TotalAmount:   15,
		CurrencyCode:  "ZAR",
		OccurredAtUtc: time.Now().UTC(),
		LineItems: []event.OrderCreatedLineItem{
			{ID: "li1", OrderID: "o1", ProductSku: "SKU-1", Quantity: 2, UnitPrice: 7.5},
		},
	}
}

func TestApplyOrderCreatedIsIdempotent(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	svc := newTestService(orderRepo, newFakeCustomerRepo(), false)
	ctx := context.Background()

	require.NoError(t, svc.ApplyOrderCreated(ctx, orderCreatedFixture()))
	require.NoError(t, svc.ApplyOrderCreated(ctx, orderCreatedFixture()))

	require.Len(t, orderRepo.orders, 1)
	order := orderRepo.orders["o1"]
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	require.Len(t, order.LineItems, 1)
	assert.Equal(t, "SKU-1", order.LineItems[0].ProductSku)
	assert.Equal(t, 0, orderRepo.updateStatusCalls)
}

func TestApplyOrderCreatedTerminalOrderIsNoOp(t *testing.T) {
	for _, status := range []domain.OrderStatus{domain.OrderStatusFulfilled, domain.OrderStatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			orderRepo := newFakeOrderRepo()
			seedOrder(orderRepo, "o1", status, 3)
			svc := newTestService(orderRepo, newFakeCustomerRepo(), true)

			require.NoError(t, svc.ApplyOrderCreated(context.Background(), orderCreatedFixture()))
			assert.Equal(t, status, orderRepo.orders["o1"].Status, "no status regression on replay")
			assert.Equal(t, int64(3), orderRepo.orders["o1"].Version)
		})
	}
}

func TestApplyOrderCreatedAutoFulfill(t *testing.T) {
	orderRepo := newFakeOrderRepo()
	svc := newTestService(orderRepo, newFakeCustomerRepo(), true)

	require.NoError(t, svc.ApplyOrderCreated(context.Background(), orderCreatedFixture()))
	assert.Equal(t, domain.OrderStatusFulfilled, orderRepo.orders["o1"].Status)
}
