package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SeanGareth505/JobAssessment/internal/domain"
	"github.com/SeanGareth505/JobAssessment/internal/repository/outbox_repo"
	outboxpg "github.com/SeanGareth505/JobAssessment/internal/repository/outbox_repo/postgres"
)

func newMockRepo(t *testing.T) (*pgCustomerRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &pgCustomerRepository{db: db, outbox: outboxpg.NewOutboxRepository(db, zap.NewNop()), logger: zap.NewNop()}, mock
}

func testCustomer() *domain.Customer {
	return &domain.Customer{
		ID:          "c1",
		Name:        "Thandi Nkosi",
		Email:       "thandi@example.com",
		CountryCode: "ZA",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestCreateCustomerAndOutboxMessageCommitsSingleTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)
	customer := testCustomer()
	msg := &outbox_repo.OutboxMessage{
		ID:            "m1",
		AggregateType: "Customer",
		AggregateID:   customer.ID,
		EventType:     "customer.created",
		Payload:       []byte(`{"id":"c1"}`),
		OccurredAt:    customer.CreatedAt,
		SchemaVersion: 1,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO customers`)).
		WithArgs(customer.ID, customer.Name, customer.Email, customer.CountryCode, customer.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox_messages`)).
		WithArgs(msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.CorrelationID, msg.OccurredAt, msg.SchemaVersion).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateCustomerAndOutboxMessage(context.Background(), customer, msg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCustomerAndOutboxMessageRollsBackOnOutboxFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	customer := testCustomer()
	msg := &outbox_repo.OutboxMessage{ID: "m1", AggregateID: customer.ID, EventType: "customer.created", OccurredAt: customer.CreatedAt, SchemaVersion: 1}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO customers`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox_messages`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.CreateCustomerAndOutboxMessage(context.Background(), customer, msg)
	assert.Error(t, err, "the customer row must not survive without its outbox message")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCustomerIfAbsentSkipsExistingRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	customer := testCustomer()

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (id) DO NOTHING`)).
		WithArgs(customer.ID, customer.Name, customer.Email, customer.CountryCode, customer.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.CreateCustomerIfAbsent(context.Background(), customer)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestGetCustomerByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM customers WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetCustomerByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}
