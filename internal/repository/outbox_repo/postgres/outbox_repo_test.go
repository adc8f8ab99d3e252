package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SeanGareth505/JobAssessment/internal/repository/outbox_repo"
)

func newMockRepo(t *testing.T) (*pgOutboxRepository, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &pgOutboxRepository{db: db, logger: zap.NewNop()}, db, mock
}

func TestCreateMessageTxUsesCallerTransaction(t *testing.T) {
	repo, db, mock := newMockRepo(t)
	msg := &outbox_repo.OutboxMessage{
		ID:            "m1",
		AggregateType: "Order",
		AggregateID:   "o1",
		EventType:     "order.created",
		Payload:       []byte(`{"id":"o1"}`),
		CorrelationID: "corr-1",
		OccurredAt:    time.Now().UTC(),
		SchemaVersion: 1,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox_messages`)).
		WithArgs(msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.CorrelationID, msg.OccurredAt, msg.SchemaVersion).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.CreateMessageTx(context.Background(), tx, msg))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPendingMessagesDrainsInOccurredAtSeqOrder(t *testing.T) {
	repo, _, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE processed_at IS NULL ORDER BY occurred_at ASC, seq ASC LIMIT $1`)).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "seq", "aggregate_type", "aggregate_id", "event_type", "payload", "correlation_id", "occurred_at", "processed_at", "schema_version",
		}).
			AddRow("m1", int64(1), "Order", "o1", "order.created", []byte(`{}`), "", now, nil, 1).
			AddRow("m2", int64(2), "Order", "o2", "order.created", []byte(`{}`), "corr-2", now, nil, 1))

	messages, err := repo.GetPendingMessages(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, int64(1), messages[0].Seq)
	assert.Nil(t, messages[0].ProcessedAt)
	assert.Equal(t, "corr-2", messages[1].CorrelationID)
}

func TestGetPendingMessagesEmpty(t *testing.T) {
	repo, _, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE processed_at IS NULL`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "seq", "aggregate_type", "aggregate_id", "event_type", "payload", "correlation_id", "occurred_at", "processed_at", "schema_version",
		}))

	messages, err := repo.GetPendingMessages(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestMarkMessageProcessedSetsTimestampOnce(t *testing.T) {
	repo, _, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`SET processed_at = $1 WHERE id = $2 AND processed_at IS NULL`)).
		WithArgs(sqlmock.AnyArg(), "m1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkMessageProcessed(context.Background(), "m1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkMessageProcessedAlreadyProcessedIsNotAnError(t *testing.T) {
	repo, _, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`AND processed_at IS NULL`)).
		WithArgs(sqlmock.AnyArg(), "m1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.MarkMessageProcessed(context.Background(), "m1"))
}

func TestMarkMessageProcessedPropagatesDBError(t *testing.T) {
	repo, _, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`SET processed_at`)).
		WithArgs(sqlmock.AnyArg(), "m1").
		WillReturnError(errors.New("connection reset"))

	assert.Error(t, repo.MarkMessageProcessed(context.Background(), "m1"))
}
