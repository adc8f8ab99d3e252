package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SeanGareth505/JobAssessment/internal/repository/outbox_repo"
)

type pgOutboxRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOutboxRepository(db *sql.DB, l *zap.Logger) outbox_repo.OutboxRepository {
	return &pgOutboxRepository{db: db, logger: l}
}

func (r *pgOutboxRepository) CreateMessageTx(ctx context.Context, tx *sql.Tx, msg *outbox_repo.OutboxMessage) error {
	query := `INSERT INTO outbox_messages (id, aggregate_type, aggregate_id, event_type, payload, correlation_id, occurred_at, schema_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := tx.ExecContext(ctx, query,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.CorrelationID, msg.OccurredAt, msg.SchemaVersion)
	if err != nil {
		r.logger.Error("Failed to create outbox message", zap.String("message_id", msg.ID), zap.Error(err))
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	r.logger.Debug("Outbox message created", zap.String("message_id", msg.ID), zap.String("event_type", msg.EventType))
	return nil
}

func (r *pgOutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*outbox_repo.OutboxMessage, error) {
	var messages []*outbox_repo.OutboxMessage
	query := `SELECT id, seq, aggregate_type, aggregate_id, event_type, payload, correlation_id, occurred_at, processed_at, schema_version
		FROM outbox_messages WHERE processed_at IS NULL ORDER BY occurred_at ASC, seq ASC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", zap.Error(err))
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		msg := &outbox_repo.OutboxMessage{}
		var processedAt sql.NullTime
		if err := rows.Scan(&msg.ID, &msg.Seq, &msg.AggregateType, &msg.AggregateID, &msg.EventType,
			&msg.Payload, &msg.CorrelationID, &msg.OccurredAt, &processedAt, &msg.SchemaVersion); err != nil {
			r.logger.Error("Failed to scan outbox message row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan outbox message row: %w", err)
		}
		if processedAt.Valid {
			msg.ProcessedAt = &processedAt.Time
		}
		messages = append(messages, msg)
	}
	if err = rows.Err(); err != nil {
		r.logger.Error("Rows error while getting pending outbox messages", zap.Error(err))
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return messages, nil
}

func (r *pgOutboxRepository) MarkMessageProcessed(ctx context.Context, id string) error {
	query := `UPDATE outbox_messages SET processed_at = $1 WHERE id = $2 AND processed_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark outbox message as processed", zap.String("message_id", id), zap.Error(err))
		return fmt.Errorf("failed to mark outbox message %s as processed: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		r.logger.Warn("No rows affected when marking outbox message as processed, it might be already processed or not exist",
			zap.String("message_id", id))
	} else {
		r.logger.Debug("Outbox message marked as processed", zap.String("message_id", id))
	}
	return nil
}
