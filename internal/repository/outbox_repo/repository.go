package outbox_repo

import (
	"context"
	"database/sql"
	"time"
)

// OutboxMessage is a pending domain event, written in the same transaction as
// the aggregate change it describes. ProcessedAt is null until the publisher
// has handed the payload to the broker; it is set once and never cleared.
type OutboxMessage struct {
	ID            string
	Seq           int64
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CorrelationID string
	OccurredAt    time.Time
	ProcessedAt   *time.Time
	SchemaVersion int
}

type OutboxRepository interface {
	// CreateMessageTx enqueues a message inside the caller's transaction so
	// that the event commits (or aborts) together with the aggregate write.
	CreateMessageTx(ctx context.Context, tx *sql.Tx, msg *OutboxMessage) error
	// GetPendingMessages returns up to limit unprocessed messages ordered by
	// occurred_at ascending, ties broken by insertion order.
	GetPendingMessages(ctx context.Context, limit int) ([]*OutboxMessage, error)
	MarkMessageProcessed(ctx context.Context, id string) error
}

// PublisherLock guards the publisher loop so that only one instance drains
// the outbox at a time.
type PublisherLock interface {
	// TryLock attempts to take the lock. When ok is true the caller must
	// invoke release when done with the tick.
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}
